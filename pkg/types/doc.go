/*
Package types defines the record types shared between the gateway
components.

An ObjectRecord identifies one object in the storage pool by its
(namespace, key) coordinate and carries the object's SHA-1 content hash
when known; an empty hash means "not yet determined" and is filled in by
a cluster lookup. Records flow from the ingest endpoint and the refresher
into the index store, and from the index store to the backend endpoint.
*/
package types

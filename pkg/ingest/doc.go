/*
Package ingest is the simulation-facing announcement endpoint.

A simulation process announces each freshly written object by opening a
TCP connection, writing one TAB-separated line of namespace, object key
and sha1sum (possibly empty) and closing. The endpoint never replies;
the socket close is the only acknowledgement. Accepted announcements
flow to the index store, which resolves missing hashes against the
cluster before insertion.
*/
package ingest

/*
Package index holds the gateway's authoritative in-memory copy of the
pool contents.

The index is a nested tree keyed by namespace, timestep, simtype, usage
and the usage-dependent levels decoded from object keys; each leaf
records the full object key and its sha1sum. A flat admitted-coordinate
set gates insertion in O(1).

The Store owns the tree exclusively and runs as a single goroutine fed
by three channels: announcements from the ingest endpoint (hash filled
in via a cluster lookup when missing), bulk records from the refresher's
sweeps, and snapshot requests from the backend endpoint. Consumers only
ever receive deep copies; no reference to live state crosses the
component boundary. Records are never deleted; a gateway restart rebuilds
the tree from the cluster.
*/
package index

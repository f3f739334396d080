/*
Package gateway assembles the complete service.

A gateway couples three parties: a running simulation that announces
every object it writes, an object-storage cluster holding the data, and
an analytics backend that wants to browse and fetch it. Five concurrent
components do the work: the simulation-facing ingest endpoint, the
index store owning the in-memory tree, the cluster arbiter fanning
storage tasks over a connection pool, the refresher driving periodic
full sweeps, and the backend-facing conversation endpoint.

The gateway holds no persistent state; a restart rebuilds the index
from the cluster on the first sweep.
*/
package gateway

/*
Package arbiter multiplexes storage tasks over a pool of persistent
cluster connections.

Five task kinds exist: interactive object reads, hash lookups, tag
fetches, per-namespace index scans and the orchestrating full index
read. Each pool connection is born with a priority pattern, an ordered
list of queues it drains: it blocks briefly on its primary queue, then
peeks at its fallback queues without blocking. A connection that served
fallback work while its primary queue was empty skips the blocking wait
on the next cycle. This yields type-level fairness without a global
priority queue: interactive reads always find dedicated connections,
while bulk scans proceed on their own partition of the pool.

Transient cluster errors drop the task; the requester times out on its
reply channel and retries at its own pace. Hash results feed an LRU
cache so repeated lookups for the same coordinate skip the cluster.
*/
package arbiter

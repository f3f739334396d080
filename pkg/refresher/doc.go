/*
Package refresher schedules full pool sweeps.

On every trigger from the index store it enqueues a single full index
scan at the cluster arbiter, waits for the assembled result and forwards
one record per object to the store's refresher channel. The hash of a
record is whatever sha1sum the cluster reported; missing hashes arrive
empty and are filled on a later read.
*/
package refresher

/*
Package cluster abstracts the object-storage cluster behind a small
capability set.

The gateway never links the storage client library directly; it consumes
the Conn interface, which covers exactly the operations the core needs:
namespace-scoped object listing, stat/read, extended attributes, and
out-of-band namespace enumeration. Two implementations live here: a
rados-command-line backed connection for production and an in-memory
cluster used by the test suites and the embedded self-check.

The package also owns the hash-on-read policy: reading an object's tags
fills in a missing sha1sum attribute by downloading the object, hashing
it and writing the digest back to the cluster. The write-back is best
effort; the computed hash is returned to the caller even when persisting
it fails.
*/
package cluster

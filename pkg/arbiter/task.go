package arbiter

import (
	"github.com/plattproject/cluster-gateway/pkg/types"
)

// Task kind names, used for metrics and logging.
const (
	KindReadObjectData     = "read_object_data"
	KindReadObjectHash     = "read_object_hash"
	KindReadObjectTags     = "read_object_tags"
	KindReadNamespaceIndex = "read_namespace_index"
	KindReadIndex          = "read_index"
)

// DataRequest asks for the raw bytes and tags of a single object. The
// reply channel should be buffered; results for abandoned requests are
// dropped.
type DataRequest struct {
	Namespace string
	Object    string
	Reply     chan<- DataResult
}

// DataResult carries an object's contents and full tag set.
type DataResult struct {
	Namespace string
	Object    string
	Value     []byte
	Tags      types.ObjectAttrs
}

// HashRequest asks for an object's sha1sum, computing and persisting it
// on the cluster when absent.
type HashRequest struct {
	Namespace string
	Key       string
	Reply     chan<- types.ObjectRecord
}

// TagsRequest asks for an object's extended attributes only.
type TagsRequest struct {
	Namespace string
	Object    string
	Reply     chan<- TagsResult
}

// TagsResult carries an object's tag set including sha1sum.
type TagsResult struct {
	Namespace string
	Object    string
	Tags      types.ObjectAttrs
}

// IndexRequest asks for a listing of every object in every namespace.
type IndexRequest struct {
	Reply chan<- IndexResult
}

// IndexResult is the assembled outcome of a full pool scan.
type IndexResult struct {
	Listings []types.NamespaceListing
}

// nsScanTask is the internal per-namespace unit of a full scan.
type nsScanTask struct {
	Namespace string
}

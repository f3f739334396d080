package types

// ObjectRecord is the unit of exchange between the gateway components: a
// single object in the pool, addressed by (namespace, key), together with
// its content hash when known.
type ObjectRecord struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Sha1Sum   string `json:"sha1sum"`
}

// Coordinate returns the admitted-set membership key for the record.
// Namespace and key are joined with a TAB, which cannot occur in either.
func (r ObjectRecord) Coordinate() string {
	return r.Namespace + "\t" + r.Key
}

// HasHash reports whether the record carries a content hash.
func (r ObjectRecord) HasHash() bool {
	return r.Sha1Sum != ""
}

// ObjectAttrs is the decoded extended-attribute set of one object.
type ObjectAttrs map[string]string

// Sha1Sum returns the content hash attribute, or "" when absent.
func (a ObjectAttrs) Sha1Sum() string {
	return a["sha1sum"]
}

// NamespaceListing is one namespace worth of pool contents: object key to
// extended attributes.
type NamespaceListing struct {
	Namespace string                 `json:"namespace"`
	Objects   map[string]ObjectAttrs `json:"index"`
}

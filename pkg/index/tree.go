package index

// Leaf is the terminal entry of the index tree: one object.
type Leaf struct {
	ObjectKey string `json:"object_key"`
	Sha1Sum   string `json:"sha1sum"`
}

// Tree is the nested index mapping. Interior values are Tree, terminal
// values are *Leaf. The nesting order is namespace, timestep, simtype,
// usage, then the usage-dependent levels.
type Tree map[string]any

// insert creates the interior nodes along path and writes the leaf at
// the final element. An existing leaf at that position is replaced.
func (t Tree) insert(path []string, leaf *Leaf) {
	node := t
	for _, level := range path[:len(path)-1] {
		child, ok := node[level].(Tree)
		if !ok {
			child = Tree{}
			node[level] = child
		}
		node = child
	}
	node[path[len(path)-1]] = leaf
}

// leafAt returns the leaf at path, or nil when the path does not lead
// to one.
func (t Tree) leafAt(path []string) *Leaf {
	node := t
	for _, level := range path[:len(path)-1] {
		child, ok := node[level].(Tree)
		if !ok {
			return nil
		}
		node = child
	}
	leaf, _ := node[path[len(path)-1]].(*Leaf)
	return leaf
}

// Copy returns a deep copy sharing no mutable state with the receiver.
func (t Tree) Copy() Tree {
	out := make(Tree, len(t))
	for key, val := range t {
		switch v := val.(type) {
		case Tree:
			out[key] = v.Copy()
		case *Leaf:
			cp := *v
			out[key] = &cp
		}
	}
	return out
}

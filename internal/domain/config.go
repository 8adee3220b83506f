package domain

// Namespace is the two-level Sonic namespace every document is indexed under.
type Namespace struct {
	Collection string
	Bucket     string
}

// DefaultNamespace mirrors the collection/bucket pair used by the search page.
func DefaultNamespace() Namespace {
	return Namespace{Collection: "collection", Bucket: "bucket"}
}

// String formats the namespace as collection/bucket for logs.
func (n Namespace) String() string { return n.Collection + "/" + n.Bucket }

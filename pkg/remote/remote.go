package remote

import (
	"context"
	"fmt"
)

// NodeID is the opaque identifier a device assigns to an entry in one of its
// storages. IDs are only meaningful to the backend that produced them.
type NodeID string

// RootNode is the synthetic id for the top of a storage. Listing the children
// of RootNode returns the storage's top-level entries.
const RootNode NodeID = "root"

// SizeUnknown is the declared size of entries that have no real content,
// such as abstract playlist or album objects. No meaningful size comparison
// is possible against it.
const SizeUnknown = ^uint64(0)

// Kind classifies a remote entry.
type Kind int

const (
	// KindContainer is an entry that can have children (a folder).
	KindContainer Kind = iota

	// KindFile is a regular file with content and a declared size.
	KindFile

	// KindAbstract is a virtual entry with no real content. Its declared
	// size is SizeUnknown.
	KindAbstract
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindFile:
		return "file"
	case KindAbstract:
		return "abstract"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node describes one remote entry. Nodes are produced transiently per
// traversal step; callers shouldn't retain them past the step that
// dispatched them.
type Node struct {
	ID       NodeID
	ParentID NodeID
	Name     string
	Kind     Kind

	// Size is the size the device declares for the entry, or SizeUnknown.
	Size uint64
}

// SizeKnown returns whether the node has a comparable declared size.
func (n Node) SizeKnown() bool {
	return n.Size != SizeUnknown
}

// StorageID identifies one of a device's independent storage partitions.
type StorageID string

// Tree is the device-side collaborator. Implementations enumerate a storage
// tree one container at a time and fetch file content to the local disk.
//
// ListChildren errors are expected to be benign to a traversal: the caller
// surfaces them and treats the container as empty. Fetch errors are per-file.
type Tree interface {
	// ListChildren returns the immediate children of parent within storage.
	ListChildren(ctx context.Context, storage StorageID, parent NodeID) ([]Node, error)

	// Fetch copies the content of node to dest on the local filesystem.
	Fetch(ctx context.Context, node Node, dest string) error
}

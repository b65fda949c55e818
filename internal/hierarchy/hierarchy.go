// Package hierarchy reassembles a tenant's folder tree from the flat collection list a
// provider returns for a shard. Provider data is not trusted to be acyclic, so every
// walk is bounded by domain.MaxHierarchyDepth.
package hierarchy

import (
	"errors"
	"sort"

	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
)

// Index is a flat collection list indexed by id and by parent id.
type Index struct {
	byID     map[string]domain.Collection
	children map[string][]domain.Collection
}

// NewIndex indexes nodes in O(n). Duplicate ids keep the first occurrence.
func NewIndex(nodes []domain.Collection) *Index {
	ix := &Index{
		byID:     make(map[string]domain.Collection, len(nodes)),
		children: make(map[string][]domain.Collection),
	}

	for _, n := range nodes {
		if _, dup := ix.byID[n.CollectionID]; dup {
			continue
		}
		ix.byID[n.CollectionID] = n
		if n.ParentID != "" {
			ix.children[n.ParentID] = append(ix.children[n.ParentID], n)
		}
	}

	for parent := range ix.children {
		kids := ix.children[parent]
		sort.SliceStable(kids, func(i, j int) bool {
			if kids[i].Name != kids[j].Name {
				return kids[i].Name < kids[j].Name
			}
			return kids[i].CollectionID < kids[j].CollectionID
		})
	}

	return ix
}

// Get returns the collection with the given id.
func (ix *Index) Get(id string) (domain.Collection, bool) {
	c, ok := ix.byID[id]
	return c, ok
}

// Children returns the direct children of id, ordered by name.
func (ix *Index) Children(id string) []domain.Collection {
	return ix.children[id]
}

// IsDescendant walks parent pointers upward from nodeID and reports whether it reaches
// ancestorID. A node counts as a descendant of itself. A dangling parent ends the walk
// with false; a cycle or a chain deeper than MaxHierarchyDepth is ErrMalformedHierarchy.
func (ix *Index) IsDescendant(nodeID, ancestorID string) (bool, error) {
	_, ok, err := ix.DepthBelow(nodeID, ancestorID)
	return ok, err
}

// DepthBelow is IsDescendant that also returns the number of hops from ancestorID
// down to nodeID.
func (ix *Index) DepthBelow(nodeID, ancestorID string) (int, bool, error) {
	seen := make(map[string]bool)
	current := nodeID

	for hops := 0; hops <= domain.MaxHierarchyDepth; hops++ {
		if current == ancestorID {
			return hops, true, nil
		}

		node, ok := ix.byID[current]
		if !ok || node.ParentID == "" {
			return 0, false, nil
		}
		if node.ParentID == node.CollectionID {
			return 0, false, apperrors.MalformedError(current, "parent points to itself")
		}
		if seen[current] {
			return 0, false, apperrors.MalformedError(nodeID, "parent chain loops")
		}
		seen[current] = true
		current = node.ParentID
	}

	return 0, false, apperrors.MalformedError(nodeID, "parent chain exceeds depth limit")
}

// OwnedBy filters nodes to the subtree under rootID. Nodes whose parent chain is
// malformed are left out and reported; the rest are still returned.
func OwnedBy(nodes []domain.Collection, rootID string) ([]domain.Collection, error) {
	ix := NewIndex(nodes)

	var problems []error
	owned := make([]domain.Collection, 0, len(nodes))
	for _, n := range nodes {
		ok, err := ix.IsDescendant(n.CollectionID, rootID)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		if ok {
			owned = append(owned, n)
		}
	}

	return owned, errors.Join(problems...)
}

// BuildTree assembles the tree rooted at rootID. It returns nil when rootID is not in
// nodes. Revisited nodes and nodes past the depth limit come back as Unavailable leaves
// and are reported through a joined ErrMalformedHierarchy; the rest of the tree is kept.
func BuildTree(nodes []domain.Collection, rootID string) (*domain.TreeNode, error) {
	ix := NewIndex(nodes)

	root, ok := ix.Get(rootID)
	if !ok {
		return nil, nil
	}

	b := &builder{ix: ix, visited: make(map[string]bool)}
	tree := b.build(root, 0)

	return tree, errors.Join(b.problems...)
}

type builder struct {
	ix       *Index
	visited  map[string]bool
	problems []error
}

func (b *builder) build(c domain.Collection, depth int) *domain.TreeNode {
	node := &domain.TreeNode{
		Collection: c,
		Depth:      depth,
		Children:   []*domain.TreeNode{},
	}
	b.visited[c.CollectionID] = true

	for _, child := range b.ix.Children(c.CollectionID) {
		switch {
		case child.CollectionID == c.CollectionID:
			b.problems = append(b.problems, apperrors.MalformedError(child.CollectionID, "parent points to itself"))
			continue
		case b.visited[child.CollectionID]:
			b.problems = append(b.problems, apperrors.MalformedError(child.CollectionID, "collection reached twice"))
			node.Children = append(node.Children, unavailable(child, depth+1))
			continue
		case depth+1 > domain.MaxHierarchyDepth:
			b.problems = append(b.problems, apperrors.MalformedError(child.CollectionID, "exceeds depth limit"))
			node.Children = append(node.Children, unavailable(child, depth+1))
			continue
		}

		node.Children = append(node.Children, b.build(child, depth+1))
	}

	return node
}

func unavailable(c domain.Collection, depth int) *domain.TreeNode {
	return &domain.TreeNode{
		Collection:  c,
		Depth:       depth,
		Children:    []*domain.TreeNode{},
		Unavailable: true,
	}
}

package hierarchy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
)

func coll(id, parent string) domain.Collection {
	return domain.Collection{CollectionID: id, Name: id, ParentID: parent}
}

func countNodes(n *domain.TreeNode, seen map[string]int) int {
	if n == nil {
		return 0
	}
	seen[n.CollectionID]++
	total := 1
	for _, c := range n.Children {
		total += countNodes(c, seen)
	}
	return total
}

func TestBuildTree_Reconstruction(t *testing.T) {
	nodes := []domain.Collection{coll("b", "a"), coll("root", ""), coll("a", "root")}

	tree, err := BuildTree(nodes, "root")
	if err != nil {
		t.Fatalf("BuildTree() error = %v", err)
	}
	if tree == nil || tree.CollectionID != "root" {
		t.Fatalf("expected root node, got %+v", tree)
	}
	if len(tree.Children) != 1 || tree.Children[0].CollectionID != "a" {
		t.Fatalf("root children = %+v, want [a]", tree.Children)
	}
	a := tree.Children[0]
	if len(a.Children) != 1 || a.Children[0].CollectionID != "b" {
		t.Fatalf("a children = %+v, want [b]", a.Children)
	}
	if a.Children[0].Depth != 2 {
		t.Errorf("b depth = %d, want 2", a.Children[0].Depth)
	}

	seen := map[string]int{}
	if total := countNodes(tree, seen); total != len(nodes) {
		t.Errorf("tree has %d nodes, want %d", total, len(nodes))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("node %s visited %d times", id, n)
		}
	}
}

func TestBuildTree_MissingRoot(t *testing.T) {
	tree, err := BuildTree([]domain.Collection{coll("a", "")}, "root")
	if err != nil {
		t.Fatalf("BuildTree() error = %v", err)
	}
	if tree != nil {
		t.Fatalf("expected nil tree, got %+v", tree)
	}
}

func TestBuildTree_ChildrenSortedByName(t *testing.T) {
	nodes := []domain.Collection{
		coll("root", ""),
		{CollectionID: "3", Name: "Videos", ParentID: "root"},
		{CollectionID: "1", Name: "Archive", ParentID: "root"},
		{CollectionID: "2", Name: "Livestreams", ParentID: "root"},
	}

	tree, err := BuildTree(nodes, "root")
	if err != nil {
		t.Fatalf("BuildTree() error = %v", err)
	}

	want := []string{"Archive", "Livestreams", "Videos"}
	for i, name := range want {
		if tree.Children[i].Name != name {
			t.Errorf("child %d = %s, want %s", i, tree.Children[i].Name, name)
		}
	}
}

func TestBuildTree_CycleTerminates(t *testing.T) {
	nodes := []domain.Collection{coll("x", "y"), coll("y", "x")}

	tree, err := BuildTree(nodes, "x")
	if !errors.Is(err, apperrors.ErrMalformedHierarchy) {
		t.Fatalf("expected ErrMalformedHierarchy, got %v", err)
	}
	if tree == nil || len(tree.Children) != 1 {
		t.Fatalf("expected x with one child, got %+v", tree)
	}
	y := tree.Children[0]
	if y.Unavailable {
		t.Error("y itself is reachable and should be available")
	}
	if len(y.Children) != 1 || !y.Children[0].Unavailable {
		t.Fatalf("expected the back edge to x to be an unavailable leaf, got %+v", y.Children)
	}
}

func TestBuildTree_MalformedSubtreeDoesNotAbortSiblings(t *testing.T) {
	nodes := []domain.Collection{
		coll("root", ""),
		coll("good", "root"),
		coll("loop", "root"),
		coll("self", "self"),
	}
	// "root" reached again from below "loop"
	nodes = append(nodes, domain.Collection{CollectionID: "back", Name: "back", ParentID: "loop"})
	nodes[0].ParentID = "back"

	tree, err := BuildTree(nodes, "root")
	if !errors.Is(err, apperrors.ErrMalformedHierarchy) {
		t.Fatalf("expected ErrMalformedHierarchy, got %v", err)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("expected both siblings kept, got %d", len(tree.Children))
	}
	if tree.Children[0].CollectionID != "good" || tree.Children[0].Unavailable {
		t.Errorf("good subtree should be intact, got %+v", tree.Children[0])
	}
}

func TestBuildTree_DepthBound(t *testing.T) {
	nodes := []domain.Collection{coll("n0", "")}
	for i := 1; i <= domain.MaxHierarchyDepth+3; i++ {
		nodes = append(nodes, coll(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", i-1)))
	}

	tree, err := BuildTree(nodes, "n0")
	if !errors.Is(err, apperrors.ErrMalformedHierarchy) {
		t.Fatalf("expected ErrMalformedHierarchy, got %v", err)
	}

	deepest := tree
	for len(deepest.Children) > 0 {
		deepest = deepest.Children[0]
	}
	if !deepest.Unavailable {
		t.Error("node beyond the depth limit should be unavailable")
	}
	if deepest.Depth != domain.MaxHierarchyDepth+1 {
		t.Errorf("cut-off depth = %d, want %d", deepest.Depth, domain.MaxHierarchyDepth+1)
	}
}

func TestIndex_IsDescendant(t *testing.T) {
	ix := NewIndex([]domain.Collection{
		coll("root", ""),
		coll("a", "root"),
		coll("b", "a"),
		coll("other", ""),
		coll("orphan", "missing"),
		coll("x", "y"),
		coll("y", "x"),
		coll("self", "self"),
	})

	tests := []struct {
		name      string
		node      string
		ancestor  string
		want      bool
		malformed bool
	}{
		{"grandchild", "b", "root", true, false},
		{"itself", "root", "root", true, false},
		{"other root", "other", "root", false, false},
		{"dangling parent", "orphan", "root", false, false},
		{"cycle", "x", "root", false, true},
		{"self reference", "self", "root", false, true},
		{"unknown node", "nope", "root", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ix.IsDescendant(tt.node, tt.ancestor)
			if got != tt.want {
				t.Errorf("IsDescendant(%s, %s) = %v, want %v", tt.node, tt.ancestor, got, tt.want)
			}
			if tt.malformed != errors.Is(err, apperrors.ErrMalformedHierarchy) {
				t.Errorf("IsDescendant(%s, %s) error = %v, malformed %v", tt.node, tt.ancestor, err, tt.malformed)
			}
		})
	}
}

func TestIndex_IsDescendantDepthBound(t *testing.T) {
	nodes := []domain.Collection{coll("n0", "")}
	for i := 1; i <= domain.MaxHierarchyDepth+1; i++ {
		nodes = append(nodes, coll(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", i-1)))
	}
	ix := NewIndex(nodes)

	ok, err := ix.IsDescendant(fmt.Sprintf("n%d", domain.MaxHierarchyDepth), "n0")
	if !ok || err != nil {
		t.Errorf("node at the depth limit: got (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = ix.IsDescendant(fmt.Sprintf("n%d", domain.MaxHierarchyDepth+1), "n0")
	if ok || !errors.Is(err, apperrors.ErrMalformedHierarchy) {
		t.Errorf("node past the depth limit: got (%v, %v), want (false, malformed)", ok, err)
	}
}

func TestOwnedBy(t *testing.T) {
	nodes := []domain.Collection{
		coll("root-1", ""),
		coll("v1", "root-1"),
		coll("root-2", ""),
		coll("v2", "root-2"),
		coll("x", "y"),
		coll("y", "x"),
	}

	owned, err := OwnedBy(nodes, "root-1")
	if !errors.Is(err, apperrors.ErrMalformedHierarchy) {
		t.Errorf("expected malformed report for x/y, got %v", err)
	}
	if len(owned) != 2 || owned[0].CollectionID != "root-1" || owned[1].CollectionID != "v1" {
		t.Errorf("owned = %+v, want [root-1 v1]", owned)
	}
}

func TestIndex_DepthBelow(t *testing.T) {
	ix := NewIndex([]domain.Collection{coll("root", ""), coll("a", "root"), coll("b", "a")})

	depth, ok, err := ix.DepthBelow("b", "root")
	if err != nil || !ok || depth != 2 {
		t.Errorf("DepthBelow(b, root) = (%d, %v, %v), want (2, true, nil)", depth, ok, err)
	}

	depth, ok, err = ix.DepthBelow("root", "root")
	if err != nil || !ok || depth != 0 {
		t.Errorf("DepthBelow(root, root) = (%d, %v, %v), want (0, true, nil)", depth, ok, err)
	}

	_, ok, _ = ix.DepthBelow("root", "b")
	if ok {
		t.Error("an ancestor is not below its descendant")
	}
}

package proptree

import (
	"testing"
)

func TestBuildRoutes_FlattensDepthFirst(t *testing.T) {
	a := NewTransientLeaf(Props{ID: 1}, 1, 1).Persist()
	b := NewTransientLeaf(Props{ID: 2}, 1, 1).Persist()
	root := NewGroup(Props{ID: 0}, []*Node{a, b})

	routes := BuildRoutes(root)
	if routes[1].Depth != 1 || routes[1].Path[0] != 0 {
		t.Fatalf("route for id=1: %+v", routes[1])
	}
	if routes[2].Depth != 1 || routes[2].Path[0] != 1 {
		t.Fatalf("route for id=2: %+v", routes[2])
	}
	if routes[0].Depth != 0 {
		t.Fatalf("root route depth = %d, want 0", routes[0].Depth)
	}
	root.Release()
}

func TestMutateChild_IsolatesSibling(t *testing.T) {
	a := NewTransientLeaf(Props{ID: 1, Opacity: 0x1111}, 1, 1).Persist()
	b := NewTransientLeaf(Props{ID: 2, Opacity: 0x2222}, 1, 1).Persist()
	root := NewGroup(Props{ID: 0}, []*Node{a, b})

	tn := root.Transient()
	child := tn.MutateChild(0)
	child.SetProps(Props{ID: 1, Opacity: 0x3333})

	// Sibling untouched: still readable directly from tn.
	if tn.Child(1).Props.Opacity != 0x2222 {
		t.Fatal("mutating child 0 should not affect sibling 1")
	}

	persisted := tn.Persist()
	defer persisted.Release()
	if persisted.Children[0].Props.Opacity != 0x3333 {
		t.Fatal("persisted tree did not pick up the mutated child's new props")
	}
	if persisted.Children[1].Props.Opacity != 0x2222 {
		t.Fatal("persisted tree's untouched sibling should keep original props")
	}

	root.Release()
}

func TestEntryTransientContent_WalksPath(t *testing.T) {
	inner := NewTransientLeaf(Props{ID: 2}, 1, 1).Persist()
	group := NewTransientGroup(Props{ID: 1})
	group.InsertChild(0, inner)
	outerPersisted := group.Persist()
	root := NewGroup(Props{ID: 0}, []*Node{outerPersisted})

	tn := root.Transient()
	leafBuilder := EntryTransientContent(tn, []int{0, 0})
	if leafBuilder == nil || leafBuilder.IsGroup() {
		t.Fatal("expected a leaf builder at path [0,0]")
	}
	root.Release()
}

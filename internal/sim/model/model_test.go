package model

import "testing"

func TestCanStackWith(t *testing.T) {
	a := ItemStack{ID: "I1", Type: "STEEL", Count: 10, Capacity: 75, Storable: true}
	b := ItemStack{ID: "I2", Type: "STEEL", Count: 3, Capacity: 75, Storable: true}
	if !a.CanStackWith(b) {
		t.Fatalf("expected same-type stacks to stack")
	}
	if a.CanStackWith(a) {
		t.Fatalf("a stack must not stack with itself")
	}
	b.Quality = 2
	if a.CanStackWith(b) {
		t.Fatalf("expected quality mismatch to block stacking")
	}
	if !a.SameKind(b) {
		t.Fatalf("expected quality mismatch to still count as same kind")
	}
	b.Quality = 0
	b.Storable = false
	if a.CanStackWith(b) {
		t.Fatalf("expected non-storable stack to be rejected")
	}
}

func TestJobKindIsStorage(t *testing.T) {
	if !JobToCell.IsStorage() || !JobToContainer.IsStorage() {
		t.Fatalf("storage kinds not recognized")
	}
	if JobOther.IsStorage() {
		t.Fatalf("OTHER must not be a storage kind")
	}
}

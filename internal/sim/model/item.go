package model

// ItemStack is one physical stack lying on a cell (or carried toward one).
type ItemStack struct {
	ID       string
	Type     string
	Quality  int
	Count    int
	Capacity int // natural stack capacity of Type
	Storable bool
}

// CanStackWith reports whether two distinct stacks may merge into one.
func (s ItemStack) CanStackWith(o ItemStack) bool {
	if s.ID != "" && s.ID == o.ID {
		return false
	}
	if !s.Storable || !o.Storable {
		return false
	}
	return s.Type == o.Type && s.Quality == o.Quality
}

// SameKind is the looser relation used for duplicate counting: stackable or sharing a type.
func (s ItemStack) SameKind(o ItemStack) bool {
	return s.CanStackWith(o) || s.Type == o.Type
}

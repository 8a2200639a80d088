package ast

// ---------------------------------------------------------------------------
// Scope arena
//
// Scopes live in a flat arena owned by the Program and refer to their
// parent by handle. Chains are only ever walked upward.
// ---------------------------------------------------------------------------

// ScopeID is a handle into a Scopes arena.
type ScopeID int

// NoScope marks the absence of a parent (a root scope).
const NoScope ScopeID = -1

// ScopeKind says what opened a scope.
type ScopeKind int

const (
	ScopeMain  ScopeKind = iota // top-level statements
	ScopeFunc                   // function parameters and top-level locals
	ScopeBlock                  // begin/if/while bodies
)

// Binding is one named entry of a scope: a parameter or a local.
type Binding struct {
	Name  string
	Type  Type
	Param bool
	Pos   Position
}

// Scope is an ordered name→declaration mapping with a parent handle.
type Scope struct {
	Parent   ScopeID
	Kind     ScopeKind
	Bindings []Binding
}

// Declare appends a binding. It returns false when the name is already
// bound in this scope.
func (sc *Scope) Declare(b Binding) bool {
	if _, ok := sc.Local(b.Name); ok {
		return false
	}
	sc.Bindings = append(sc.Bindings, b)
	return true
}

// Local looks a name up in this scope only.
func (sc *Scope) Local(name string) (Binding, bool) {
	for _, b := range sc.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// Scopes is the arena.
type Scopes struct {
	list []*Scope
}

// NewScopes returns an empty arena.
func NewScopes() *Scopes {
	return &Scopes{}
}

// New allocates a scope and returns its handle.
func (s *Scopes) New(parent ScopeID, kind ScopeKind) ScopeID {
	s.list = append(s.list, &Scope{Parent: parent, Kind: kind})
	return ScopeID(len(s.list) - 1)
}

// Get returns the scope for id. It panics on an invalid handle.
func (s *Scopes) Get(id ScopeID) *Scope {
	return s.list[id]
}

// Len returns the number of scopes in the arena.
func (s *Scopes) Len() int {
	return len(s.list)
}

// Lookup resolves name from scope id outward and reports the scope that
// binds it.
func (s *Scopes) Lookup(id ScopeID, name string) (Binding, ScopeID, bool) {
	for id != NoScope {
		sc := s.list[id]
		if b, ok := sc.Local(name); ok {
			return b, id, true
		}
		id = sc.Parent
	}
	return Binding{}, NoScope, false
}

package index

import "github.com/RishiKendai/matchcode/internal/models"

// Registry holds one Index per kind over a shared store.
type Registry struct {
	store   Store
	indexes map[string]*Index
}

func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		indexes: make(map[string]*Index, len(models.IndexKinds)),
	}
	for _, kind := range models.IndexKinds {
		r.indexes[kind.Name] = New(kind, store, opts...)
	}
	return r
}

// Get returns the index of kind. It panics on an unknown kind.
func (r *Registry) Get(kind models.IndexKind) *Index {
	ix, ok := r.indexes[kind.Name]
	if !ok {
		panic("index: unknown kind " + kind.Name)
	}
	return ix
}

func (r *Registry) Store() Store {
	return r.store
}

package models

import (
	"strings"
	"sync"
)

// Schema maps foreign-key fields to the entity type they reference.
// Explicit relations take precedence; otherwise a field named "<Type>ID"
// references <Type> when that type is registered.
type Schema struct {
	types     map[string]struct{}
	relations map[string]map[string]string

	mu    sync.RWMutex
	cache map[string]relatedType
}

type relatedType struct {
	name string
	ok   bool
}

// NewSchema creates a schema for the given set of entity types.
func NewSchema(types []string) *Schema {
	s := &Schema{
		types:     make(map[string]struct{}, len(types)),
		relations: make(map[string]map[string]string),
		cache:     make(map[string]relatedType),
	}
	for _, t := range types {
		s.types[t] = struct{}{}
	}
	return s
}

// Relate registers field of typ as a reference to related.
func (s *Schema) Relate(typ, field, related string) *Schema {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.relations[typ] == nil {
		s.relations[typ] = make(map[string]string)
	}
	s.relations[typ][field] = related
	s.cache = make(map[string]relatedType)
	return s
}

// HasType reports whether typ is part of the schema.
func (s *Schema) HasType(typ string) bool {
	_, ok := s.types[typ]
	return ok
}

// Types returns the registered type names.
func (s *Schema) Types() []string {
	out := make([]string, 0, len(s.types))
	for t := range s.types {
		out = append(out, t)
	}
	return out
}

// RelatedType resolves the type referenced by field of typ.
// The second return value is false when the field is not a foreign key.
func (s *Schema) RelatedType(typ, field string) (string, bool) {
	if field == FieldID || !strings.HasSuffix(field, FieldID) {
		if rel, ok := s.explicit(typ, field); ok {
			return rel, true
		}
		return "", false
	}

	key := typ + "." + field
	s.mu.RLock()
	cached, hit := s.cache[key]
	s.mu.RUnlock()
	if hit {
		return cached.name, cached.ok
	}

	res := relatedType{}
	if rel, ok := s.explicit(typ, field); ok {
		res = relatedType{name: rel, ok: true}
	} else {
		// Соглашение: ParentID -> Parent
		name := strings.TrimSuffix(field, FieldID)
		res = relatedType{name: name, ok: name != ""}
	}

	s.mu.Lock()
	s.cache[key] = res
	s.mu.Unlock()

	return res.name, res.ok
}

func (s *Schema) explicit(typ, field string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.relations[typ][field]
	return rel, ok
}

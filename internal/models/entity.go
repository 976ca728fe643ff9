package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// FieldID is the name of the identity field every entity carries.
const FieldID = "ID"

// Entity представляет запись произвольного типа: отображение имени поля в значение.
// Всегда содержит поле ID:
//   - ID > 0 — идентификатор, подтвержденный сервером;
//   - ID < 0 — временный локальный идентификатор (создано offline);
//   - ID == 0 — новая, еще не сохраненная запись.
type Entity map[string]any

// ID returns the entity identifier, 0 when the field is missing or not numeric.
func (e Entity) ID() int64 {
	id, _ := ToInt64(e[FieldID])
	return id
}

// SetID overwrites the identity field.
func (e Entity) SetID(id int64) {
	e[FieldID] = id
}

// Int64 returns a numeric field as int64.
func (e Entity) Int64(field string) (int64, bool) {
	v, ok := e[field]
	if !ok {
		return 0, false
	}
	return ToInt64(v)
}

// IsLocal reports whether the entity has never been confirmed by the server.
func (e Entity) IsLocal() bool {
	return e.ID() <= 0
}

// ForeignKeys returns the names of fields that follow the "<Type>ID"
// convention, sorted for deterministic processing.
func (e Entity) ForeignKeys() []string {
	var keys []string
	for field := range e {
		if field != FieldID && strings.HasSuffix(field, FieldID) {
			keys = append(keys, field)
		}
	}
	sort.Strings(keys)
	return keys
}

// Clone создает глубокую копию entity
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case Entity:
		return val.Clone()
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	case []byte:
		b := make([]byte, len(val))
		copy(b, val)
		return b
	default:
		return v
	}
}

// UnmarshalJSON decodes an entity keeping integral numbers as int64 so that
// identifiers and foreign keys survive a storage round trip unchanged.
func (e *Entity) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode entity: %w", err)
	}
	if raw == nil {
		*e = nil
		return nil
	}

	*e = Entity(normalizeMap(raw))
	return nil
}

func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		return normalizeMap(val)
	case []any:
		for i := range val {
			val[i] = normalizeValue(val[i])
		}
		return val
	default:
		return v
	}
}

// ToInt64 converts the numeric representations produced by Go code and by
// JSON decoding into int64. Non-integral floats are rejected.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case float32:
		f := float64(n)
		if f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// Batch группирует сущности по типу для пакетных операций.
type Batch map[string][]Entity

// Types returns the type names present in the batch, sorted.
func (b Batch) Types() []string {
	types := make([]string, 0, len(b))
	for typ := range b {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Len returns the total number of entities across all types.
func (b Batch) Len() int {
	n := 0
	for _, entities := range b {
		n += len(entities)
	}
	return n
}

// Clone returns a deep copy of the batch.
func (b Batch) Clone() Batch {
	out := make(Batch, len(b))
	for typ, entities := range b {
		cloned := make([]Entity, len(entities))
		for i, e := range entities {
			cloned[i] = e.Clone()
		}
		out[typ] = cloned
	}
	return out
}

package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Meta is a string-keyed metadata bag restricted to a small closed union of
// value kinds: string, number, bool, and nested bag. Keeping the union closed
// keeps the risk and policy logic exhaustive and testable.
type Meta map[string]Value

// ValueKind discriminates the members of the Value union.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindMap
)

// Value is one member of the metadata union. The zero value is the empty
// string.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	m    Meta
}

// String wraps a string value.
func String(v string) Value { return Value{kind: KindString, str: v} }

// Number wraps a numeric value.
func Number(v float64) Value { return Value{kind: KindNumber, num: v} }

// Bool wraps a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Map wraps a nested bag.
func Map(v Meta) Value { return Value{kind: KindMap, m: v} }

// Kind reports which member of the union this value holds.
func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string member, or "" for other kinds.
func (v Value) Str() string {
	if v.kind == KindString {
		return v.str
	}
	return ""
}

// Num returns the numeric member, or 0 for other kinds.
func (v Value) Num() float64 {
	if v.kind == KindNumber {
		return v.num
	}
	return 0
}

// Nested returns the nested bag, or nil for other kinds.
func (v Value) Nested() Meta {
	if v.kind == KindMap {
		return v.m
	}
	return nil
}

// Truthy reports whether the value reads as "enabled": a true bool, a
// non-zero number, or one of the conventional affirmative strings.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num != 0
	case KindString:
		switch strings.ToLower(strings.TrimSpace(v.str)) {
		case "true", "1", "yes", "on":
			return true
		}
	}
	return false
}

// MarshalJSON renders the underlying member directly, so bags serialize as
// plain JSON objects.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindMap:
		return json.Marshal(v.m)
	}
	return nil, fmt.Errorf("unknown meta value kind %d", v.kind)
}

// UnmarshalJSON maps JSON scalars and objects onto the union. Arrays and
// nulls have no member; they decode to the empty string so round-trips never
// fail on foreign input.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = fromAny(raw)
	return nil
}

func fromAny(raw any) Value {
	switch t := raw.(type) {
	case string:
		return String(t)
	case float64:
		return Number(t)
	case bool:
		return Bool(t)
	case map[string]any:
		m := make(Meta, len(t))
		for k, nested := range t {
			m[k] = fromAny(nested)
		}
		return Map(m)
	}
	return String("")
}

// Clone returns a deep copy of the bag.
func (m Meta) Clone() Meta {
	if m == nil {
		return nil
	}
	cp := make(Meta, len(m))
	for k, v := range m {
		if v.kind == KindMap {
			cp[k] = Map(v.m.Clone())
			continue
		}
		cp[k] = v
	}
	return cp
}

// Merge returns a copy of m with all entries of other applied on top.
func (m Meta) Merge(other Meta) Meta {
	out := m.Clone()
	if out == nil {
		out = make(Meta, len(other))
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Str is a convenience accessor: the string member of key, or "".
func (m Meta) Str(key string) string {
	return m[key].Str()
}

// Truthy is a convenience accessor: whether key is present and truthy.
func (m Meta) Truthy(key string) bool {
	v, ok := m[key]
	return ok && v.Truthy()
}

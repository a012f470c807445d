package datatype

import "sync"

// Compatibility decides whether a value of one type may be handed to a
// converter declared for another.
type Compatibility interface {
	IsCompatible(valueType, declaredType DataType) bool
}

// Hierarchy is a closed declaration of parent types. It is safe for
// concurrent use.
type Hierarchy struct {
	mu      sync.RWMutex
	parents map[string][]string
}

// NewHierarchy creates an empty hierarchy. Every type is still compatible
// with itself and with Any.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{parents: make(map[string][]string)}
}

// Declare records that values of child are also values of each parent.
func (h *Hierarchy) Declare(child string, parents ...string) *Hierarchy {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range parents {
		if p == child || contains(h.parents[child], p) {
			continue
		}
		h.parents[child] = append(h.parents[child], p)
	}
	return h
}

// Parents returns the direct parents declared for a type name.
func (h *Hierarchy) Parents(name string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.parents[name]))
	copy(out, h.parents[name])
	return out
}

// IsCompatible reports whether valueType can stand in for declaredType. The
// relation is reflexive and transitive. Collections are compatible when
// their element types are, and Any accepts every type.
func (h *Hierarchy) IsCompatible(valueType, declaredType DataType) bool {
	if declaredType == Any || valueType == declaredType {
		return true
	}
	if valueType.IsCollection() != declaredType.IsCollection() {
		return false
	}
	if valueType.IsCollection() {
		return h.isSubtype(valueType.elem, declaredType.elem)
	}
	return h.isSubtype(valueType.name, declaredType.name)
}

func (h *Hierarchy) isSubtype(child, ancestor string) bool {
	if child == ancestor || ancestor == NameAny {
		return true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := map[string]bool{child: true}
	queue := []string{child}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range h.parents[cur] {
			if p == ancestor {
				return true
			}
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return false
}

// Builtin returns the hierarchy of the builtin cell types: booleans are
// ints, ints are longs and longs are doubles, mirroring the numeric value
// interfaces of the host table.
func Builtin() *Hierarchy {
	return NewHierarchy().
		Declare(NameBoolean, NameInt).
		Declare(NameInt, NameLong).
		Declare(NameLong, NameDouble)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

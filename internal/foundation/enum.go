package foundation

import (
	"fmt"
	"slices"
	"strings"
)

// Normalizer maps loosely formatted config strings onto a closed enum.
type Normalizer[T comparable] struct {
	name     string
	values   map[string]T
	fallback T
	keys     []string
}

// NewNormalizer builds a normalizer. Keys are case-folded and trimmed;
// fallback is returned by Normalize for empty input.
func NewNormalizer[T comparable](name string, values map[string]T, fallback T) *Normalizer[T] {
	n := &Normalizer[T]{
		name:     name,
		values:   make(map[string]T, len(values)),
		fallback: fallback,
	}
	for k, v := range values {
		key := fold(k)
		n.values[key] = v
		n.keys = append(n.keys, key)
	}
	slices.Sort(n.keys)
	return n
}

// Normalize returns the enum value for raw, or the fallback when raw is
// empty or unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.values[fold(raw)]; ok {
		return v
	}
	return n.fallback
}

// Parse is the strict variant of Normalize. Empty input yields the
// fallback; unknown input is an error naming the accepted keys.
func (n *Normalizer[T]) Parse(raw string) (T, error) {
	if fold(raw) == "" {
		return n.fallback, nil
	}
	if v, ok := n.values[fold(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q (valid: %s)", n.name, raw, strings.Join(n.keys, ", "))
}

// Keys lists the accepted spellings in sorted order.
func (n *Normalizer[T]) Keys() []string {
	return slices.Clone(n.keys)
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

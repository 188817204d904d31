package model

import (
	"bytes"
	"encoding/json"
)

// Optional is a field of a partial update. It has three states:
//
//	absent  → Set == false           (leave the stored value unchanged)
//	null    → Set == true, Null == true
//	value   → Set == true, Value holds it (false and 0 included)
//
// encoding/json only calls UnmarshalJSON for keys that are present in the
// document, and it does call it for an explicit null, which is what makes
// the absent/null distinction possible.
type Optional[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Null returns a present Optional holding an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// HasValue reports whether the field was provided with a non-null value.
func (o Optional[T]) HasValue() bool {
	return o.Set && !o.Null
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

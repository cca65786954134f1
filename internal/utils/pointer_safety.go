package utils

// Value dereferences v, returning the zero value for nil.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// OptionalString returns nil for an empty string so optional wire fields
// are omitted rather than sent empty.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

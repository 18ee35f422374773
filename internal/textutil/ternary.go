package textutil

// Ternary returns a when cond is true and b otherwise. Useful for inline
// label selection in log fields and rendered output.
func Ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

// Package textutil provides small text helpers shared across packages.
package textutil

// Truncate shortens s to at most max bytes, appending an ellipsis when
// anything was cut. Used for error-message previews of response bodies.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

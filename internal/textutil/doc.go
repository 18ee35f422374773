// Package textutil provides small text helpers shared across the intake
// path and CLI rendering: file name sanitization for names that leave
// courier's control, and a generic conditional for inline label selection.
package textutil

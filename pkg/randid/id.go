// Package randid provides random ID and security code generation.
package randid

import (
	"crypto/rand"
	"strings"
)

const (
	idChars = "abcdefghijklmnopqrstuvwxyz0123456789"
	// codeChars omits look-alike characters (0/o, 1/l/i).
	codeChars = "abcdefghjkmnpqrstuvwxyz23456789"
)

// Generate creates a random lowercase alphanumeric ID of the given length.
func Generate(length int) string {
	return pick(idChars, length)
}

// Code creates a class security code of groups hyphen-separated groups,
// each size characters long, e.g. "k7qm-4xwa-p2hr".
func Code(groups, size int) string {
	parts := make([]string, groups)
	for i := range parts {
		parts[i] = pick(codeChars, size)
	}
	return strings.Join(parts, "-")
}

func pick(chars string, length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = chars[int(b[i])%len(chars)]
	}
	return string(b)
}

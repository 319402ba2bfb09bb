// Package dbid generates the database instance identifier stored in
// metadata and stamped onto every page, so that a page loaded from disk
// can be checked against the database that wrote it.
package dbid

import "github.com/google/uuid"

// New returns a fresh random database identifier.
func New() [16]byte {
	id := uuid.New()
	var out [16]byte
	copy(out[:], id[:])
	return out
}

// Nil returns the all-zero identifier.
func Nil() [16]byte {
	return [16]byte{}
}

// String renders an identifier in the canonical UUID text form.
func String(id [16]byte) string {
	u, err := uuid.FromBytes(id[:])
	if err != nil {
		return ""
	}
	return u.String()
}

// Package idgen generates opaque entity ids for lanes, tasks, and agents.
package idgen

import "github.com/google/uuid"

// New returns a new opaque id with the given short prefix, e.g. "task-<uuid>".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Suffix8 returns the last 8 characters of id, used as the completion-signal
// disambiguator (sigId).
func Suffix8(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

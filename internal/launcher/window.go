package launcher

import (
	"fmt"

	"github.com/tmuxagentsd/daemon/internal/store"
)

// taskWindowName builds the naming convention the multiplexer window for a
// task is created (and later re-found) under: the first four characters of
// the description, a dash, then the first fifteen characters of the id.
func taskWindowName(t *store.Task) string {
	return fmt.Sprintf("%s-%s", firstN(t.Description, 4), firstN(t.ID, 15))
}

func firstN(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}

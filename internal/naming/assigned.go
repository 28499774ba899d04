package naming

import (
	"strings"
	"sync"
)

// Assigned is the set of filenames already taken in one target directory
// during a run. Membership is case-insensitive so results stay unique on
// case-insensitive filesystems. Safe for concurrent use.
type Assigned struct {
	mu    sync.Mutex
	names map[string]string
}

// NewAssigned returns a set pre-seeded with names.
func NewAssigned(names ...string) *Assigned {
	a := &Assigned{names: make(map[string]string, len(names))}
	for _, n := range names {
		a.names[foldKey(n)] = n
	}
	return a
}

// Release frees a name, e.g. when its rename failed.
func (a *Assigned) Release(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.names, foldKey(name))
}

func foldKey(name string) string {
	return strings.ToLower(name)
}

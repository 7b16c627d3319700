package overlay

import "github.com/jamsocket/aper/pkg/store"

// Handle is the minimal read-write surface an overlay needs. *store.Store
// satisfies it directly; a user `apply` function receives one of these
// (usually the Store itself) and attaches overlays to it.
type Handle interface {
	Get(path store.Path) ([]byte, bool)
	Set(path store.Path, value []byte)
	Delete(path store.Path)
	Children(path store.Path) []store.ChildInfo
}

var _ Handle = (*store.Store)(nil)

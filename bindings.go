package purelite

import (
	"fmt"
	"sync"
)

var (
	libOnce sync.Once
	libErr  error
)

// ensureLib loads the SQLite shared library and registers the C ABI exactly
// once per process. Every entry point that touches a c_ function calls it
// first, so a missing system library surfaces as an error from Open rather
// than an init-time panic.
func ensureLib() error {
	libOnce.Do(func() {
		handle, err := loadLibrary()
		if err != nil {
			libErr = fmt.Errorf("purelite: unable to load sqlite3 library: %w", err)
			return
		}
		libErr = register_sqlite3(handle)
	})
	return libErr
}

//go:build !windows

package purelite

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ebitengine/purego"
)

// libraryCandidates returns the shared-library names to try for the current
// platform, most specific first. PURELITE_LIBRARY_PATH overrides the search
// with an explicit path.
func libraryCandidates() []string {
	if p := os.Getenv("PURELITE_LIBRARY_PATH"); p != "" {
		return []string{p}
	}
	switch runtime.GOOS {
	case "darwin":
		return []string{"/usr/lib/libsqlite3.dylib", "libsqlite3.dylib", "libsqlite3.0.dylib"}
	default:
		return []string{"libsqlite3.so.0", "libsqlite3.so"}
	}
}

func loadLibrary() (uintptr, error) {
	candidates := libraryCandidates()
	var firstErr error
	for _, name := range candidates {
		handle, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return handle, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return 0, fmt.Errorf("dlopen (tried %v): %w", candidates, firstErr)
}

func dlsym(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

//go:build windows

package purelite

import (
	"fmt"
	"os"
	"syscall"
)

// libraryCandidates returns the shared-library names to try on Windows.
// winsqlite3.dll ships with the OS; sqlite3.dll covers a manually installed
// copy on PATH. PURELITE_LIBRARY_PATH overrides the search.
func libraryCandidates() []string {
	if p := os.Getenv("PURELITE_LIBRARY_PATH"); p != "" {
		return []string{p}
	}
	return []string{"winsqlite3.dll", "sqlite3.dll"}
}

func loadLibrary() (uintptr, error) {
	candidates := libraryCandidates()
	var firstErr error
	for _, name := range candidates {
		handle, err := syscall.LoadLibrary(name)
		if err == nil {
			return uintptr(handle), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return 0, fmt.Errorf("LoadLibrary (tried %v): %w", candidates, firstErr)
}

func dlsym(handle uintptr, name string) (uintptr, error) {
	addr, err := syscall.GetProcAddress(syscall.Handle(handle), name)
	return uintptr(addr), err
}

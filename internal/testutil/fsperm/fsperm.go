// Package fsperm asserts the on-disk permission guarantees of persisted
// user state in tests.
package fsperm

import (
	"os"
	"runtime"
	"testing"
)

// AssertStateDirPrivate verifies that the state directory exists and is
// readable by its owner only. Windows has no POSIX permission bits, so the
// mode check is skipped there.
func AssertStateDirPrivate(t testing.TB, dir string) {
	t.Helper()

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat state dir: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected a directory, got a file: %s", dir)
	}
	if runtime.GOOS == "windows" {
		return
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Fatalf("state dir must be 0700, got %04o for %s", perm, dir)
	}
}

// AssertStateFilePrivate verifies that a persisted state document is
// owner-readable only.
func AssertStateFilePrivate(t testing.TB, path string) {
	t.Helper()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat state file: %v", err)
	}
	if info.IsDir() {
		t.Fatalf("expected a file, got a directory: %s", path)
	}
	if runtime.GOOS == "windows" {
		return
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("state file must be 0600, got %04o for %s", perm, path)
	}
}

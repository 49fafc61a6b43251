package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWithUserWritePermission(t *testing.T) {
	tests := []struct {
		name string
		in   os.FileMode
		want os.FileMode
	}{
		{"read-only gains write", 0444, 0644},
		{"already writable unchanged", 0755, 0755},
		{"zero perms gain write", 0000, 0200},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := WithUserWritePermission(tc.in); got != tc.want {
				t.Errorf("WithUserWritePermission(%o) = %o, want %o", tc.in, got, tc.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Run("tilde expands to home", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory available")
		}

		got, err := ExpandPath("~/backups")
		if err != nil {
			t.Fatalf("ExpandPath returned error: %v", err)
		}
		want := filepath.Join(home, "backups")
		if got != want {
			t.Errorf("ExpandPath(~/backups) = %q, want %q", got, want)
		}
	})

	t.Run("relative becomes absolute", func(t *testing.T) {
		got, err := ExpandPath("some/dir")
		if err != nil {
			t.Fatalf("ExpandPath returned error: %v", err)
		}
		if !filepath.IsAbs(got) {
			t.Errorf("expected absolute path, got %q", got)
		}
	})

	t.Run("absolute unchanged", func(t *testing.T) {
		dir := t.TempDir()
		got, err := ExpandPath(dir)
		if err != nil {
			t.Fatalf("ExpandPath returned error: %v", err)
		}
		if got != dir {
			t.Errorf("ExpandPath(%q) = %q, want unchanged", dir, got)
		}
	})
}

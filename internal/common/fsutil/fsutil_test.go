package fsutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home) // os.UserHomeDir on windows

	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"/data/ckpt", "/data/ckpt"},
		{"~", home},
		{"~/checkpoints/lumina", filepath.Join(home, "checkpoints", "lumina")},
	}
	for _, c := range cases {
		got, err := ExpandHome(c.in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ExpandHome(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExpandHomeWithoutHome(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("HOME semantics differ on windows")
	}
	t.Setenv("HOME", "")
	if _, err := ExpandHome("~/x"); err == nil {
		t.Fatal("expected error when the home directory cannot be resolved")
	}
}

package targets

import (
	"os"
	"path/filepath"
	"testing"
)

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPreservesOrderAndDedupes(t *testing.T) {
	path := write(t, "url\nhttps://instagram.com/b\nhttps://instagram.com/a\n\nhttps://instagram.com/b\n")
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"https://instagram.com/b", "https://instagram.com/a"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLoadFindsURLColumnAmongOthers(t *testing.T) {
	path := write(t, "name,URL,notes\nAlice, https://instagram.com/alice ,check later\n")
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "https://instagram.com/alice" {
		t.Fatalf("got %v", got)
	}
}

func TestLoadRejectsMissingURLColumn(t *testing.T) {
	path := write(t, "username\nalice\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing url column")
	}
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	path := write(t, "")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	rows := [][3]string{
		{"https://instagram.com/a", "completed", "dm sent"},
		{"https://instagram.com/b", "skipped", "too few followers"},
	}
	if err := Save(path, rows); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b[:11]) != "url,status," {
		t.Fatalf("header missing: %q", string(b))
	}
}

package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, body string) string {
		t.Helper()
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	db := write("db/profiles.db", "1234")
	write("db/profiles.db-wal", "56")
	write("db/profiles.db-shm", "7")
	vec := write("indices/candidates.vec", "abcdefgh")
	write("indices/candidates.ids", "{}")
	directory := filepath.Join(dir, "directory")
	write("directory/store/root.bolt", "xyz")

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{db}, 4},
		{"database with WAL siblings", []string{db + "*"}, 7},
		{"index pair", []string{filepath.Join(dir, "indices", "candidates") + ".*"}, 10},
		{"directory tree", []string{directory}, 3},
		{"missing path skipped", []string{vec, filepath.Join(dir, "absent")}, 8},
		{"empty path skipped", []string{"", db}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DiskUsageBytes(%v) = %d, want %d", tt.paths, got, tt.want)
			}
		})
	}
}

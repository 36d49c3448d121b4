package library

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"stax/internal/filesystem"
)

func TestParseCopyPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    CopyPolicy
		wantErr bool
	}{
		{"", CopySoft, false},
		{"soft", CopySoft, false},
		{"SOFT_COPY", CopySoft, false},
		{"hard", CopyHard, false},
		{" hard_copy ", CopyHard, false},
		{"move", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCopyPolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCopyPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCopyPolicy(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGroup(t *testing.T) {
	dir := "/mnt/shots/seq010"
	items := Group(dir, []string{
		"plateA.1002.exr",
		"plateA.1001.exr",
		"ref.jpg",
		"lonely.0001.exr",
	})

	if len(items) != 3 {
		t.Fatalf("Group returned %d items, want 3: %+v", len(items), items)
	}

	seq := items[0]
	if seq.Name != "plateA" || seq.FrameRange != "1001-1002" {
		t.Errorf("sequence = %+v", seq)
	}
	if seq.Path != filepath.Join(dir, "plateA.####.exr") {
		t.Errorf("sequence path = %q", seq.Path)
	}
	if len(seq.Files) != 2 || seq.Files[0] != filepath.Join(dir, "plateA.1001.exr") {
		t.Errorf("sequence files = %v", seq.Files)
	}

	names := map[string]Item{}
	for _, it := range items[1:] {
		names[it.Name] = it
	}
	if it, ok := names["lonely.0001"]; !ok || it.FrameRange != "" {
		t.Errorf("single frame should be a plain file, got %+v", names)
	}
	if it, ok := names["ref"]; !ok || it.Path != filepath.Join(dir, "ref.jpg") {
		t.Errorf("ref item = %+v", it)
	}
}

func TestTotalSize(t *testing.T) {
	dir := t.TempDir()
	var files []string
	var want int64
	for i := range 40 {
		p := filepath.Join(dir, fmt.Sprintf("plate.%04d.exr", 1001+i))
		data := make([]byte, i+1)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, p)
		want += int64(len(data))
	}
	retry := filesystem.DefaultRetryConfig()

	got, err := totalSize(files, retry)
	if err != nil {
		t.Fatalf("totalSize failed: %v", err)
	}
	if got != want {
		t.Errorf("totalSize = %d, want %d", got, want)
	}

	if _, err := totalSize(append(files, filepath.Join(dir, "missing.exr")), retry); err == nil {
		t.Error("expected error for a missing file")
	}
}

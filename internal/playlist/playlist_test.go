package playlist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestItemName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/mnt/shots/fire_burst.mov", "fire_burst"},
		{"/mnt/shots/seq010/plateA.####.exr", "plateA"},
		{"/mnt/shots/seq010/plateA_####.exr", "plateA"},
		{`\\server\share\bg.exr`, "bg"},
		{`C:\plates\smoke.v002.mov`, "smoke.v002"},
		{"noext", "noext"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ItemName(tt.path); got != tt.want {
				t.Errorf("ItemName(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "dailies & notes", []string{"/mnt/a.mov", "/mnt/b.####.exr"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`<?wpl version="1.0"?>`,
		"<title>dailies &amp; notes</title>",
		`<meta name="ItemCount" content="2"></meta>`,
		`<media src="/mnt/a.mov"></media>`,
		`<media src="/mnt/b.####.exr"></media>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteAndParse(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(clip, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "gone.mov")
	seq := filepath.Join(dir, "plate.####.exr")

	file := filepath.Join(dir, "review.wpl")
	if err := WriteFile(file, "review", []string{clip, missing, seq}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	pl, err := ParseWPL(file)
	if err != nil {
		t.Fatalf("ParseWPL failed: %v", err)
	}
	if pl.Name != "review" || len(pl.Items) != 3 {
		t.Fatalf("parsed %+v", pl)
	}

	want := []struct {
		name   string
		exists bool
	}{
		{"clip", true},
		{"gone", false},
		{"plate", false},
	}
	for i, w := range want {
		it := pl.Items[i]
		if it.Name != w.name || it.Exists != w.exists {
			t.Errorf("item %d = %+v, want name %q exists %v", i, it, w.name, w.exists)
		}
	}
	if pl.Items[0].Path != filepath.ToSlash(clip) {
		t.Errorf("Path = %q, want %q", pl.Items[0].Path, filepath.ToSlash(clip))
	}
}

func TestParseWPLPaths(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "media")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "rel.mov"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	content := `<?wpl version="1.0"?>
<smil>
  <head></head>
  <body>
    <seq>
      <media src="media\rel.mov"/>
      <media src="\\server\share\unc.mov"/>
      <media src="C:\plates\drive.exr"/>
    </seq>
  </body>
</smil>`
	file := filepath.Join(dir, "untitled.wpl")
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	pl, err := ParseWPL(file)
	if err != nil {
		t.Fatalf("ParseWPL failed: %v", err)
	}
	if pl.Name != "untitled" {
		t.Errorf("Name = %q, want file name fallback", pl.Name)
	}
	if len(pl.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(pl.Items))
	}

	rel := pl.Items[0]
	if !rel.Exists || rel.Path != filepath.ToSlash(filepath.Join(dir, "media", "rel.mov")) {
		t.Errorf("relative item = %+v", rel)
	}
	if unc := pl.Items[1]; unc.Path != "//server/share/unc.mov" || unc.Name != "unc" || unc.Src != `\\server\share\unc.mov` {
		t.Errorf("UNC item = %+v", unc)
	}
	if drive := pl.Items[2]; drive.Path != "C:/plates/drive.exr" || drive.Name != "drive" {
		t.Errorf("drive item = %+v", drive)
	}
}

func TestParseWPLErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := ParseWPL(filepath.Join(dir, "missing.wpl")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.wpl")
	if err := os.WriteFile(bad, []byte("<smil><head>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseWPL(bad); err == nil {
		t.Error("expected error for malformed XML")
	}
}

package playlist

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"stax/internal/filesystem"
)

// WPL structure based on Windows Media Player playlist format
type WPL struct {
	XMLName xml.Name `xml:"smil"`
	Head    WPLHead  `xml:"head"`
	Body    WPLBody  `xml:"body"`
}

type WPLHead struct {
	Title string    `xml:"title"`
	Meta  []WPLMeta `xml:"meta"`
}

type WPLMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type WPLBody struct {
	Seq WPLSeq `xml:"seq"`
}

type WPLSeq struct {
	Media []WPLMedia `xml:"media"`
}

type WPLMedia struct {
	Src string `xml:"src,attr"`
}

// Playlist is a parsed playlist file.
type Playlist struct {
	Name  string
	Path  string
	Items []Item
}

// Item is one media reference of a playlist file.
type Item struct {
	// Name is the element name the reference most likely belongs to.
	Name string
	// Path is Src with forward slashes, resolved against the playlist's
	// directory when it was relative.
	Path string
	// Src is the reference exactly as written in the file.
	Src    string
	Exists bool
}

const generator = "StaX"

// Write encodes title and the media paths as a WPL document.
func Write(w io.Writer, title string, paths []string) error {
	doc := WPL{
		Head: WPLHead{
			Title: title,
			Meta: []WPLMeta{
				{Name: "Generator", Content: generator},
				{Name: "ItemCount", Content: strconv.Itoa(len(paths))},
			},
		},
	}
	for _, p := range paths {
		doc.Body.Seq.Media = append(doc.Body.Seq.Media, WPLMedia{Src: p})
	}

	if _, err := io.WriteString(w, "<?wpl version=\"1.0\"?>\n"); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode playlist: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteFile writes a WPL file at path.
func WriteFile(path, title string, paths []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create playlist file: %w", err)
	}
	if err := Write(f, title, paths); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ParseWPL reads a WPL file. Entries keep their order; relative sources are
// resolved against the file's directory.
func ParseWPL(wplPath string) (*Playlist, error) {
	data, err := os.ReadFile(wplPath)
	if err != nil {
		return nil, err
	}

	var wpl WPL
	if err := xml.Unmarshal(data, &wpl); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", wplPath, err)
	}

	playlist := &Playlist{
		Name: wpl.Head.Title,
		Path: wplPath,
	}

	if playlist.Name == "" {
		playlist.Name = strings.TrimSuffix(filepath.Base(wplPath), filepath.Ext(wplPath))
	}

	wplDir := filepath.Dir(wplPath)
	retry := filesystem.DefaultRetryConfig()

	for _, media := range wpl.Body.Seq.Media {
		// Handle Windows paths
		srcPath := strings.ReplaceAll(media.Src, "\\", "/")
		if !isAbs(srcPath) {
			srcPath = filepath.ToSlash(filepath.Join(wplDir, srcPath))
		}

		// Sequence patterns never exist on disk as such.
		exists := false
		if !strings.Contains(srcPath, "#") {
			_, err := filesystem.StatWithRetry(filepath.FromSlash(srcPath), retry)
			exists = err == nil
		}

		playlist.Items = append(playlist.Items, Item{
			Name:   ItemName(srcPath),
			Path:   srcPath,
			Src:    media.Src,
			Exists: exists,
		})
	}

	return playlist, nil
}

var driveLetter = regexp.MustCompile(`^[A-Za-z]:/`)

// isAbs treats UNC shares and drive letters as absolute on every platform,
// since playlists travel between Windows and Linux workstations.
func isAbs(p string) bool {
	return filepath.IsAbs(p) || strings.HasPrefix(p, "//") || driveLetter.MatchString(p)
}

var framePadding = regexp.MustCompile(`[._]#+$`)

// ItemName derives an element name from a media path: the base name without
// extension and without a trailing "#" frame pattern.
func ItemName(p string) string {
	base := p
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if ext := filepath.Ext(base); ext != "" && !strings.Contains(ext, "#") {
		base = strings.TrimSuffix(base, ext)
	}
	return framePadding.ReplaceAllString(base, "")
}

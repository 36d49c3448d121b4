package mediatypes

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Category is the element type a file is cataloged as. The values match
// the element types stored by the catalog.
type Category string

const (
	// Category2D covers images, image sequences and movies.
	Category2D Category = "2D"
	// Category3D covers geometry and scene files.
	Category3D Category = "3D"
	// CategoryToolset covers node-graph scripts pasted into a compositor.
	CategoryToolset Category = "Toolset"
)

// ImageExtensions maps file extensions to whether they are still-image formats.
var ImageExtensions = map[string]bool{
	".exr":  true,
	".dpx":  true,
	".tif":  true,
	".tiff": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tga":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// VideoExtensions maps file extensions to whether they are movie formats.
var VideoExtensions = map[string]bool{
	".mov": true,
	".mp4": true,
	".avi": true,
	".mkv": true,
	".mxf": true,
}

// GeometryExtensions maps file extensions to whether they are 3D formats.
var GeometryExtensions = map[string]bool{
	".abc":  true,
	".obj":  true,
	".fbx":  true,
	".usd":  true,
	".usda": true,
	".usdc": true,
	".gltf": true,
	".glb":  true,
	".ply":  true,
	".stl":  true,
}

// ToolsetExtensions maps file extensions to whether they are toolsets.
var ToolsetExtensions = map[string]bool{
	".nk": true,
}

// previewExtensions are the still formats the preview decoder can read.
var previewExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".exr":  "image/x-exr",
	".dpx":  "image/x-dpx",
	".tga":  "image/x-tga",

	".mp4": "video/mp4",
	".mkv": "video/x-matroska",
	".avi": "video/x-msvideo",
	".mov": "video/quicktime",
	".mxf": "application/mxf",

	".obj":  "model/obj",
	".stl":  "model/stl",
	".gltf": "model/gltf+json",
	".glb":  "model/gltf-binary",
	".usd":  "model/vnd.usda",
	".usda": "model/vnd.usda",
	".usdc": "model/vnd.usdc",
}

// Ext returns the lower-case extension of path including the leading dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Classify returns the category of a file from its extension. ok is false
// for extensions that are not cataloged.
func Classify(path string) (c Category, ok bool) {
	ext := Ext(path)
	switch {
	case ToolsetExtensions[ext]:
		return CategoryToolset, true
	case GeometryExtensions[ext]:
		return Category3D, true
	case ImageExtensions[ext], VideoExtensions[ext]:
		return Category2D, true
	}
	return "", false
}

// Format returns the upper-case extension without the dot, e.g. "EXR".
func Format(path string) string {
	return strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".jpg").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsPreviewable reports whether the preview decoder can read path.
func IsPreviewable(path string) bool {
	return previewExtensions[Ext(path)]
}

// IsMovie reports whether path is a movie file.
func IsMovie(path string) bool {
	return VideoExtensions[Ext(path)]
}

// framePattern matches "name.1001.exr" and "name_1001.exr"; frames have at
// least four digits.
var framePattern = regexp.MustCompile(`^(.+?)([._])(\d{4,})(\.\w+)$`)

// Sequence is a run of numbered frames sharing a base name, separator,
// padding and extension.
type Sequence struct {
	Dir     string
	Base    string
	Sep     string
	Padding int
	Ext     string
	Frames  []int
	Files   []string
}

// Pattern returns the sequence path with '#' padding, e.g.
// "/plates/shot.####.exr".
func (s Sequence) Pattern() string {
	name := s.Base + s.Sep + strings.Repeat("#", s.Padding) + s.Ext
	return filepath.Join(s.Dir, name)
}

// FrameRange returns "first-last".
func (s Sequence) FrameRange() string {
	if len(s.Frames) == 0 {
		return ""
	}
	return fmt.Sprintf("%d-%d", s.Frames[0], s.Frames[len(s.Frames)-1])
}

// Name is the base name of the sequence without frame number or extension.
func (s Sequence) Name() string {
	return s.Base
}

// FirstFile returns the path of the lowest frame.
func (s Sequence) FirstFile() string {
	if len(s.Files) == 0 {
		return ""
	}
	return s.Files[0]
}

// DetectSequences groups the files of one directory into frame sequences.
// Files that do not look like frames, and frame groups with a single file,
// are returned in singles. Both results are sorted.
func DetectSequences(dir string, names []string) (seqs []Sequence, singles []string) {
	type key struct {
		base, sep, ext string
		padding        int
	}
	groups := make(map[key]*Sequence)
	var order []key

	for _, name := range names {
		m := framePattern.FindStringSubmatch(name)
		if m == nil {
			singles = append(singles, filepath.Join(dir, name))
			continue
		}
		frame, err := strconv.Atoi(m[3])
		if err != nil {
			singles = append(singles, filepath.Join(dir, name))
			continue
		}
		k := key{base: m[1], sep: m[2], ext: m[4], padding: len(m[3])}
		s, ok := groups[k]
		if !ok {
			s = &Sequence{Dir: dir, Base: k.base, Sep: k.sep, Padding: k.padding, Ext: k.ext}
			groups[k] = s
			order = append(order, k)
		}
		s.Frames = append(s.Frames, frame)
		s.Files = append(s.Files, filepath.Join(dir, name))
	}

	for _, k := range order {
		s := groups[k]
		if len(s.Files) == 1 {
			singles = append(singles, s.Files[0])
			continue
		}
		sort.Ints(s.Frames)
		sort.Strings(s.Files)
		seqs = append(seqs, *s)
	}

	sort.Slice(seqs, func(i, j int) bool { return seqs[i].Pattern() < seqs[j].Pattern() })
	sort.Strings(singles)
	return seqs, singles
}

package database

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ElementType classifies an element. The set is closed.
type ElementType string

// Element types
const (
	Type2D      ElementType = "2D"
	Type3D      ElementType = "3D"
	TypeToolset ElementType = "Toolset"
)

// Valid reports whether t is one of the three element types.
func (t ElementType) Valid() bool {
	switch t {
	case Type2D, Type3D, TypeToolset:
		return true
	}
	return false
}

// ParseElementType accepts the canonical names case-insensitively.
func ParseElementType(s string) (ElementType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2d":
		return Type2D, nil
	case "3d":
		return Type3D, nil
	case "toolset":
		return TypeToolset, nil
	}
	return "", fmt.Errorf("%w: element type %q (want 2D, 3D or Toolset)", ErrInvalidEnum, s)
}

// IngestionStatus is the outcome recorded in ingestion history.
type IngestionStatus string

// Ingestion statuses
const (
	StatusSuccess IngestionStatus = "success"
	StatusError   IngestionStatus = "error"
)

// Valid reports whether s is success or error.
func (s IngestionStatus) Valid() bool {
	return s == StatusSuccess || s == StatusError
}

// Stack is the root of the catalog hierarchy, bound to a filesystem root.
type Stack struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Path      string    `db:"path" json:"path"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// List is a named collection inside a stack, optionally nested under
// another list of the same stack.
type List struct {
	ID           int64     `db:"id" json:"id"`
	StackID      int64     `db:"stack_id" json:"stackId"`
	ParentListID *int64    `db:"parent_list_id" json:"parentListId,omitempty"`
	Name         string    `db:"name" json:"name"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Element is a cataloged asset.
type Element struct {
	ID                  int64       `db:"id" json:"id"`
	ListID              int64       `db:"list_id" json:"listId"`
	Name                string      `db:"name" json:"name"`
	Type                ElementType `db:"type" json:"type"`
	FilepathSoft        string      `db:"filepath_soft" json:"filepathSoft,omitempty"`
	FilepathHard        string      `db:"filepath_hard" json:"filepathHard,omitempty"`
	IsHardCopy          bool        `db:"is_hard_copy" json:"isHardCopy"`
	FrameRange          *string     `db:"frame_range" json:"frameRange,omitempty"`
	Format              string      `db:"format" json:"format,omitempty"`
	Comment             string      `db:"comment" json:"comment,omitempty"`
	Tags                string      `db:"tags" json:"tags,omitempty"`
	PreviewPath         string      `db:"preview_path" json:"previewPath,omitempty"`
	GIFPreviewPath      string      `db:"gif_preview_path" json:"gifPreviewPath,omitempty"`
	VideoPreviewPath    string      `db:"video_preview_path" json:"videoPreviewPath,omitempty"`
	GeometryPreviewPath string      `db:"geometry_preview_path" json:"geometryPreviewPath,omitempty"`
	IsDeprecated        bool        `db:"is_deprecated" json:"isDeprecated"`
	FileSize            int64       `db:"file_size" json:"fileSize"`
	CreatedAt           time.Time   `db:"created_at" json:"createdAt"`
}

// Filepath returns the authoritative path: the hard copy when IsHardCopy is
// set, otherwise the soft reference.
func (e *Element) Filepath() string {
	if e.IsHardCopy {
		return e.FilepathHard
	}
	return e.FilepathSoft
}

// TagList splits Tags into its trimmed, non-empty entries.
func (e *Element) TagList() []string {
	return splitTags(e.Tags)
}

// ElementFields holds the optional columns set when creating an element.
// Zero values store the column default; an empty FrameRange stores NULL.
type ElementFields struct {
	FilepathSoft        string
	FilepathHard        string
	IsHardCopy          bool
	FrameRange          string
	Format              string
	Comment             string
	Tags                []string
	PreviewPath         string
	GIFPreviewPath      string
	VideoPreviewPath    string
	GeometryPreviewPath string
	IsDeprecated        bool
	FileSize            int64
}

// ElementUpdate lists the mutable element columns. Only non-nil fields are
// written. ClearFrameRange sets frame_range to NULL and wins over FrameRange.
type ElementUpdate struct {
	ListID              *int64
	Name                *string
	Type                *ElementType
	FilepathSoft        *string
	FilepathHard        *string
	IsHardCopy          *bool
	FrameRange          *string
	ClearFrameRange     bool
	Format              *string
	Comment             *string
	Tags                *[]string
	PreviewPath         *string
	GIFPreviewPath      *string
	VideoPreviewPath    *string
	GeometryPreviewPath *string
	IsDeprecated        *bool
	FileSize            *int64
}

// Ptr returns a pointer to v, for filling ElementUpdate literals.
func Ptr[T any](v T) *T {
	return &v
}

// ElementQuery filters GetElementsByList.
type ElementQuery struct {
	IncludeDeprecated bool
	// Limit caps the result size; zero means no limit.
	Limit  int
	Offset int
}

// SearchProperty names a column that SearchElements may match against.
type SearchProperty string

// Searchable properties
const (
	SearchName    SearchProperty = "name"
	SearchFormat  SearchProperty = "format"
	SearchType    SearchProperty = "type"
	SearchComment SearchProperty = "comment"
	SearchTags    SearchProperty = "tags"
)

// searchColumns is the allow-list mapping properties onto columns.
var searchColumns = map[SearchProperty]string{
	SearchName:    "name",
	SearchFormat:  "format",
	SearchType:    "type",
	SearchComment: "comment",
	SearchTags:    "tags",
}

// MatchType selects substring or exact matching in SearchElements.
type MatchType string

// Match types
const (
	MatchLoose  MatchType = "loose"
	MatchStrict MatchType = "strict"
)

// Favorite marks an element for a machine and optional user.
type Favorite struct {
	ID          int64     `db:"id" json:"id"`
	ElementID   int64     `db:"element_id" json:"elementId"`
	MachineName string    `db:"machine_name" json:"machineName"`
	UserName    *string   `db:"user_name" json:"userName,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Playlist is a flat, named collection of elements independent of stacks.
type Playlist struct {
	ID               int64     `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Description      string    `db:"description" json:"description"`
	CreatedBy        string    `db:"created_by" json:"createdBy"`
	CreatedOnMachine string    `db:"created_on_machine" json:"createdOnMachine"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	ItemCount        int       `db:"item_count" json:"itemCount"`
}

// PlaylistElement is an element as it appears in a playlist.
type PlaylistElement struct {
	Element
	SortOrder int       `db:"sort_order" json:"sortOrder"`
	AddedAt   time.Time `db:"added_at" json:"addedAt"`
}

// IngestionRecord is the input to LogIngestion.
type IngestionRecord struct {
	Action     string
	SourcePath string
	TargetList string
	Status     IngestionStatus
	Message    string
	// ElementID is optional; nil stores NULL.
	ElementID *int64
}

// HistoryEntry is one row of the append-only ingestion log.
type HistoryEntry struct {
	ID         int64           `db:"id" json:"id"`
	ElementID  *int64          `db:"element_id" json:"elementId,omitempty"`
	Action     string          `db:"action" json:"action"`
	SourcePath string          `db:"source_path" json:"sourcePath"`
	TargetList string          `db:"target_list" json:"targetList"`
	Status     IngestionStatus `db:"status" json:"status"`
	Message    string          `db:"message" json:"message"`
	IngestedAt time.Time       `db:"ingested_at" json:"ingestedAt"`
}

// splitTags parses a comma-joined tag string.
func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// joinTags normalises tags for storage: trimmed, de-duplicated, sorted
// case-insensitively and joined with ", ".
func joinTags(tags []string) string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return strings.Join(out, ", ")
}

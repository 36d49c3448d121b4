package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"stax/internal/database"
	"stax/internal/filesystem"
	"stax/internal/logging"
	"stax/internal/mediatypes"
	"stax/internal/metrics"
	"stax/internal/workers"
)

// CopyPolicy selects whether ingested files are referenced in place or
// copied into the stack's repository.
type CopyPolicy string

// Copy policies
const (
	CopySoft CopyPolicy = "soft"
	CopyHard CopyPolicy = "hard"
)

// ParseCopyPolicy accepts "soft", "hard" and the long forms "soft_copy",
// "hard_copy".
func ParseCopyPolicy(s string) (CopyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "soft", "soft_copy":
		return CopySoft, nil
	case "hard", "hard_copy":
		return CopyHard, nil
	}
	return "", fmt.Errorf("unknown copy policy %q (want soft or hard)", s)
}

// DefaultMaxDepth is how many directory levels below the root become lists.
const DefaultMaxDepth = 3

// rootListName holds files that sit directly in the imported directory.
const rootListName = "_root"

// Options configures an import.
type Options struct {
	// StackName names a newly created stack. Empty uses the directory name.
	StackName string
	// ListPrefix is prepended to every list name.
	ListPrefix string
	// MaxDepth limits list nesting. Zero means DefaultMaxDepth.
	MaxDepth int
	Copy     CopyPolicy
	Comment  string
	Tags     []string
	// Progress, when set, is called after every ingested item.
	Progress func(Progress)
	Retry    filesystem.RetryConfig
}

// Progress reports a running import.
type Progress struct {
	Processed int
	Path      string
	Err       error
}

// Result summarises an import.
type Result struct {
	StackID  int64
	Lists    int
	Ingested int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Item is one element to ingest: a single file or a frame sequence.
type Item struct {
	Name       string
	Path       string
	FrameRange string
	Files      []string
}

// Importer ingests directory trees into the catalog.
type Importer struct {
	db *database.Database
}

// New creates an importer writing to db.
func New(db *database.Database) *Importer {
	return &Importer{db: db}
}

// Import catalogs the tree under root as one stack. Every sub-directory,
// down to MaxDepth, becomes a list nested like the directories; each file or
// frame sequence becomes an element. Lists and elements already cataloged
// are reused, so running an import again only adds what is new. The whole
// import holds the catalog's advisory lock. Per-file failures are recorded
// in the ingestion history and counted, not returned.
func (im *Importer) Import(ctx context.Context, root string, opts Options) (Result, error) {
	start := time.Now()
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Copy == "" {
		opts.Copy = CopySoft
	}
	if opts.Retry.MaxRetries <= 0 {
		opts.Retry = filesystem.DefaultRetryConfig()
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := filesystem.StatWithRetry(root, opts.Retry)
	if err != nil {
		return Result{}, fmt.Errorf("cannot read library root: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("library root %s is not a directory", root)
	}

	var res Result
	err = im.db.WithLock(ctx, func(ctx context.Context) error {
		stackID, err := im.ensureStack(ctx, root, opts.StackName)
		if err != nil {
			return err
		}
		res.StackID = stackID

		w := &walker{im: im, opts: opts, stackID: stackID, res: &res}
		return w.walkDir(ctx, root, nil, 0)
	})
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}

	logging.Info("Library import of %s complete: %d ingested, %d skipped, %d failed, %d lists in %v",
		root, res.Ingested, res.Skipped, res.Failed, res.Lists, res.Duration)
	return res, nil
}

func (im *Importer) ensureStack(ctx context.Context, root, name string) (int64, error) {
	s, err := im.db.GetStackByPath(ctx, root)
	if err != nil {
		return 0, err
	}
	if s != nil {
		logging.Debug("Reusing stack %q for %s", s.Name, root)
		return s.ID, nil
	}
	if name == "" {
		name = filepath.Base(root)
	}
	return im.db.CreateStack(ctx, name, root)
}

type walker struct {
	im      *Importer
	opts    Options
	stackID int64
	res     *Result
}

// walkDir ingests the items of dir into parent (the stack's _root list when
// parent is nil) and recurses into sub-directories as child lists.
func (w *walker) walkDir(ctx context.Context, dir string, parent *int64, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := filesystem.ReadDirWithRetry(dir, w.opts.Retry)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files, dirs []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, e.Name())
			continue
		}
		if _, ok := mediatypes.Classify(e.Name()); ok {
			files = append(files, e.Name())
		}
	}

	if items := Group(dir, files); len(items) > 0 {
		listID := parent
		if listID == nil {
			id, err := w.ensureList(ctx, rootListName, nil)
			if err != nil {
				return err
			}
			listID = &id
		}
		if err := w.ingestItems(ctx, *listID, items); err != nil {
			return err
		}
	}

	if depth >= w.opts.MaxDepth {
		if len(dirs) > 0 {
			logging.Debug("Not descending below %s: max depth %d reached", dir, w.opts.MaxDepth)
		}
		return nil
	}
	for _, name := range dirs {
		listID, err := w.ensureList(ctx, w.opts.ListPrefix+name, parent)
		if err != nil {
			return err
		}
		if err := w.walkDir(ctx, filepath.Join(dir, name), &listID, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// ensureList returns the id of the list called name under parent, creating
// it if needed.
func (w *walker) ensureList(ctx context.Context, name string, parent *int64) (int64, error) {
	lists, err := w.im.db.GetListsByStack(ctx, w.stackID, parent)
	if err != nil {
		return 0, err
	}
	for _, l := range lists {
		if l.Name == name {
			return l.ID, nil
		}
	}
	id, err := w.im.db.CreateList(ctx, w.stackID, name, parent)
	if err != nil {
		return 0, err
	}
	w.res.Lists++
	return id, nil
}

func (w *walker) ingestItems(ctx context.Context, listID int64, items []Item) error {
	existing, err := w.im.db.GetElementsByList(ctx, listID, database.ElementQuery{IncludeDeprecated: true})
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, e := range existing {
		known[e.FilepathSoft] = true
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if known[item.Path] {
			w.res.Skipped++
			metrics.LibraryImportFiles.WithLabelValues("skipped").Inc()
			continue
		}

		_, err := w.im.Ingest(ctx, listID, item, IngestOptions{
			Copy:    w.opts.Copy,
			Comment: w.opts.Comment,
			Tags:    w.opts.Tags,
			Retry:   w.opts.Retry,
		})
		if err != nil {
			w.res.Failed++
			// A busy catalog will not get better for the next file.
			if errors.Is(err, database.ErrTransientBusy) {
				return err
			}
		} else {
			w.res.Ingested++
		}
		if w.opts.Progress != nil {
			w.opts.Progress(Progress{Processed: w.res.Ingested + w.res.Failed, Path: item.Path, Err: err})
		}
	}
	return nil
}

// Group turns the classifiable file names of one directory into items:
// frame sequences collapse into one item with a '#' pattern, every other
// file is its own item.
func Group(dir string, names []string) []Item {
	seqs, singles := mediatypes.DetectSequences(dir, names)
	items := make([]Item, 0, len(seqs)+len(singles))
	for _, s := range seqs {
		items = append(items, Item{
			Name:       s.Name(),
			Path:       s.Pattern(),
			FrameRange: s.FrameRange(),
			Files:      s.Files,
		})
	}
	for _, f := range singles {
		base := filepath.Base(f)
		items = append(items, Item{
			Name:  strings.TrimSuffix(base, filepath.Ext(base)),
			Path:  f,
			Files: []string{f},
		})
	}
	return items
}

// IngestOptions configures a single ingest.
type IngestOptions struct {
	Copy    CopyPolicy
	Comment string
	Tags    []string
	Retry   filesystem.RetryConfig
}

// Ingest creates one element in listID from item and records the outcome in
// the ingestion history, whether it succeeded or not.
func (im *Importer) Ingest(ctx context.Context, listID int64, item Item, opts IngestOptions) (int64, error) {
	if opts.Retry.MaxRetries <= 0 {
		opts.Retry = filesystem.DefaultRetryConfig()
	}
	target, err := im.db.GetListDisplayPath(ctx, listID, " / ")
	if err != nil {
		return 0, err
	}

	action := "ingest_soft"
	if opts.Copy == CopyHard {
		action = "ingest_hard"
	}

	id, ingestErr := im.ingest(ctx, listID, item, opts)

	rec := database.IngestionRecord{
		Action:     action,
		SourcePath: item.Path,
		TargetList: target,
		Status:     database.StatusSuccess,
		Message:    fmt.Sprintf("ingested %d file(s)", len(item.Files)),
	}
	if ingestErr != nil {
		rec.Status = database.StatusError
		rec.Message = ingestErr.Error()
		metrics.LibraryImportFiles.WithLabelValues("error").Inc()
		logging.Warn("Ingest of %s failed: %v", item.Path, ingestErr)
	} else {
		rec.ElementID = &id
		metrics.LibraryImportFiles.WithLabelValues("success").Inc()
		logging.Debug("Ingested %s as element %d", item.Path, id)
	}

	if _, err := im.db.LogIngestion(ctx, rec); err != nil {
		logging.Error("Failed to record ingestion of %s: %v", item.Path, err)
		if ingestErr == nil {
			ingestErr = err
		}
	}
	return id, ingestErr
}

func (im *Importer) ingest(ctx context.Context, listID int64, item Item, opts IngestOptions) (int64, error) {
	if len(item.Files) == 0 {
		return 0, errors.New("item has no files")
	}
	category, ok := mediatypes.Classify(item.Files[0])
	if !ok {
		return 0, fmt.Errorf("unsupported file type %s", filepath.Ext(item.Files[0]))
	}

	size, err := totalSize(item.Files, opts.Retry)
	if err != nil {
		return 0, fmt.Errorf("source file not accessible: %w", err)
	}

	fields := database.ElementFields{
		FilepathSoft: item.Path,
		FrameRange:   item.FrameRange,
		Format:       mediatypes.Format(item.Files[0]),
		Comment:      opts.Comment,
		Tags:         opts.Tags,
		FileSize:     size,
	}

	if opts.Copy == CopyHard {
		repo, err := im.db.GetRepositoryPathForList(ctx, listID)
		if err != nil {
			return 0, err
		}
		if repo == "" {
			return 0, fmt.Errorf("list %d has no repository path for a hard copy", listID)
		}
		targetDir := filepath.Join(repo, item.Name)
		if err := copyFiles(item.Files, targetDir, opts.Retry); err != nil {
			return 0, err
		}
		fields.IsHardCopy = true
		fields.FilepathHard = filepath.Join(targetDir, filepath.Base(item.Path))
	}

	return im.db.CreateElement(ctx, listID, item.Name, database.ElementType(category), fields)
}

// maxStatWorkers caps concurrent stat calls against one share.
const maxStatWorkers = 16

// totalSize sums the sizes of files. Frame sequences can hold thousands of
// files on a network share, so the stats run on an I/O-sized pool.
func totalSize(files []string, retry filesystem.RetryConfig) (int64, error) {
	var (
		size     atomic.Int64
		firstErr error
		once     sync.Once
		wg       sync.WaitGroup
	)
	jobs := make(chan string)
	for range min(workers.ForIO(maxStatWorkers), len(files)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				info, err := filesystem.StatWithRetry(f, retry)
				if err != nil {
					once.Do(func() { firstErr = err })
					continue
				}
				size.Add(info.Size())
			}
		}()
	}
	for _, f := range files {
		jobs <- f
	}
	close(jobs)
	wg.Wait()
	if firstErr != nil {
		return 0, firstErr
	}
	return size.Load(), nil
}

// copyFiles copies files into dir, preserving modification times.
func copyFiles(files []string, dir string, retry filesystem.RetryConfig) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for _, src := range files {
		if err := copyFile(src, filepath.Join(dir, filepath.Base(src)), retry); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, retry filesystem.RetryConfig) error {
	in, err := filesystem.OpenWithRetry(src, retry)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		logging.Debug("Could not preserve mtime on %s: %v", dst, err)
	}
	return nil
}

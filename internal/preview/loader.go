package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // WebP format support

	"stax/internal/database"
	"stax/internal/filesystem"
	"stax/internal/logging"
	"stax/internal/memory"
	"stax/internal/mediatypes"
	"stax/internal/metrics"
	"stax/internal/previewcache"
	"stax/internal/workers"
)

// DefaultMaxDimension bounds the longer side of a decoded preview.
const DefaultMaxDimension = 512

// maxWarmWorkers caps parallel decodes; ffmpeg and large EXRs are memory heavy.
const maxWarmWorkers = 8

// ErrNoDecoder is returned for files that need ffmpeg when none is configured.
var ErrNoDecoder = errors.New("no decoder available")

// Cache is the preview cache type shared by the process.
type Cache = previewcache.Cache[image.Image]

// NewCache builds the preview cache. Entries are charged at four bytes per
// pixel against maxMemoryBytes.
func NewCache(maxSize int, maxMemoryBytes int64) (*Cache, error) {
	return previewcache.New(previewcache.Options[image.Image]{
		MaxSize:        maxSize,
		MaxMemoryBytes: maxMemoryBytes,
		Sizer:          ImageBytes,
	})
}

// ImageBytes estimates the memory of a decoded image as RGBA.
func ImageBytes(img image.Image) int64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

// Options configures a Loader.
type Options struct {
	// MaxDimension bounds the longer side of a preview. Zero means
	// DefaultMaxDimension.
	MaxDimension int
	// FFmpegPath is used for movies and formats imaging cannot read, such
	// as EXR and DPX. Empty disables the fallback.
	FFmpegPath string
	// Retry controls ESTALE retries when opening files on network shares.
	Retry filesystem.RetryConfig
	// Workers bounds concurrent decodes in WarmList. Zero means one per CPU.
	Workers int
	// Memory, when set, holds WarmList between batches under memory pressure.
	Memory *memory.Monitor
}

// Loader decodes previews through a shared cache. It never decodes a path
// that is already cached.
type Loader struct {
	cache   *Cache
	maxDim  int
	ffmpeg  string
	retry   filesystem.RetryConfig
	workers int
	memory  *memory.Monitor
}

// NewLoader creates a loader backed by cache.
func NewLoader(cache *Cache, opts Options) *Loader {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if opts.Retry.MaxRetries <= 0 {
		opts.Retry = filesystem.DefaultRetryConfig()
	}
	if opts.Workers <= 0 {
		opts.Workers = workers.ForCPU(maxWarmWorkers)
	}
	ffmpeg := ""
	if opts.FFmpegPath != "" {
		if p, err := exec.LookPath(opts.FFmpegPath); err == nil {
			ffmpeg = p
			logging.Debug("Preview loader using ffmpeg: %s", p)
		} else {
			logging.Debug("ffmpeg not found (%s), movie and EXR previews disabled", opts.FFmpegPath)
		}
	}
	return &Loader{
		cache:   cache,
		maxDim:  opts.MaxDimension,
		ffmpeg:  ffmpeg,
		retry:   opts.Retry,
		workers: opts.Workers,
		memory:  opts.Memory,
	}
}

// Cache returns the cache the loader reads through.
func (l *Loader) Cache() *Cache {
	return l.cache
}

// Load returns the preview for path, decoding and caching it on a miss.
func (l *Loader) Load(ctx context.Context, path string) (image.Image, error) {
	key := filepath.Clean(path)
	if img, ok := l.cache.Get(key); ok {
		metrics.PreviewCacheHits.Inc()
		return img, nil
	}
	metrics.PreviewCacheMisses.Inc()

	img, err := l.decode(ctx, key)
	if err != nil {
		return nil, err
	}
	l.cache.Put(key, img)
	l.publish()
	return img, nil
}

// Invalidate drops path from the cache, e.g. after the file was replaced.
func (l *Loader) Invalidate(path string) bool {
	removed := l.cache.Remove(filepath.Clean(path))
	l.publish()
	return removed
}

// WarmList decodes the previews of elements that are not cached yet. It
// returns how many were loaded; failures are joined into the error and do
// not stop the remaining elements. Decodes run in parallel, one batch at a
// time so no more than a batch of full images is held outside the cache.
func (l *Loader) WarmList(ctx context.Context, elements []database.Element) (int, error) {
	seen := make(map[string]bool, len(elements))
	keys := make([]string, 0, len(elements))
	for i := range elements {
		src := Source(&elements[i])
		if src == "" {
			continue
		}
		src = filepath.Clean(src)
		if !seen[src] && !l.cache.Contains(src) {
			seen[src] = true
			keys = append(keys, src)
		}
	}

	batch := 4 * l.workers
	var (
		loaded int
		errs   []error
	)
	for start := 0; start < len(keys); start += batch {
		if err := l.memory.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		chunk := keys[start:min(start+batch, len(keys))]
		decoded := l.decodeAll(ctx, chunk)

		n, err := l.cache.Preload(chunk, func(key string) (image.Image, error) {
			r := decoded[key]
			return r.img, r.err
		})
		loaded += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	l.publish()
	logging.Debug("Preview warm: %d/%d loaded with %d workers, %s", loaded, len(keys), l.workers, l.cache)
	return loaded, errors.Join(errs...)
}

type decoded struct {
	img image.Image
	err error
}

// decodeAll decodes keys concurrently on the loader's workers.
func (l *Loader) decodeAll(ctx context.Context, keys []string) map[string]decoded {
	out := make(map[string]decoded, len(keys))
	var mu sync.Mutex
	var wg sync.WaitGroup

	jobs := make(chan string)
	for range min(l.workers, len(keys)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				var d decoded
				if d.err = ctx.Err(); d.err == nil {
					d.img, d.err = l.decode(ctx, key)
				}
				mu.Lock()
				out[key] = d
				mu.Unlock()
			}
		}()
	}
	for _, key := range keys {
		jobs <- key
	}
	close(jobs)
	wg.Wait()
	return out
}

// decode reads path from disk, records the decode time, and shrinks the
// result to fit the maximum dimension.
func (l *Loader) decode(ctx context.Context, path string) (img image.Image, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.PreviewDecodeDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	switch {
	case mediatypes.IsPreviewable(path):
		img, err = l.decodeImage(path)
		if err != nil && l.ffmpeg != "" {
			logging.Debug("imaging decode failed for %s: %v, trying ffmpeg", path, err)
			img, err = l.decodeWithFFmpeg(ctx, path, false)
		}
	case l.ffmpeg == "":
		return nil, fmt.Errorf("%w for %s", ErrNoDecoder, path)
	default:
		img, err = l.decodeWithFFmpeg(ctx, path, mediatypes.IsMovie(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode preview %s: %w", path, err)
	}

	b := img.Bounds()
	if b.Dx() > l.maxDim || b.Dy() > l.maxDim {
		img = imaging.Fit(img, l.maxDim, l.maxDim, imaging.Lanczos)
	}
	return img, nil
}

func (l *Loader) decodeImage(path string) (image.Image, error) {
	f, err := filesystem.OpenWithRetry(path, l.retry)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close preview file %s: %v", path, err)
		}
	}()

	return imaging.Decode(f, imaging.AutoOrientation(true))
}

// decodeWithFFmpeg extracts one frame as PNG. Movies are sampled one second
// in, falling back to the first frame for clips shorter than that.
func (l *Loader) decodeWithFFmpeg(ctx context.Context, path string, movie bool) (image.Image, error) {
	run := func(args ...string) (*bytes.Buffer, error) {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, l.ffmpeg, args...)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
		}
		if stdout.Len() == 0 {
			return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
		}
		return &stdout, nil
	}

	frameArgs := []string{"-i", path, "-vframes", "1", "-f", "image2pipe", "-vcodec", "png", "-"}
	var out *bytes.Buffer
	var err error
	if movie {
		out, err = run(append([]string{"-ss", "00:00:01"}, frameArgs...)...)
		if err != nil {
			logging.Debug("ffmpeg seek failed for %s: %v, using first frame", path, err)
		}
	}
	if out == nil {
		if out, err = run(frameArgs...); err != nil {
			return nil, err
		}
	}

	img, _, err := image.Decode(out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

// publish copies the cache statistics into the preview gauges.
func (l *Loader) publish() {
	s := l.cache.Stats()
	metrics.PreviewCacheEntries.Set(float64(s.Size))
	metrics.PreviewCacheEvictions.Set(float64(s.Evictions))
	metrics.PreviewCacheBytes.Set(float64(s.MemoryBytes))
}

// Save writes img to path in the format given by its extension.
func Save(img image.Image, path string) error {
	return imaging.Save(img, path)
}

// Source returns the file a preview for e is decoded from: the stored
// preview image when there is one, otherwise the element's own file with a
// frame pattern resolved to the first frame.
func Source(e *database.Element) string {
	if e.PreviewPath != "" {
		return e.PreviewPath
	}
	p := e.Filepath()
	if p == "" {
		return ""
	}
	frameRange := ""
	if e.FrameRange != nil {
		frameRange = *e.FrameRange
	}
	return FramePath(p, frameRange)
}

var hashRun = regexp.MustCompile(`#+`)

// FramePath replaces the last run of '#' in pattern with the first frame of
// frameRange, zero-padded to the run's width. Paths without '#' or an
// unparsable range are returned unchanged.
func FramePath(pattern, frameRange string) string {
	locs := hashRun.FindAllStringIndex(pattern, -1)
	if len(locs) == 0 {
		return pattern
	}
	first, _, _ := strings.Cut(frameRange, "-")
	frame, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return pattern
	}
	loc := locs[len(locs)-1]
	width := loc[1] - loc[0]
	return pattern[:loc[0]] + fmt.Sprintf("%0*d", width, frame) + pattern[loc[1]:]
}

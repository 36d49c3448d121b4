// Package preview decodes element previews for display through one shared
// in-memory cache.
//
// A Loader checks the cache first and only decodes on a miss. Still images
// are decoded with imaging (auto-oriented by EXIF) and shrunk to fit
// Options.MaxDimension. Movies and formats imaging cannot read, such as EXR
// and DPX, go through ffmpeg when it is available. Files on network shares
// are opened with the ESTALE-aware helpers from package filesystem.
//
// The process builds the cache once with NewCache and hands the same
// instance to every Loader:
//
//	cache, err := preview.NewCache(cfg.PreviewCacheSize, cfg.PreviewCacheBytes)
//	loader := preview.NewLoader(cache, preview.Options{MaxDimension: 512, FFmpegPath: "ffmpeg"})
//	img, err := loader.Load(ctx, preview.Source(element))
//
// WarmList fills the cache for a whole list. It decodes on Options.Workers
// goroutines a batch at a time and, when Options.Memory is set, waits
// between batches while the memory monitor reports pressure.
package preview

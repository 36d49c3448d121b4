package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"stax/internal/database"
	"stax/internal/filelock"
	"stax/internal/logging"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Defaults
const (
	DefaultDBPath           = "./data/stax.db"
	DefaultPreviewCacheSize = 200
	DefaultPreviewCacheMB   = 200
	DefaultPreviewMaxDim    = 512
	DefaultCopyPolicy       = "soft"
)

// Config holds the resolved settings of a stax process.
type Config struct {
	DBPath      string        `toml:"db_path"`
	LockPath    string        `toml:"lock_path"`
	LockTimeout time.Duration `toml:"lock_timeout"`
	MaxRetries  int           `toml:"max_retries"`
	RetryDelay  time.Duration `toml:"retry_delay"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	JournalMode string        `toml:"journal_mode"`

	PreviewCacheSize int    `toml:"preview_cache_size"`
	PreviewCacheMB   int    `toml:"preview_cache_mb"`
	PreviewMaxDim    int    `toml:"preview_max_dim"`
	PreviewsDir      string `toml:"previews_dir"`
	FFmpegPath       string `toml:"ffmpeg_path"`

	DefaultCopy string `toml:"default_copy"`
	MetricsFile string `toml:"metrics_file"`

	Machine string `toml:"machine"`
	User    string `toml:"user"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// Source is the config file that was read, empty if none.
	Source string `toml:"-"`
}

// fileConfig mirrors Config as it appears on disk. Durations are strings so
// a bad value can be reported and ignored instead of failing the decode.
type fileConfig struct {
	DBPath           string `toml:"db_path"`
	LockPath         string `toml:"lock_path"`
	LockTimeout      string `toml:"lock_timeout"`
	MaxRetries       int    `toml:"max_retries"`
	RetryDelay       string `toml:"retry_delay"`
	BusyTimeout      string `toml:"busy_timeout"`
	JournalMode      string `toml:"journal_mode"`
	PreviewCacheSize int    `toml:"preview_cache_size"`
	PreviewCacheMB   int    `toml:"preview_cache_mb"`
	PreviewMaxDim    int    `toml:"preview_max_dim"`
	PreviewsDir      string `toml:"previews_dir"`
	FFmpegPath       string `toml:"ffmpeg_path"`
	DefaultCopy      string `toml:"default_copy"`
	MetricsFile      string `toml:"metrics_file"`
	Machine          string `toml:"machine"`
	User             string `toml:"user"`
	LogLevel         string `toml:"log_level"`
	LogFormat        string `toml:"log_format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	lock := filelock.DefaultOptions()
	return &Config{
		DBPath:           DefaultDBPath,
		LockTimeout:      lock.Timeout,
		MaxRetries:       database.DefaultMaxRetries,
		RetryDelay:       database.DefaultRetryDelay,
		BusyTimeout:      database.DefaultBusyTimeout,
		JournalMode:      database.DefaultJournalMode,
		PreviewCacheSize: DefaultPreviewCacheSize,
		PreviewCacheMB:   DefaultPreviewCacheMB,
		PreviewMaxDim:    DefaultPreviewMaxDim,
		FFmpegPath:       "ffmpeg",
		DefaultCopy:      DefaultCopyPolicy,
		Machine:          hostname(),
		User:             currentUser(),
		LogLevel:         "info",
		LogFormat:        "",
	}
}

// Load builds the configuration from the defaults, then the TOML file at
// path (or $STAX_CONFIG when path is empty), then the environment. Invalid
// values are logged and the previous layer's value is kept. Paths are made
// absolute and the database directory is created if needed.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("STAX_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.mergeEnv()

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := c.read(f); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}
	c.Source = path
	logging.Debug("Configuration loaded from %s", path)
	return nil
}

// read decodes a TOML document over c. Keys not present keep their value.
func (c *Config) read(r io.Reader) error {
	var fc fileConfig
	md, err := toml.NewDecoder(r).Decode(&fc)
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	for _, key := range md.Undecoded() {
		logging.Warn("Unknown config key %q ignored", key.String())
	}

	setString(&c.DBPath, fc.DBPath)
	setString(&c.LockPath, fc.LockPath)
	setDuration(&c.LockTimeout, "lock_timeout", fc.LockTimeout)
	setInt(&c.MaxRetries, "max_retries", fc.MaxRetries)
	setDuration(&c.RetryDelay, "retry_delay", fc.RetryDelay)
	setDuration(&c.BusyTimeout, "busy_timeout", fc.BusyTimeout)
	setString(&c.JournalMode, fc.JournalMode)
	setInt(&c.PreviewCacheSize, "preview_cache_size", fc.PreviewCacheSize)
	setInt(&c.PreviewCacheMB, "preview_cache_mb", fc.PreviewCacheMB)
	setInt(&c.PreviewMaxDim, "preview_max_dim", fc.PreviewMaxDim)
	setString(&c.PreviewsDir, fc.PreviewsDir)
	setString(&c.FFmpegPath, fc.FFmpegPath)
	setString(&c.DefaultCopy, fc.DefaultCopy)
	setString(&c.MetricsFile, fc.MetricsFile)
	setString(&c.Machine, fc.Machine)
	setString(&c.User, fc.User)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	return nil
}

func (c *Config) mergeEnv() {
	// STOCK_DB is the historical name of STAX_DB_PATH.
	c.DBPath = getEnv("STOCK_DB", c.DBPath)
	c.DBPath = getEnv("STAX_DB_PATH", c.DBPath)
	c.LockPath = getEnv("STAX_LOCK_PATH", c.LockPath)
	c.LockTimeout = getEnvDuration("STAX_LOCK_TIMEOUT", c.LockTimeout)
	c.MaxRetries = getEnvInt("STAX_MAX_RETRIES", c.MaxRetries)
	c.RetryDelay = getEnvDuration("STAX_RETRY_DELAY", c.RetryDelay)
	c.BusyTimeout = getEnvDuration("STAX_BUSY_TIMEOUT", c.BusyTimeout)
	c.JournalMode = getEnv("STAX_JOURNAL_MODE", c.JournalMode)
	c.PreviewCacheSize = getEnvInt("STAX_PREVIEW_CACHE_SIZE", c.PreviewCacheSize)
	c.PreviewCacheMB = getEnvInt("STAX_PREVIEW_CACHE_MB", c.PreviewCacheMB)
	c.PreviewMaxDim = getEnvInt("STAX_PREVIEW_MAX_DIM", c.PreviewMaxDim)
	c.PreviewsDir = getEnv("STAX_PREVIEWS_DIR", c.PreviewsDir)
	c.FFmpegPath = getEnv("STAX_FFMPEG", c.FFmpegPath)
	c.DefaultCopy = getEnv("STAX_DEFAULT_COPY", c.DefaultCopy)
	c.MetricsFile = getEnv("STAX_METRICS_FILE", c.MetricsFile)
	c.Machine = getEnv("STAX_MACHINE", c.Machine)
	c.User = getEnv("STAX_USER", c.User)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

func (c *Config) resolve() error {
	var err error
	if c.DBPath, err = filepath.Abs(c.DBPath); err != nil {
		return fmt.Errorf("failed to resolve database path: %w", err)
	}
	if c.LockPath != "" {
		if c.LockPath, err = filepath.Abs(c.LockPath); err != nil {
			return fmt.Errorf("failed to resolve lock path: %w", err)
		}
	}
	if c.PreviewsDir == "" {
		c.PreviewsDir = filepath.Join(filepath.Dir(c.DBPath), "previews")
	}
	if c.PreviewsDir, err = filepath.Abs(c.PreviewsDir); err != nil {
		return fmt.Errorf("failed to resolve previews directory: %w", err)
	}

	dbDir := filepath.Dir(c.DBPath)
	if err := ensureDirectory(dbDir, "database"); err != nil {
		return fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(dbDir); err != nil {
		return fmt.Errorf("database directory is not writable: %w", err)
	}
	return nil
}

// DatabaseOptions converts the settings into catalog store options.
func (c *Config) DatabaseOptions() database.Options {
	o := database.DefaultOptions()
	o.BusyTimeout = c.BusyTimeout
	o.MaxRetries = c.MaxRetries
	o.RetryDelay = c.RetryDelay
	o.JournalMode = c.JournalMode
	o.LockPath = c.LockPath
	o.Lock.Timeout = c.LockTimeout
	return o
}

// PreviewCacheBytes is the preview cache memory budget in bytes.
func (c *Config) PreviewCacheBytes() int64 {
	return int64(c.PreviewCacheMB) * 1024 * 1024
}

// Write encodes the effective configuration as TOML.
func (c *Config) Write(w io.Writer) error {
	out := fileConfig{
		DBPath:           c.DBPath,
		LockPath:         c.LockPath,
		LockTimeout:      c.LockTimeout.String(),
		MaxRetries:       c.MaxRetries,
		RetryDelay:       c.RetryDelay.String(),
		BusyTimeout:      c.BusyTimeout.String(),
		JournalMode:      c.JournalMode,
		PreviewCacheSize: c.PreviewCacheSize,
		PreviewCacheMB:   c.PreviewCacheMB,
		PreviewMaxDim:    c.PreviewMaxDim,
		PreviewsDir:      c.PreviewsDir,
		FFmpegPath:       c.FFmpegPath,
		DefaultCopy:      c.DefaultCopy,
		MetricsFile:      c.MetricsFile,
		Machine:          c.Machine,
		User:             c.User,
		LogLevel:         c.LogLevel,
		LogFormat:        c.LogFormat,
	}
	if err := toml.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// LogSummary logs the effective configuration at debug level.
func (c *Config) LogSummary() {
	if !logging.IsDebugEnabled() {
		return
	}
	src := c.Source
	if src == "" {
		src = "(defaults and environment)"
	}
	logging.Debug("Configuration from %s", src)
	logging.Debug("  DB_PATH:             %s", c.DBPath)
	logging.Debug("  LOCK_PATH:           %s", orDefault(c.LockPath, c.DBPath+".lock"))
	logging.Debug("  LOCK_TIMEOUT:        %v", c.LockTimeout)
	logging.Debug("  MAX_RETRIES:         %d", c.MaxRetries)
	logging.Debug("  RETRY_DELAY:         %v", c.RetryDelay)
	logging.Debug("  BUSY_TIMEOUT:        %v", c.BusyTimeout)
	logging.Debug("  JOURNAL_MODE:        %s", c.JournalMode)
	logging.Debug("  PREVIEW_CACHE:       %d entries, %s", c.PreviewCacheSize, humanize.IBytes(uint64(c.PreviewCacheBytes())))
	logging.Debug("  PREVIEW_MAX_DIM:     %d", c.PreviewMaxDim)
	logging.Debug("  MACHINE/USER:        %s/%s", c.Machine, c.User)
	logging.Debug("  GOMAXPROCS:          %d", runtime.GOMAXPROCS(0))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}

func ensureDirectory(path, name string) error {
	logging.Debug("Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("  [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string, v int) {
	switch {
	case v > 0:
		*dst = v
	case v < 0:
		logging.Warn("Invalid %s: %d, using %d", key, v, *dst)
	}
}

func setDuration(dst *time.Duration, key, v string) {
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logging.Warn("Invalid %s: %q, using %v", key, v, *dst)
		return
	}
	*dst = d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// Package config resolves the settings shared by the stax commands.
//
// Settings are layered. Built-in defaults come first, then an optional TOML
// file (the --config flag or STAX_CONFIG), then environment variables:
//
//	STAX_DB_PATH             catalog database file (default ./data/stax.db)
//	STAX_LOCK_PATH           advisory lock file (default <db>.lock)
//	STAX_LOCK_TIMEOUT        how long to wait for the lock (default 30s)
//	STAX_MAX_RETRIES         attempts on a busy database (default 5)
//	STAX_RETRY_DELAY         base delay between attempts (default 100ms)
//	STAX_BUSY_TIMEOUT        SQLite busy timeout (default 30s)
//	STAX_JOURNAL_MODE        DELETE, TRUNCATE, PERSIST, MEMORY, WAL or OFF
//	STAX_PREVIEW_CACHE_SIZE  preview cache entries (default 200)
//	STAX_PREVIEW_CACHE_MB    preview cache memory budget (default 200)
//	STAX_PREVIEW_MAX_DIM     longest preview side in pixels (default 512)
//	STAX_PREVIEWS_DIR        generated previews (default <db dir>/previews)
//	STAX_FFMPEG              ffmpeg binary (default ffmpeg)
//	STAX_DEFAULT_COPY        soft or hard (default soft)
//	STAX_METRICS_FILE        node_exporter textfile written on exit
//	STAX_MACHINE, STAX_USER  identity for favorites and playlists
//	LOG_LEVEL, LOG_FORMAT    see package logging
//
// The TOML keys are the lower-case variable names without the STAX_
// prefix, for example db_path or preview_cache_mb. A value that does not
// parse is logged and ignored, so the previous layer's value stays in
// effect. WAL needs shared memory between processes, so keep the default
// DELETE journal when the catalog lives on a network share.
package config

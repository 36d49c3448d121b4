/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

Catalog libraries and preview images usually live on shared network volumes. When a
file is replaced on the server while a client holds a cached handle, the next access
can fail with ESTALE even though a fresh lookup would succeed. StatWithRetry,
OpenWithRetry and ReadDirWithRetry repeat the lookup in that case.

# Usage

	info, err := filesystem.StatWithRetry("/mnt/library/plate.exr", filesystem.DefaultRetryConfig())

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}
	defer f.Close()

# Retry Behavior

Defaults: 3 retries, 50ms initial backoff doubling up to 500ms. Only ESTALE
triggers a retry; every other error is returned immediately.

# Metrics

Retry outcomes are reported to the Observer installed with SetObserver. The
metrics package provides the Prometheus implementation; with no observer set
nothing is recorded.
*/
package filesystem

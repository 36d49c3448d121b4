// Command stax is the command-line front end of the StaX catalog.
//
// It manages stacks, lists and elements in a catalog database that many
// workstations can share over a network volume, imports directory trees
// of footage, keeps per-machine favorites and shared playlists, and
// decodes previews through one in-process cache.
//
// Usage:
//
//	stax import /mnt/library/shots --tags plate
//	stax stack ls
//	stax element ls 12 --all
//	stax element search fire --by tags
//	stax fav add 1042
//	stax playlist create dailies && stax playlist add 1 1042
//	stax playlist export 1 dailies.wpl
//	stax playlist import review.wpl --name review
//	stax preview warm 12
//	stax history export ingest.csv
//
// Configuration comes from defaults, an optional TOML file (--config or
// STAX_CONFIG) and STAX_* environment variables; see package config.
// When STAX_METRICS_FILE is set, the process writes its Prometheus
// metrics there on exit for node_exporter's textfile collector.
// STAX_MEMORY_LIMIT caps the Go heap (see package memory); preview warm-up
// pauses while the heap is close to it.
package main

package metrics

// Operation names recorded by the catalog store. Kept here so the label sets
// can be pre-populated before the first export.
var dbOperations = []string{
	"migrate", "create_stack", "get_all_stacks", "get_stack", "delete_stack",
	"create_list", "get_lists_by_stack", "get_list", "delete_list",
	"create_element", "get_elements_by_list", "get_element", "update_element", "delete_element",
	"search_elements", "add_favorite", "remove_favorite", "get_favorites",
	"create_playlist", "add_to_playlist", "get_playlist_elements",
	"log_ingestion", "get_ingestion_history", "export_history",
	"catalog_stats", "schema_version", "create_user", "authenticate_user", "create_session",
	"get_setting", "set_setting",
}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first write.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, op := range dbOperations {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
		DBBusyRetries.WithLabelValues(op)
		DBBusyExhausted.WithLabelValues(op)
	}

	for _, reason := range []string{"timeout", "io", "canceled"} {
		LockFailures.WithLabelValues(reason)
	}

	for _, status := range []string{"success", "error"} {
		PreviewDecodeDuration.WithLabelValues(status)
		LibraryImportFiles.WithLabelValues(status)
	}
	LibraryImportFiles.WithLabelValues("skipped")

	for _, entity := range []string{"stacks", "lists", "elements", "favorites", "playlists", "history"} {
		CatalogEntities.WithLabelValues(entity)
	}

	for _, op := range []string{"stat", "open", "readdir"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
		FilesystemRetryDuration.WithLabelValues(op)
	}
}

// Package library imports directory trees into the catalog.
//
// An import maps one directory to a stack. Sub-directories become lists,
// nested the same way as on disk down to a maximum depth, and files that
// sit directly in the root go into a "_root" list. Inside each directory,
// numbered frames such as plate.1001.exr .. plate.1100.exr collapse into a
// single element whose path is the '#' pattern and whose frame range is
// "1001-1100". Files of unknown type and hidden entries are ignored.
//
// Elements are soft copies by default and reference the source in place.
// With CopyHard the files are also copied into the list's repository
// directory under the stack, and the element records both locations.
//
// Every ingest, successful or not, is appended to the ingestion history.
// Imports are incremental: a second run over the same tree reuses the
// stack and lists and skips elements whose source is already cataloged.
package library

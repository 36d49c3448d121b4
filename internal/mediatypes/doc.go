// Package mediatypes classifies asset files for the catalog.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles. It contains primitive types, constants,
// and pure utility functions with no external dependencies beyond the standard library.
//
// # Categories
//
// Every cataloged file falls into one of three categories, matching the
// catalog's element types:
//
//	mediatypes.Category2D      // Images, image sequences and movies (exr, dpx, mov, ...)
//	mediatypes.Category3D      // Geometry and scenes (abc, obj, fbx, usd, ...)
//	mediatypes.CategoryToolset // Compositor node graphs (nk)
//
// Classify returns the category of a path, and false for anything the
// catalog does not ingest. Format returns the upper-case extension stored
// in the element's format column.
//
// # Sequences
//
// DetectSequences groups the files of one directory into frame sequences
// named like "plate.1001.exr" or "plate_1001.exr" (four or more digits).
// A Sequence reports its '#'-padded pattern and its "first-last" frame range:
//
//	seqs, singles := mediatypes.DetectSequences(dir, names)
//	for _, s := range seqs {
//	    fmt.Println(s.Pattern(), s.FrameRange()) // /plates/plate.####.exr 1001-1100
//	}
package mediatypes

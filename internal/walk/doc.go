// Package walk enumerates the files below a root directory.
//
// Traversal is depth-first and single-threaded; the entries of each
// directory are visited in lexicographic order so that repeated walks of an
// unchanged tree yield records in the same order. Extraction of the visited
// files may run on a bounded worker pool, in which case results are
// re-sequenced into traversal order before they are handed to the caller.
package walk

// Package textutil provides text processing utilities for entity naming and
// script analysis.
//
// The primary use cases are:
//   - Normalizing entity display names into stable workspace keys
//     (case-insensitive, whitespace and punctuation collapsed)
//   - Splitting narration scripts into paragraphs
//   - Counting year stamps, uncertainty markers, and words for script
//     style analysis
//
// Entity keys use Unicode case folding so that names differing only in case
// or spacing resolve to the same workspace directory.
package textutil

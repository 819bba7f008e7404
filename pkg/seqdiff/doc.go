// Package seqdiff computes minimal edit scripts between two slices of
// comparable elements.
//
// Diff runs a band-restricted Wagner-Fischer edit distance over the shorter
// sequence as the primary axis, backtracks the table into an edit script of
// added, deleted and retained records, and finally pairs deletions with
// additions of equal value into moves. The band keeps the work proportional
// to len(short) x (length difference), which is what makes diffing large
// mostly-similar sequences cheap.
package seqdiff

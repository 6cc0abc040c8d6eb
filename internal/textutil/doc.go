// Package textutil normalizes user-supplied names into filesystem-safe tokens.
//
// Video identifiers end up in directory names, report file names, and history
// rows, so they are folded to ASCII, lowercased, and stripped of anything a
// shell or filesystem might trip over.
package textutil

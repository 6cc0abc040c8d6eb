// Package dedup removes near-duplicate frames from an ordered sequence.
//
// Frames are fingerprinted with a 64-bit DCT perceptual hash and compared by
// Hamming distance. Deduplicate is greedy and order dependent: the first frame
// is always kept, and each later frame is dropped if it lies within the
// distance threshold of any frame kept before it.
package dedup

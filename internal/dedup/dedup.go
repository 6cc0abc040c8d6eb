package dedup

import (
	"fmt"
	"image"
	"math/bits"
)

// Record describes one eliminated frame.
type Record struct {
	DuplicateFrameID   int `json:"duplicate_frame_id"`
	MatchedKeptFrameID int `json:"matched_kept_frame_id"`
	HammingDistance    int `json:"hamming_distance"`
}

// Result lists the kept input positions in order and the eliminated frames.
type Result struct {
	Kept       []int
	Duplicates []Record
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Deduplicate keeps index 0 and every later index whose fingerprint is more
// than maxDistance bits away from all previously kept fingerprints. A match is
// recorded against the earliest kept frame within maxDistance.
func Deduplicate(hashes []uint64, ids []int, maxDistance int) (Result, error) {
	if len(hashes) != len(ids) {
		return Result{}, fmt.Errorf("dedup: %d fingerprints for %d frame ids", len(hashes), len(ids))
	}
	result := Result{Kept: []int{}, Duplicates: []Record{}}
	if len(hashes) == 0 {
		return result, nil
	}

	result.Kept = append(result.Kept, 0)
	for i := 1; i < len(hashes); i++ {
		duplicate := false
		for _, k := range result.Kept {
			d := Distance(hashes[i], hashes[k])
			if d <= maxDistance {
				result.Duplicates = append(result.Duplicates, Record{
					DuplicateFrameID:   ids[i],
					MatchedKeptFrameID: ids[k],
					HammingDistance:    d,
				})
				duplicate = true
				break
			}
		}
		if !duplicate {
			result.Kept = append(result.Kept, i)
		}
	}
	return result, nil
}

// Fingerprinter reduces an image to a 64-bit perceptual fingerprint.
type Fingerprinter interface {
	Fingerprint(img image.Image) uint64
}

// Deduplicator fingerprints frames and runs Deduplicate over them.
type Deduplicator struct {
	Fingerprinter Fingerprinter
	MaxDistance   int
}

// New returns a Deduplicator using the DCT perceptual hash.
func New(maxDistance int) Deduplicator {
	return Deduplicator{Fingerprinter: PHash{}, MaxDistance: maxDistance}
}

// Frames deduplicates frames, whose ids are reported in duplicate records.
func (d Deduplicator) Frames(frames []image.Image, ids []int) (Result, error) {
	if len(frames) != len(ids) {
		return Result{}, fmt.Errorf("dedup: %d frames for %d frame ids", len(frames), len(ids))
	}
	fp := d.Fingerprinter
	if fp == nil {
		fp = PHash{}
	}
	hashes := make([]uint64, len(frames))
	for i, frame := range frames {
		hashes[i] = fp.Fingerprint(frame)
	}
	return Deduplicate(hashes, ids, d.MaxDistance)
}

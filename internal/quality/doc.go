// Package quality judges whether an extracted frame is worth keeping.
//
// A frame is rejected as blurry when the variance of its Laplacian falls below
// the blur threshold, and as a transition when its grayscale intensity is
// nearly uniform (fade to black, fade to white, or a flat frame of any
// brightness). Evaluation is pure: the same pixels always produce the same
// Metrics.
package quality

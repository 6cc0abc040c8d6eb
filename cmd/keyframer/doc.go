// Package main hosts the keyframer CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into pipeline runs,
// run history queries, environment checks, and configuration scaffolding.
// Configuration resolution and logger setup live here so the internal
// packages stay free of process concerns.
package main

// Package services defines the error markers shared by the pipeline and the
// adapters it drives.
//
// Every failure that crosses a package boundary is tagged with one of the
// sentinel errors via Wrap, which also stamps the pipeline stage and operation
// into the message. Callers classify with errors.Is; FailureOutcome turns an
// error into the outcome label stored in the run history.
package services

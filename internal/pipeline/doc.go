// Package pipeline runs one sync as an ordered list of steps.
//
// A run moves through four steps that share a *model.SyncReport:
//
//	discover -> confirm -> download -> record
//
// The discover and download steps each drive their own scheduler phase,
// drawing from one permit pool, and each waits for its phase to finish
// before returning. The confirm step prints the plan and may cancel the
// run; the download step skips cancelled runs and dry runs.
package pipeline

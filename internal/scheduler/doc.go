// Package scheduler runs the periodic metric and purge jobs.
//
// Each task gets its own goroutine loop:
//   - Runs once immediately, then on its configured interval
//   - Errors and panics are logged with the task name, never fatal
//   - Shutdown cancels the shared context and waits for in-flight work
package scheduler

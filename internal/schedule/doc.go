// Package schedule turns slot time windows into lock pushes.
//
// A slot may carry an optional {start, end} window. The monitor evaluates
// every scheduled slot on a fixed interval: when the window opens and the
// slot's desired state is enabled, the credential is pushed to the lock
// and schedule_started fires; when the window closes, the desired state
// is forced to disabled, the change is pushed, and schedule_ended fires.
//
// The monitor only converges state it can derive from the repository, so
// a missed tick or a restart mid-window self-heals on the next pass.
package schedule

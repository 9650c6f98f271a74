// Package hostsync keeps the bootstrap coordinator in step with host lifecycle
// events.
//
// A Synchronizer owns the only thread of control for host events. Hosts post
// events (process start, run mode transitions, document save and close, quit,
// preference toggles) and the synchronizer maps each one to at most one
// coordinator call according to a fixed policy table. Document events are only
// acted on while the matching listener is armed; one-shot listeners disarm
// themselves the first time they fire.
package hostsync

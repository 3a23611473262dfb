// Package testdoubles provides spies for the dependency-free observability interfaces
// shared by the command bus and the event store engines.
//
// All spies are safe for concurrent use: the command bus reports from three stage goroutines.
package testdoubles

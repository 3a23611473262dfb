// Package core contains the pure domain of the bank example: the Account aggregate, its events,
// and the decision result returned by the feature Decide functions.
//
// Nothing in here does I/O. The features translate decisions into UnitOfWork calls, the shell
// wires them to a commandbus.CommandBus.
package core

// Package openaccount implements the Open Account use case.
//
// Opening an account that is already opened for the same owner is a no-op. Opening it for another
// owner is rejected with an OpeningAccountFailed event.
package openaccount

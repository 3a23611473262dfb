// Package depositmoney implements the Deposit Money use case.
package depositmoney

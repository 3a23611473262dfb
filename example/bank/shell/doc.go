// Package shell wires the bank domain to the command bus: command messages, the validating
// interceptor, the account command bus with all feature handlers subscribed, and dispatch retries.
package shell

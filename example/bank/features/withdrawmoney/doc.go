// Package withdrawmoney implements the Withdraw Money use case. The balance never becomes negative.
package withdrawmoney

package withdrawmoney

import (
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/core"
)

const (
	failureReasonAccountNotOpened  = "account is not opened"
	failureReasonInsufficientFunds = "insufficient funds"
)

// Decide implements the business logic to determine whether money can be withdrawn.
//
// Business Rules:
//
//	GIVEN: An account with AccountID
//	WHEN: WithdrawMoney command is received
//	THEN: MoneyWithdrawn event with the new balance is generated
//	ERROR: "account is not opened"
//	ERROR: "insufficient funds" if the amount exceeds the balance
func Decide(account *core.Account, command Command) core.DecisionResult {
	if !account.IsOpened() {
		return reject(command, failureReasonAccountNotOpened)
	}

	if account.Balance() < command.Amount {
		return reject(command, failureReasonInsufficientFunds)
	}

	return core.SuccessDecision(core.MoneyWithdrawn{
		AccountID: command.AccountID,
		Amount:    command.Amount,
		Balance:   account.Balance() - command.Amount,
	})
}

func reject(command Command, reason string) core.DecisionResult {
	return core.ErrorDecision(
		core.WithdrawingMoneyFailed{AccountID: command.AccountID, Amount: command.Amount, Reason: reason},
		reason,
	)
}

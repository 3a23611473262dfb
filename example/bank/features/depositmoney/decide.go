package depositmoney

import (
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/core"
)

const failureReasonAccountNotOpened = "account is not opened"

// Decide implements the business logic to determine whether money can be deposited.
//
// Business Rules:
//
//	GIVEN: An account with AccountID
//	WHEN: DepositMoney command is received
//	THEN: MoneyDeposited event with the new balance is generated
//	ERROR: "account is not opened"
func Decide(account *core.Account, command Command) core.DecisionResult {
	if !account.IsOpened() {
		return core.ErrorDecision(
			core.DepositingMoneyFailed{
				AccountID: command.AccountID,
				Amount:    command.Amount,
				Reason:    failureReasonAccountNotOpened,
			},
			failureReasonAccountNotOpened,
		)
	}

	return core.SuccessDecision(core.MoneyDeposited{
		AccountID: command.AccountID,
		Amount:    command.Amount,
		Balance:   account.Balance() + command.Amount,
	})
}

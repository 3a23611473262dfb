package openaccount

import (
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/core"
)

const failureReasonOpenedForAnotherOwner = "account is already opened for another owner"

// Decide implements the business logic to determine whether an account should be opened.
//
// Business Rules:
//
//	GIVEN: An account with AccountID
//	WHEN: OpenAccount command is received
//	THEN: AccountOpened event is generated
//	ERROR: "account is already opened for another owner"
//	IDEMPOTENCY: If the account is already opened for this owner, no event is generated
func Decide(account *core.Account, command Command) core.DecisionResult {
	if account.IsOpened() && account.Owner() == command.Owner {
		return core.IdempotentDecision()
	}

	if account.IsOpened() {
		return core.ErrorDecision(
			core.OpeningAccountFailed{
				AccountID: command.AccountID,
				Owner:     command.Owner,
				Reason:    failureReasonOpenedForAnotherOwner,
			},
			failureReasonOpenedForAnotherOwner,
		)
	}

	return core.SuccessDecision(core.AccountOpened{AccountID: command.AccountID, Owner: command.Owner})
}

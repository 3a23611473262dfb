package withdrawmoney_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/core"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/features/withdrawmoney"
)

func accountWithBalance(balance int64) *core.Account {
	account := core.NewAccount("A1")
	account.Apply(core.AccountOpened{AccountID: "A1", Owner: "alice"})
	account.Apply(core.MoneyDeposited{AccountID: "A1", Amount: balance, Balance: balance})

	return account
}

func Test_Decide(t *testing.T) {
	tests := []struct {
		name            string
		account         *core.Account
		amount          int64
		expectedOutcome core.DecisionOutcome
		expectedEvent   any
	}{
		{
			name:            "withdrawing within the balance",
			account:         accountWithBalance(50),
			amount:          20,
			expectedOutcome: core.DecisionSuccess,
			expectedEvent:   core.MoneyWithdrawn{AccountID: "A1", Amount: 20, Balance: 30},
		},
		{
			name:            "withdrawing the whole balance",
			account:         accountWithBalance(50),
			amount:          50,
			expectedOutcome: core.DecisionSuccess,
			expectedEvent:   core.MoneyWithdrawn{AccountID: "A1", Amount: 50, Balance: 0},
		},
		{
			name:            "withdrawing more than the balance",
			account:         accountWithBalance(50),
			amount:          51,
			expectedOutcome: core.DecisionError,
			expectedEvent:   core.WithdrawingMoneyFailed{AccountID: "A1", Amount: 51, Reason: "insufficient funds"},
		},
		{
			name:            "withdrawing from an account that is not opened",
			account:         core.NewAccount("A1"),
			amount:          1,
			expectedOutcome: core.DecisionError,
			expectedEvent:   core.WithdrawingMoneyFailed{AccountID: "A1", Amount: 1, Reason: "account is not opened"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			result := withdrawmoney.Decide(tt.account, withdrawmoney.BuildCommand("A1", tt.amount))

			// assert
			assert.Equal(t, tt.expectedOutcome, result.Outcome)
			assert.Equal(t, tt.expectedEvent, result.Event)
		})
	}
}

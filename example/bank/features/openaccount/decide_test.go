package openaccount_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/core"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/features/openaccount"
)

func openedAccount(id string, owner string) *core.Account {
	account := core.NewAccount(id)
	account.Apply(core.AccountOpened{AccountID: id, Owner: owner})

	return account
}

func Test_Decide(t *testing.T) {
	tests := []struct {
		name            string
		account         *core.Account
		command         openaccount.Command
		expectedOutcome core.DecisionOutcome
		expectedEvent   any
	}{
		{
			name:            "new account is opened",
			account:         core.NewAccount("A1"),
			command:         openaccount.BuildCommand("A1", "alice"),
			expectedOutcome: core.DecisionSuccess,
			expectedEvent:   core.AccountOpened{AccountID: "A1", Owner: "alice"},
		},
		{
			name:            "opening again for the same owner is idempotent",
			account:         openedAccount("A1", "alice"),
			command:         openaccount.BuildCommand("A1", "alice"),
			expectedOutcome: core.DecisionIdempotent,
		},
		{
			name:            "opening for another owner is rejected",
			account:         openedAccount("A1", "alice"),
			command:         openaccount.BuildCommand("A1", "bob"),
			expectedOutcome: core.DecisionError,
			expectedEvent: core.OpeningAccountFailed{
				AccountID: "A1",
				Owner:     "bob",
				Reason:    "account is already opened for another owner",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			result := openaccount.Decide(tt.account, tt.command)

			// assert
			assert.Equal(t, tt.expectedOutcome, result.Outcome)
			if tt.expectedEvent != nil {
				assert.Equal(t, tt.expectedEvent, result.Event)
			} else {
				assert.Nil(t, result.Event)
			}
		})
	}
}

func Test_Command_Validate_When_OwnerIsBlank(t *testing.T) {
	assert.ErrorIs(t, openaccount.BuildCommand("A1", "  ").Validate(), openaccount.ErrEmptyOwner)
	assert.NoError(t, openaccount.BuildCommand("A1", "alice").Validate())
}

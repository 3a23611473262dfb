package depositmoney_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/core"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/features/depositmoney"
)

func Test_Decide_When_AccountIsOpened(t *testing.T) {
	// arrange
	account := core.NewAccount("A1")
	account.Apply(core.AccountOpened{AccountID: "A1", Owner: "alice"})
	account.Apply(core.MoneyDeposited{AccountID: "A1", Amount: 30, Balance: 30})

	// act
	result := depositmoney.Decide(account, depositmoney.BuildCommand("A1", 12))

	// assert
	assert.Equal(t, core.DecisionSuccess, result.Outcome)
	assert.Equal(t, core.MoneyDeposited{AccountID: "A1", Amount: 12, Balance: 42}, result.Event)
}

func Test_Decide_When_AccountIsNotOpened(t *testing.T) {
	// act
	result := depositmoney.Decide(core.NewAccount("A1"), depositmoney.BuildCommand("A1", 12))

	// assert
	assert.Equal(t, core.DecisionError, result.Outcome)
	assert.Equal(t, "account is not opened", result.Reason)
	assert.IsType(t, core.DepositingMoneyFailed{}, result.Event)
}

func Test_Command_Validate(t *testing.T) {
	assert.ErrorIs(t, depositmoney.BuildCommand("A1", 0).Validate(), depositmoney.ErrNonPositiveAmount)
	assert.ErrorIs(t, depositmoney.BuildCommand("A1", -5).Validate(), depositmoney.ErrNonPositiveAmount)
	assert.NoError(t, depositmoney.BuildCommand("A1", 1).Validate())
}

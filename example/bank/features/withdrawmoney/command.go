package withdrawmoney

import (
	"errors"
)

// CommandType is the routing key of Command.
const CommandType = "WithdrawMoney"

var ErrNonPositiveAmount = errors.New("amount must be positive")

// Command represents the intent to withdraw an amount in minor units from an account.
type Command struct {
	AccountID string
	Amount    int64
}

// CommandType returns the type identifier for this command.
func (c Command) CommandType() string {
	return CommandType
}

// TargetAccountID returns the account the command is routed to.
func (c Command) TargetAccountID() string {
	return c.AccountID
}

// Validate checks the command independently of any account state.
func (c Command) Validate() error {
	if c.Amount <= 0 {
		return ErrNonPositiveAmount
	}

	return nil
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(accountID string, amount int64) Command {
	return Command{
		AccountID: accountID,
		Amount:    amount,
	}
}

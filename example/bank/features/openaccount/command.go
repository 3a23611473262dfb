package openaccount

import (
	"errors"
	"strings"
)

// CommandType is the routing key of Command.
const CommandType = "OpenAccount"

var ErrEmptyOwner = errors.New("owner must not be empty")

// Command represents the intent to open an account for an owner.
type Command struct {
	AccountID string
	Owner     string
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
	if strings.TrimSpace(c.Owner) == "" {
		return ErrEmptyOwner
	}

	return nil
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(accountID string, owner string) Command {
	return Command{
		AccountID: accountID,
		Owner:     owner,
	}
}

package shell

import (
	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
)

// AccountCommand is implemented by the commands of all account features.
type AccountCommand interface {
	CommandType() string
	TargetAccountID() string
}

// Validatable commands are checked by the ValidatingInterceptor before their account is loaded.
type Validatable interface {
	Validate() error
}

// NewCommandMessage wraps an account command with its target aggregate metadata.
func NewCommandMessage(command AccountCommand, options ...commandbus.MetadataOption) commandbus.CommandMessage {
	options = append(options, commandbus.TargetAggregate(command.TargetAccountID()))

	return commandbus.BuildCommandMessage(command, options...)
}

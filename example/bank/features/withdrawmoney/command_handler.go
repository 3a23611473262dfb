package withdrawmoney

import (
	"context"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/core"
)

// CommandHandler decides on the preloaded account and records the decision.
type CommandHandler struct{}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler() CommandHandler {
	return CommandHandler{}
}

// Handle implements commandbus.CommandHandler for accounts.
func (h CommandHandler) Handle(
	_ context.Context,
	message commandbus.CommandMessage,
	account *core.Account,
	uow *commandbus.UnitOfWork,
) error {

	command, ok := message.Payload().(Command)
	if !ok {
		return core.ErrUnexpectedCommandPayload
	}

	Decide(account, command).Record(uow)

	return nil
}

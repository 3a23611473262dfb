package shell

import (
	"context"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
)

// ValidatingInterceptor vetoes commands whose payload fails its own validation.
// Payloads not implementing Validatable pass unchanged.
func ValidatingInterceptor() commandbus.CommandInterceptor {
	return commandbus.CommandInterceptorFunc(
		func(_ context.Context, command commandbus.CommandMessage) (commandbus.CommandMessage, error) {
			if v, ok := command.Payload().(Validatable); ok {
				if err := v.Validate(); err != nil {
					return command, err
				}
			}

			return command, nil
		},
	)
}

// ActorInterceptor stamps the given actor onto commands that carry none.
func ActorInterceptor(actor string) commandbus.CommandInterceptor {
	return commandbus.CommandInterceptorFunc(
		func(_ context.Context, command commandbus.CommandMessage) (commandbus.CommandMessage, error) {
			if _, ok := command.MetadataValue(MetadataKeyActor); ok {
				return command, nil
			}

			return command.AndMetadata(commandbus.WithMetadata(MetadataKeyActor, actor)), nil
		},
	)
}

// MetadataKeyActor names who issued a command.
const MetadataKeyActor = "actor"

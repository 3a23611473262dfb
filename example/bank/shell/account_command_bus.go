package shell

import (
	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
	"github.com/AntonStoeckl/pipelined-commandbus-go/eventstore"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/core"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/features/depositmoney"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/features/openaccount"
	"github.com/AntonStoeckl/pipelined-commandbus-go/example/bank/features/withdrawmoney"
)

// AccountCommandBus is the command bus for accounts.
type AccountCommandBus = commandbus.CommandBus[*core.Account]

// NewSerializer returns a serializer knowing every bank event type.
func NewSerializer() *eventstore.Serializer {
	return eventstore.NewSerializer(core.EventPrototypes()...)
}

// NewAccountCommandBus creates a running command bus for accounts with the ValidatingInterceptor
// installed first and all feature handlers subscribed.
func NewAccountCommandBus(
	eventStore commandbus.EventStore,
	eventBus commandbus.EventBus,
	options ...commandbus.Option,
) (*AccountCommandBus, error) {

	options = append([]commandbus.Option{commandbus.WithInterceptors(ValidatingInterceptor())}, options...)

	bus, err := commandbus.NewCommandBus(core.NewAccountFactory(), eventStore, eventBus, options...)
	if err != nil {
		return nil, err
	}

	bus.Subscribe(openaccount.CommandType, openaccount.NewCommandHandler())
	bus.Subscribe(depositmoney.CommandType, depositmoney.NewCommandHandler())
	bus.Subscribe(withdrawmoney.CommandType, withdrawmoney.NewCommandHandler())

	return bus, nil
}

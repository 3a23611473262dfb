package core

import (
	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
)

// AccountAggregateType is the stream type of accounts in the event store.
const AccountAggregateType = "Account"

// Account is the event-sourced bank account.
type Account struct {
	id      string
	owner   string
	opened  bool
	balance int64
}

// NewAccount returns an account that has not been opened yet.
func NewAccount(accountID string) *Account {
	return &Account{id: accountID}
}

// NewAccountFactory returns the factory the command bus uses to reconstruct accounts.
func NewAccountFactory() commandbus.EventSourcingFactory[*Account] {
	return commandbus.NewEventSourcingFactory(AccountAggregateType, NewAccount)
}

func (a *Account) AggregateIdentifier() string {
	return a.id
}

// Apply changes the state for stored events. Failure events carry no state and are ignored.
func (a *Account) Apply(event commandbus.DomainEvent) {
	switch e := event.(type) {
	case AccountOpened:
		a.opened = true
		a.owner = e.Owner
	case MoneyDeposited:
		a.balance = e.Balance
	case MoneyWithdrawn:
		a.balance = e.Balance
	}
}

func (a *Account) IsOpened() bool {
	return a.opened
}

func (a *Account) Owner() string {
	return a.owner
}

func (a *Account) Balance() int64 {
	return a.balance
}

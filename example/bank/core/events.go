package core

import (
	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
)

const (
	AccountOpenedEventType          = "AccountOpened"
	MoneyDepositedEventType         = "MoneyDeposited"
	MoneyWithdrawnEventType         = "MoneyWithdrawn"
	OpeningAccountFailedEventType   = "OpeningAccountFailed"
	DepositingMoneyFailedEventType  = "DepositingMoneyFailed"
	WithdrawingMoneyFailedEventType = "WithdrawingMoneyFailed"
)

// AccountOpened is stored when a new account is opened for its owner.
type AccountOpened struct {
	AccountID string `json:"accountId"`
	Owner     string `json:"owner"`
}

func (AccountOpened) EventType() string { return AccountOpenedEventType }

// MoneyDeposited is stored for every accepted deposit. Balance is the balance after the deposit.
type MoneyDeposited struct {
	AccountID string `json:"accountId"`
	Amount    int64  `json:"amount"`
	Balance   int64  `json:"balance"`
}

func (MoneyDeposited) EventType() string { return MoneyDepositedEventType }

// MoneyWithdrawn is stored for every accepted withdrawal. Balance is the balance after the withdrawal.
type MoneyWithdrawn struct {
	AccountID string `json:"accountId"`
	Amount    int64  `json:"amount"`
	Balance   int64  `json:"balance"`
}

func (MoneyWithdrawn) EventType() string { return MoneyWithdrawnEventType }

// OpeningAccountFailed is only published, it never becomes part of the account's stream.
type OpeningAccountFailed struct {
	AccountID string `json:"accountId"`
	Owner     string `json:"owner"`
	Reason    string `json:"reason"`
}

func (OpeningAccountFailed) EventType() string { return OpeningAccountFailedEventType }

// DepositingMoneyFailed is only published, it never becomes part of the account's stream.
type DepositingMoneyFailed struct {
	AccountID string `json:"accountId"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
}

func (DepositingMoneyFailed) EventType() string { return DepositingMoneyFailedEventType }

// WithdrawingMoneyFailed is only published, it never becomes part of the account's stream.
type WithdrawingMoneyFailed struct {
	AccountID string `json:"accountId"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
}

func (WithdrawingMoneyFailed) EventType() string { return WithdrawingMoneyFailedEventType }

// EventPrototypes returns one zero value of every event type, for registering with an eventstore.Serializer.
func EventPrototypes() []commandbus.DomainEvent {
	return []commandbus.DomainEvent{
		AccountOpened{},
		MoneyDeposited{},
		MoneyWithdrawn{},
		OpeningAccountFailed{},
		DepositingMoneyFailed{},
		WithdrawingMoneyFailed{},
	}
}

//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"interest-chat/domain/account"
	"interest-chat/domain/chat"
	"interest-chat/domain/event"
	"interest-chat/domain/learn"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the delivery end of one connected client.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// IBroadcaster is the only part of the router the dispatch service needs.
type IBroadcaster interface {
	Broadcast(ctx context.Context, channel chat.InterestID, e event.Event) int
}

type IRouter interface {
	IBroadcaster
	Join(clientID string, sink EventSink, channel chat.InterestID) error
	Leave(clientID string, channel chat.InterestID) error
	RelayEphemeral(ctx context.Context, senderID string, channel chat.InterestID, e event.Event) int
	Disconnect(clientID string)
	IsJoined(clientID string, channel chat.InterestID) bool
}

// IMembershipStore fails with errors.ErrInterestNotFound when the interest is absent or deleted.
type IMembershipStore interface {
	IsMember(ctx context.Context, interestID chat.InterestID, userID chat.UserID) (bool, error)
	AddMember(ctx context.Context, interestID chat.InterestID, userID chat.UserID) error
	RemoveMember(ctx context.Context, interestID chat.InterestID, userID chat.UserID) error
	MemberCount(ctx context.Context, interestID chat.InterestID) (int, error)
}

type IInterestDirectory interface {
	FindInterest(ctx context.Context, interestID chat.InterestID) (chat.Interest, error)
	CreateInterest(ctx context.Context, name string) (chat.Interest, error)
	ListInterests(ctx context.Context) ([]chat.Interest, error)
}

type IMessageStore interface {
	Append(ctx context.Context, message chat.Message) (chat.Message, error)
	ListByInterest(ctx context.Context, interestID chat.InterestID, page chat.Page) ([]chat.Message, int, error)
	FindByID(ctx context.Context, messageID uuid.UUID) (chat.Message, error)
}

type IUserDirectory interface {
	FindByID(ctx context.Context, userID chat.UserID) (account.User, error)
}

type IContentTree interface {
	ResolveEntry(ctx context.Context, ref chat.EntryRef) (learn.Entry, error)
	CategoryName(ctx context.Context, categoryID string) (string, error)
}

type IMessageIndex interface {
	Index(message chat.Message) error
	Search(ctx context.Context, interestID chat.InterestID, terms string, page chat.Page) ([]uuid.UUID, int, error)
}

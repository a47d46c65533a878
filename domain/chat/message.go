package chat

import (
	"time"

	"github.com/google/uuid"
)

type Kind int

const (
	KindPlain Kind = iota
	KindImportant
	KindSharedEntry
)

func (k Kind) String() string {
	switch k {
	case KindImportant:
		return "important"
	case KindSharedEntry:
		return "shared_entry"
	default:
		return "plain"
	}
}

// EntryRef points at a leaf of the learn content tree.
type EntryRef struct {
	CategoryID    string
	SubCategoryID string
	TopicID       string
	EntryID       string
}

// SharedEntry is frozen when the message is written.
// Later edits or deletion of the source entry never reach it.
type SharedEntry struct {
	Ref   EntryRef
	Title string
	Body  string
}

type Message struct {
	ID          uuid.UUID
	InterestID  InterestID
	AuthorID    UserID
	Body        string
	Important   bool
	SharedEntry *SharedEntry
	Lang        string
	CreatedAt   time.Time
}

func (m Message) Kind() Kind {
	switch {
	case m.SharedEntry != nil:
		return KindSharedEntry
	case m.Important:
		return KindImportant
	default:
		return KindPlain
	}
}

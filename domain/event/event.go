package event

import "interest-chat/domain/chat"

type Name string

// Outbound events pushed to realtime clients.
const (
	NewMessage          Name = "newMessage"
	NewImportantMessage Name = "newImportantMessage"
	NewSharedEntry      Name = "newSharedEntry"
	UserTyping          Name = "userTyping"
	Error               Name = "error"
	Pong                Name = "pong"
)

// Inbound events sent by realtime clients.
const (
	JoinInterest  Name = "joinInterest"
	LeaveInterest Name = "leaveInterest"
	Typing        Name = "typing"
	Ping          Name = "ping"
)

// Event is the envelope written on a realtime connection.
type Event struct {
	Name Name `json:"event"`
	Data any  `json:"data"`
}

// ForKind picks the broadcast event so clients can render each message kind differently.
func ForKind(kind chat.Kind) Name {
	switch kind {
	case chat.KindImportant:
		return NewImportantMessage
	case chat.KindSharedEntry:
		return NewSharedEntry
	default:
		return NewMessage
	}
}

type TypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewError(message string) Event {
	return Event{Name: Error, Data: ErrorPayload{Message: message}}
}

func NewTyping(userID string, isTyping bool) Event {
	return Event{Name: UserTyping, Data: TypingPayload{UserID: userID, IsTyping: isTyping}}
}

package services

import (
	"interest-chat/domain/account"
	"interest-chat/domain/chat"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MessageView is the denormalized message returned to the sender, broadcast and listed.
type MessageView struct {
	ID          uuid.UUID        `json:"id"`
	InterestID  InterestRef      `json:"interestId"`
	UserID      UserRef          `json:"userId"`
	Message     string           `json:"message"`
	IsImportant bool             `json:"isImportant"`
	SharedEntry *SharedEntryView `json:"sharedEntry,omitempty"`
	Lang        string           `json:"lang,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

type InterestRef struct {
	ID   chat.InterestID `json:"id"`
	Name string          `json:"name"`
}

type UserRef struct {
	ID        chat.UserID `json:"id"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Name      string      `json:"name"`
}

// SharedEntryView carries the snapshot taken at share time.
// MainCategoryName is joined at read time and absent once the category is gone.
type SharedEntryView struct {
	MainCategoryID   string  `json:"mainCategoryId"`
	MainCategoryName *string `json:"mainCategoryName,omitempty"`
	SubCategoryID    string  `json:"subCategoryId"`
	TopicID          string  `json:"topicId"`
	EntryID          string  `json:"entryId"`
	Title            string  `json:"title"`
	Body             string  `json:"body"`
}

type MessagePage struct {
	Messages   []MessageView   `json:"messages"`
	Pagination chat.Pagination `json:"pagination"`
}

type MemberView struct {
	ID   chat.UserID `json:"id"`
	Name string      `json:"name"`
}

type MemberCountView struct {
	InterestID   chat.InterestID `json:"interestId"`
	InterestName string          `json:"interestName"`
	UserCount    int             `json:"userCount"`
	Users        []MemberView    `json:"users"`
}

type InterestView struct {
	ID        chat.InterestID `json:"id"`
	Name      string          `json:"name"`
	UserCount int             `json:"userCount"`
	CreatedAt time.Time       `json:"createdAt"`
}

type UserView struct {
	ID        chat.UserID       `json:"id"`
	FirstName string            `json:"firstName"`
	LastName  string            `json:"lastName"`
	Email     string            `json:"email"`
	Interests []chat.InterestID `json:"interests"`
}

func toUserRef(userID chat.UserID, user *account.User) UserRef {
	if user == nil {
		return UserRef{ID: userID, Name: account.UnknownUserName}
	}
	return UserRef{ID: userID, FirstName: user.FirstName, LastName: user.LastName, Name: user.DisplayName()}
}

// toMessageView joins a stored message with its author and the live category name.
// A nil author or an empty category name means the reference is gone.
func toMessageView(m chat.Message, interest chat.Interest, author *account.User, categoryName string) MessageView {
	view := MessageView{
		ID:          m.ID,
		InterestID:  InterestRef{ID: interest.ID, Name: interest.Name},
		UserID:      toUserRef(m.AuthorID, author),
		Message:     m.Body,
		IsImportant: m.Important,
		Lang:        m.Lang,
		CreatedAt:   m.CreatedAt,
	}
	if m.SharedEntry != nil {
		ref := m.SharedEntry.Ref
		view.SharedEntry = &SharedEntryView{
			MainCategoryID: ref.CategoryID,
			SubCategoryID:  ref.SubCategoryID,
			TopicID:        ref.TopicID,
			EntryID:        ref.EntryID,
			Title:          m.SharedEntry.Title,
			Body:           m.SharedEntry.Body,
		}
		if categoryName != "" {
			view.SharedEntry.MainCategoryName = lo.ToPtr(categoryName)
		}
	}
	return view
}

func toInterestView(interest chat.Interest) InterestView {
	return InterestView{
		ID:        interest.ID,
		Name:      interest.Name,
		UserCount: len(interest.Members),
		CreatedAt: interest.CreatedAt,
	}
}

func toUserView(user account.User) UserView {
	return UserView{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Interests: lo.Ternary(user.Interests == nil, []chat.InterestID{}, user.Interests),
	}
}

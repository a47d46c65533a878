package chat

type SendMessageCommand struct {
	InterestID InterestID `validate:"required"`
	UserID     UserID
	Body       string `validate:"required"`
	Important  bool
}

type ShareEntryCommand struct {
	InterestID    InterestID `validate:"required"`
	UserID        UserID
	Body          string `validate:"required"`
	CategoryID    string `validate:"required"`
	SubCategoryID string `validate:"required"`
	TopicID       string `validate:"required"`
	EntryID       string `validate:"required"`
}

func (c ShareEntryCommand) Ref() EntryRef {
	return EntryRef{
		CategoryID:    c.CategoryID,
		SubCategoryID: c.SubCategoryID,
		TopicID:       c.TopicID,
		EntryID:       c.EntryID,
	}
}

type ListMessagesQuery struct {
	InterestID InterestID
	UserID     UserID
	Page       int
	PageSize   int
}

type SearchMessagesQuery struct {
	InterestID InterestID
	UserID     UserID
	Terms      string
	Page       int
	PageSize   int
}

package services

import (
	"context"
	"fmt"
	"interest-chat/contract"
	"interest-chat/domain/account"
	"interest-chat/domain/chat"
	"interest-chat/domain/event"
	"interest-chat/errors"
	"interest-chat/moderation"
	"interest-chat/observability"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const defaultStoreTimeout = 5 * time.Second

// ReadPolicy decides who may read an interest's history and live stream.
type ReadPolicy string

const (
	// ReadPolicyOpen lets anyone read any existing interest.
	ReadPolicyOpen ReadPolicy = "open"
	// ReadPolicyMembers restricts reads to authenticated members.
	ReadPolicyMembers ReadPolicy = "members"
)

func ParseReadPolicy(s string) (ReadPolicy, error) {
	switch ReadPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case ReadPolicyOpen:
		return ReadPolicyOpen, nil
	case ReadPolicyMembers, "":
		return ReadPolicyMembers, nil
	default:
		return "", fmt.Errorf("unknown read policy %q", s)
	}
}

// Censor masks forbidden words of a body.
type Censor interface {
	Censor(body string) (string, []string)
}

type IDispatchService interface {
	SendMessage(ctx context.Context, cmd chat.SendMessageCommand) (MessageView, error)
	ShareEntry(ctx context.Context, cmd chat.ShareEntryCommand) (MessageView, error)
	ListMessages(ctx context.Context, query chat.ListMessagesQuery) (MessagePage, error)
	SearchMessages(ctx context.Context, query chat.SearchMessagesQuery) (MessagePage, error)
	MemberCount(ctx context.Context, interestID chat.InterestID, callerID chat.UserID) (MemberCountView, error)
	AuthorizeRead(ctx context.Context, interestID chat.InterestID, callerID chat.UserID) error
}

// DispatchService runs every send through validation, authorization, persistence and fan-out, in that order.
// Nothing is broadcast unless the message store accepted the write.
type DispatchService struct {
	interests    contract.IInterestDirectory
	members      contract.IMembershipStore
	messages     contract.IMessageStore
	users        contract.IUserDirectory
	content      contract.IContentTree
	router       contract.IBroadcaster
	index        contract.IMessageIndex
	indexChan    chan<- chat.Message
	censor       Censor
	readPolicy   ReadPolicy
	storeTimeout time.Duration
	maxPageSize  int
	log          *slog.Logger
}

func NewDispatchService(
	interests contract.IInterestDirectory,
	members contract.IMembershipStore,
	messages contract.IMessageStore,
	users contract.IUserDirectory,
	content contract.IContentTree,
	router contract.IBroadcaster,
	log *slog.Logger,
) *DispatchService {
	return &DispatchService{
		interests:    interests,
		members:      members,
		messages:     messages,
		users:        users,
		content:      content,
		router:       router,
		readPolicy:   ReadPolicyMembers,
		storeTimeout: defaultStoreTimeout,
		maxPageSize:  100,
		log:          log,
	}
}

// WithIndex enables search. Persisted messages are pushed to indexChan without ever blocking a send.
func (s *DispatchService) WithIndex(index contract.IMessageIndex, indexChan chan<- chat.Message) *DispatchService {
	s.index = index
	s.indexChan = indexChan
	return s
}

func (s *DispatchService) WithCensor(censor Censor) *DispatchService {
	s.censor = censor
	return s
}

func (s *DispatchService) WithReadPolicy(policy ReadPolicy) *DispatchService {
	s.readPolicy = policy
	return s
}

func (s *DispatchService) WithStoreTimeout(timeout time.Duration) *DispatchService {
	if timeout > 0 {
		s.storeTimeout = timeout
	}
	return s
}

func (s *DispatchService) WithMaxPageSize(size int) *DispatchService {
	if size > 0 {
		s.maxPageSize = size
	}
	return s
}

// SendMessage handles both plain and important sends.
func (s *DispatchService) SendMessage(ctx context.Context, cmd chat.SendMessageCommand) (MessageView, error) {
	trimmed := cmd
	trimmed.Body = strings.TrimSpace(cmd.Body)
	if err := validate.Struct(trimmed); err != nil {
		return s.reject(errors.ErrMissingFields)
	}
	if err := cmd.InterestID.Validate(); err != nil {
		return s.reject(err)
	}

	interest, author, err := s.authorizeSend(ctx, cmd.InterestID, cmd.UserID)
	if err != nil {
		return s.reject(err)
	}

	return s.dispatch(ctx, interest, author, chat.Message{
		InterestID: cmd.InterestID,
		AuthorID:   author.ID,
		Body:       cmd.Body,
		Important:  cmd.Important,
	}, "")
}

// ShareEntry resolves the referenced entry before anything is written and freezes its title and body into the message.
func (s *DispatchService) ShareEntry(ctx context.Context, cmd chat.ShareEntryCommand) (MessageView, error) {
	trimmed := cmd
	trimmed.Body = strings.TrimSpace(cmd.Body)
	if err := validate.Struct(trimmed); err != nil {
		return s.reject(errors.ErrMissingShareFields)
	}
	if err := cmd.InterestID.Validate(); err != nil {
		return s.reject(err)
	}

	interest, author, err := s.authorizeSend(ctx, cmd.InterestID, cmd.UserID)
	if err != nil {
		return s.reject(err)
	}

	entry, err := s.content.ResolveEntry(ctx, cmd.Ref())
	if err != nil {
		return s.reject(err)
	}
	categoryName, err := s.content.CategoryName(ctx, cmd.CategoryID)
	if err != nil {
		return s.reject(err)
	}

	return s.dispatch(ctx, interest, author, chat.Message{
		InterestID: cmd.InterestID,
		AuthorID:   author.ID,
		Body:       cmd.Body,
		SharedEntry: &chat.SharedEntry{
			Ref:   cmd.Ref(),
			Title: entry.Title,
			Body:  entry.Body,
		},
	}, categoryName)
}

// authorizeSend checks, in order: caller identity, interest, author and membership.
func (s *DispatchService) authorizeSend(ctx context.Context, interestID chat.InterestID, userID chat.UserID) (chat.Interest, account.User, error) {
	if userID == "" {
		return chat.Interest{}, account.User{}, errors.ErrUnauthenticated
	}
	interest, err := s.interests.FindInterest(ctx, interestID)
	if err != nil {
		return chat.Interest{}, account.User{}, err
	}
	author, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return chat.Interest{}, account.User{}, err
	}
	if !author.IsActive() {
		return chat.Interest{}, account.User{}, errors.ErrUserNotFound
	}
	member, err := s.members.IsMember(ctx, interestID, userID)
	if err != nil {
		return chat.Interest{}, account.User{}, err
	}
	if !member {
		return chat.Interest{}, account.User{}, errors.ErrNotMember
	}
	return interest, author, nil
}

func (s *DispatchService) dispatch(ctx context.Context, interest chat.Interest, author account.User, message chat.Message, categoryName string) (MessageView, error) {
	if s.censor != nil {
		censored, words := s.censor.Censor(message.Body)
		if len(words) > 0 {
			s.log.Debug("Message body censored", "interest", interest.ID, "user", author.ID, "words", len(words))
		}
		message.Body = censored
	}
	message.Lang = moderation.DetectLanguage(message.Body)

	stored, err := s.persist(ctx, message)
	if err != nil {
		s.log.Error("Failed to persist message", "interest", interest.ID, "user", author.ID, "error", err)
		return s.reject(err)
	}
	kind := stored.Kind()
	observability.IncMessageSent(kind.String())

	view := toMessageView(stored, interest, &author, categoryName)

	// The sender may already be gone, the other subscribers still get the event
	name := event.ForKind(kind)
	delivered := s.router.Broadcast(context.WithoutCancel(ctx), interest.ID, event.Event{Name: name, Data: view})
	observability.AddBroadcastDeliveries(string(name), delivered)
	s.log.Debug("Message dispatched", "id", stored.ID, "interest", interest.ID, "kind", kind, "delivered", delivered)

	if s.indexChan != nil {
		select {
		case s.indexChan <- stored:
		default:
			s.log.Warn("Index queue full, message not searchable", "id", stored.ID)
		}
	}
	return view, nil
}

// persist appends under a bounded timeout that the caller cannot cancel.
// On expiry the write may still land, the sender is told it failed and nothing is broadcast.
func (s *DispatchService) persist(ctx context.Context, message chat.Message) (chat.Message, error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	type result struct {
		message chat.Message
		err     error
	}
	done := make(chan result, 1)
	go func() {
		stored, err := s.messages.Append(writeCtx, message)
		done <- result{message: stored, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return chat.Message{}, fmt.Errorf("%w: append failed: %v", errors.ErrInternal, r.err)
		}
		return r.message, nil
	case <-writeCtx.Done():
		return chat.Message{}, fmt.Errorf("%w: append timed out after %s", errors.ErrInternal, s.storeTimeout)
	}
}

// ListMessages returns one newest-first page of an interest's log, authors joined at read time.
func (s *DispatchService) ListMessages(ctx context.Context, query chat.ListMessagesQuery) (MessagePage, error) {
	page, err := s.page(query.InterestID, query.Page, query.PageSize)
	if err != nil {
		return MessagePage{}, err
	}
	interest, err := s.authorizeRead(ctx, query.InterestID, query.UserID)
	if err != nil {
		return MessagePage{}, err
	}

	messages, total, err := s.messages.ListByInterest(ctx, interest.ID, page)
	if err != nil {
		return MessagePage{}, s.internal("list messages", err)
	}
	return MessagePage{
		Messages:   s.denormalize(ctx, interest, messages),
		Pagination: page.Paginate(total),
	}, nil
}

// SearchMessages queries the full text index and hydrates the hits from the message store.
func (s *DispatchService) SearchMessages(ctx context.Context, query chat.SearchMessagesQuery) (MessagePage, error) {
	if strings.TrimSpace(query.Terms) == "" {
		return MessagePage{}, errors.ErrMissingQuery
	}
	page, err := s.page(query.InterestID, query.Page, query.PageSize)
	if err != nil {
		return MessagePage{}, err
	}
	interest, err := s.authorizeRead(ctx, query.InterestID, query.UserID)
	if err != nil {
		return MessagePage{}, err
	}
	if s.index == nil {
		return MessagePage{}, s.internal("search messages", fmt.Errorf("no index configured"))
	}

	ids, total, err := s.index.Search(ctx, interest.ID, query.Terms, page)
	if err != nil {
		return MessagePage{}, s.internal("search messages", err)
	}
	messages := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		message, err := s.messages.FindByID(ctx, id)
		if errors.Is(err, errors.ErrNotFound) {
			s.log.Warn("Indexed message missing from store", "id", id)
			continue
		}
		if err != nil {
			return MessagePage{}, s.internal("hydrate search hit", err)
		}
		messages = append(messages, message)
	}
	return MessagePage{
		Messages:   s.denormalize(ctx, interest, messages),
		Pagination: page.Paginate(total),
	}, nil
}

// MemberCount needs an identity but no membership.
// Count and list come from the same interest read, so they always agree.
func (s *DispatchService) MemberCount(ctx context.Context, interestID chat.InterestID, callerID chat.UserID) (MemberCountView, error) {
	if err := interestID.Validate(); err != nil {
		return MemberCountView{}, err
	}
	if callerID == "" {
		return MemberCountView{}, errors.ErrUnauthenticated
	}
	interest, err := s.interests.FindInterest(ctx, interestID)
	if err != nil {
		return MemberCountView{}, err
	}
	users := make([]MemberView, 0, len(interest.Members))
	for _, memberID := range interest.Members {
		user, err := s.users.FindByID(ctx, memberID)
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return MemberCountView{}, s.internal("load member", err)
		}
		name := account.UnknownUserName
		if err == nil {
			name = user.DisplayName()
		}
		users = append(users, MemberView{ID: memberID, Name: name})
	}
	return MemberCountView{
		InterestID:   interest.ID,
		InterestName: interest.Name,
		UserCount:    len(users),
		Users:        users,
	}, nil
}

// AuthorizeRead applies the read policy to a live subscription request.
func (s *DispatchService) AuthorizeRead(ctx context.Context, interestID chat.InterestID, callerID chat.UserID) error {
	if err := interestID.Validate(); err != nil {
		return err
	}
	_, err := s.authorizeRead(ctx, interestID, callerID)
	return err
}

func (s *DispatchService) authorizeRead(ctx context.Context, interestID chat.InterestID, callerID chat.UserID) (chat.Interest, error) {
	if s.readPolicy == ReadPolicyMembers && callerID == "" {
		return chat.Interest{}, errors.ErrUnauthenticated
	}
	interest, err := s.interests.FindInterest(ctx, interestID)
	if err != nil {
		return chat.Interest{}, err
	}
	if s.readPolicy == ReadPolicyOpen {
		return interest, nil
	}
	member, err := s.members.IsMember(ctx, interestID, callerID)
	if err != nil {
		return chat.Interest{}, err
	}
	if !member {
		return chat.Interest{}, errors.ErrNotMember
	}
	return interest, nil
}

func (s *DispatchService) page(interestID chat.InterestID, number, size int) (chat.Page, error) {
	if err := interestID.Validate(); err != nil {
		return chat.Page{}, err
	}
	if number == 0 {
		number = 1
	}
	if size == 0 {
		size = chat.DefaultPageSize
	}
	page, err := chat.NewPage(number, size)
	if err != nil {
		return chat.Page{}, err
	}
	page.Size = min(page.Size, s.maxPageSize)
	return page, nil
}

// denormalize joins authors and category names, loading each of them once per page.
func (s *DispatchService) denormalize(ctx context.Context, interest chat.Interest, messages []chat.Message) []MessageView {
	authors := make(map[chat.UserID]*account.User)
	categories := make(map[string]string)

	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		author, ok := authors[m.AuthorID]
		if !ok {
			user, err := s.users.FindByID(ctx, m.AuthorID)
			if err == nil {
				author = &user
			} else if !errors.Is(err, errors.ErrNotFound) {
				s.log.Warn("Failed to load author", "user", m.AuthorID, "error", err)
			}
			authors[m.AuthorID] = author
		}

		categoryName := ""
		if m.SharedEntry != nil {
			categoryID := m.SharedEntry.Ref.CategoryID
			name, ok := categories[categoryID]
			if !ok {
				var err error
				name, err = s.content.CategoryName(ctx, categoryID)
				if err != nil && !errors.Is(err, errors.ErrNotFound) {
					s.log.Warn("Failed to load category", "category", categoryID, "error", err)
				}
				categories[categoryID] = name
			}
			categoryName = name
		}
		views = append(views, toMessageView(m, interest, author, categoryName))
	}
	return views
}

func (s *DispatchService) reject(err error) (MessageView, error) {
	observability.IncMessageRejected(errors.HTTPStatus(err))
	return MessageView{}, err
}

func (s *DispatchService) internal(operation string, err error) error {
	s.log.Error("Dispatch operation failed", "operation", operation, "error", err)
	return fmt.Errorf("%w: %s: %v", errors.ErrInternal, operation, err)
}

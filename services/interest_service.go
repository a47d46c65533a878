package services

import (
	"context"
	"interest-chat/contract"
	"interest-chat/domain/chat"
	"interest-chat/errors"
	"interest-chat/infrastructure/storage"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

type IInterestService interface {
	CreateInterest(ctx context.Context, name string) (InterestView, error)
	ListInterests(ctx context.Context) ([]InterestView, error)
	JoinInterests(ctx context.Context, userID chat.UserID, interestIDs []chat.InterestID) (UserView, error)
	Profile(ctx context.Context, userID chat.UserID) (UserView, error)
	DeactivateAccount(ctx context.Context, userID chat.UserID) error
}

type InterestService struct {
	interests contract.IInterestDirectory
	members   contract.IMembershipStore
	users     storage.IUserRepository
	log       *slog.Logger
	now       func() time.Time
}

func NewInterestService(interests contract.IInterestDirectory, members contract.IMembershipStore,
	users storage.IUserRepository, log *slog.Logger) *InterestService {
	return &InterestService{interests: interests, members: members, users: users, log: log, now: time.Now}
}

func (s *InterestService) CreateInterest(ctx context.Context, name string) (InterestView, error) {
	interest, err := s.interests.CreateInterest(ctx, name)
	if err != nil {
		return InterestView{}, err
	}
	return toInterestView(interest), nil
}

func (s *InterestService) ListInterests(ctx context.Context) ([]InterestView, error) {
	interests, err := s.interests.ListInterests(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(interests, func(i chat.Interest, _ int) InterestView { return toInterestView(i) }), nil
}

// JoinInterests subscribes the caller to every interest, then records them on the profile.
// Joining an interest twice changes nothing.
func (s *InterestService) JoinInterests(ctx context.Context, userID chat.UserID, interestIDs []chat.InterestID) (UserView, error) {
	if userID == "" {
		return UserView{}, errors.ErrUnauthenticated
	}
	if len(interestIDs) == 0 {
		return UserView{}, errors.ErrMissingInterests
	}
	for _, id := range interestIDs {
		if err := id.Validate(); err != nil {
			return UserView{}, err
		}
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	if !user.IsActive() {
		return UserView{}, errors.ErrUserNotFound
	}

	ids := lo.Uniq(interestIDs)
	for _, id := range ids {
		if err := s.members.AddMember(ctx, id, userID); err != nil {
			return UserView{}, err
		}
	}
	user.JoinInterests(ids...)
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return UserView{}, err
	}
	s.log.Debug("User joined interests", "user", userID, "count", len(ids))
	return toUserView(user), nil
}

func (s *InterestService) Profile(ctx context.Context, userID chat.UserID) (UserView, error) {
	if userID == "" {
		return UserView{}, errors.ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	if !user.IsActive() {
		return UserView{}, errors.ErrUserNotFound
	}
	return toUserView(user), nil
}

// DeactivateAccount removes the user from every interest it joined and marks the profile deactivated.
// Interests deleted in the meantime are skipped.
func (s *InterestService) DeactivateAccount(ctx context.Context, userID chat.UserID) error {
	if userID == "" {
		return errors.ErrUnauthenticated
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsActive() {
		return errors.ErrUserNotFound
	}

	for _, id := range user.Interests {
		err := s.members.RemoveMember(ctx, id, userID)
		if errors.Is(err, errors.ErrInterestNotFound) {
			continue
		}
		if err != nil {
			return err
		}
	}
	user.DeactivatedAt = lo.ToPtr(s.now().UTC())
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.log.Info("Account deactivated", "user", userID, "interests", len(user.Interests))
	return nil
}

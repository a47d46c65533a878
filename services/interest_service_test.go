package services

import (
	"context"
	"interest-chat/domain/account"
	"interest-chat/domain/chat"
	"interest-chat/errors"
	"interest-chat/mocks"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type interestFixture struct {
	interests *mocks.MockIInterestDirectory
	members   *mocks.MockIMembershipStore
	users     *mocks.MockIUserRepository
	service   *InterestService
}

func newInterestFixture(t *testing.T) interestFixture {
	ctrl := gomock.NewController(t)
	f := interestFixture{
		interests: mocks.NewMockIInterestDirectory(ctrl),
		members:   mocks.NewMockIMembershipStore(ctrl),
		users:     mocks.NewMockIUserRepository(ctrl),
	}
	f.service = NewInterestService(f.interests, f.members, f.users, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func TestInterestService_JoinInterests(t *testing.T) {
	req := require.New(t)
	f := newInterestFixture(t)
	hiking := chat.InterestID(uuid.NewString())
	user := account.User{ID: ada.ID, FirstName: "Ada", Interests: []chat.InterestID{cooking.ID}}

	// Given a user already in cooking
	f.users.EXPECT().FindByID(gomock.Any(), ada.ID).Return(user, nil)
	f.members.EXPECT().AddMember(gomock.Any(), cooking.ID, ada.ID).Return(nil)
	f.members.EXPECT().AddMember(gomock.Any(), hiking, ada.ID).Return(nil)
	f.users.EXPECT().UpdateUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u account.User) error {
			req.Equal([]chat.InterestID{cooking.ID, hiking}, u.Interests)
			return nil
		})

	// When joining cooking again and hiking, with a duplicate
	view, err := f.service.JoinInterests(context.Background(), ada.ID, []chat.InterestID{cooking.ID, hiking, hiking})

	// Then each membership is added once
	req.NoError(err)
	req.Equal([]chat.InterestID{cooking.ID, hiking}, view.Interests)
}

func TestInterestService_JoinInterests_Rejections(t *testing.T) {
	t.Run("Anonymous caller", func(t *testing.T) {
		req := require.New(t)
		f := newInterestFixture(t)

		_, err := f.service.JoinInterests(context.Background(), "", []chat.InterestID{cooking.ID})

		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("Empty list", func(t *testing.T) {
		req := require.New(t)
		f := newInterestFixture(t)

		_, err := f.service.JoinInterests(context.Background(), ada.ID, nil)

		req.ErrorIs(err, errors.ErrMissingInterests)
	})

	t.Run("Malformed interest ID", func(t *testing.T) {
		req := require.New(t)
		f := newInterestFixture(t)

		_, err := f.service.JoinInterests(context.Background(), ada.ID, []chat.InterestID{cooking.ID, "nope"})

		req.ErrorIs(err, errors.ErrInvalidInterestID)
	})

	t.Run("Unknown interest stops before the profile is saved", func(t *testing.T) {
		req := require.New(t)
		f := newInterestFixture(t)
		f.users.EXPECT().FindByID(gomock.Any(), ada.ID).Return(ada, nil)
		f.members.EXPECT().AddMember(gomock.Any(), cooking.ID, ada.ID).Return(errors.ErrInterestNotFound)

		_, err := f.service.JoinInterests(context.Background(), ada.ID, []chat.InterestID{cooking.ID})

		req.ErrorIs(err, errors.ErrInterestNotFound)
	})
}

func TestInterestService_DeactivateAccount(t *testing.T) {
	req := require.New(t)
	f := newInterestFixture(t)
	deleted := chat.InterestID(uuid.NewString())
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f.service.now = func() time.Time { return at }
	user := account.User{ID: ada.ID, Interests: []chat.InterestID{cooking.ID, deleted}}

	f.users.EXPECT().FindByID(gomock.Any(), ada.ID).Return(user, nil)
	f.members.EXPECT().RemoveMember(gomock.Any(), cooking.ID, ada.ID).Return(nil)
	// An interest deleted meanwhile is skipped
	f.members.EXPECT().RemoveMember(gomock.Any(), deleted, ada.ID).Return(errors.ErrInterestNotFound)
	f.users.EXPECT().UpdateUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u account.User) error {
			req.NotNil(u.DeactivatedAt)
			req.Equal(at, *u.DeactivatedAt)
			return nil
		})

	req.NoError(f.service.DeactivateAccount(context.Background(), ada.ID))
}

func TestInterestService_DeactivateAccount_Twice(t *testing.T) {
	req := require.New(t)
	f := newInterestFixture(t)
	gone := ada
	gone.DeactivatedAt = &time.Time{}
	f.users.EXPECT().FindByID(gomock.Any(), ada.ID).Return(gone, nil)

	err := f.service.DeactivateAccount(context.Background(), ada.ID)

	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestInterestService_Create_And_List(t *testing.T) {
	req := require.New(t)
	f := newInterestFixture(t)
	created := chat.Interest{ID: cooking.ID, Name: "Cooking", Members: []chat.UserID{ada.ID}}

	f.interests.EXPECT().CreateInterest(gomock.Any(), "Cooking").Return(chat.Interest{ID: cooking.ID, Name: "Cooking"}, nil)
	f.interests.EXPECT().ListInterests(gomock.Any()).Return([]chat.Interest{created}, nil)

	view, err := f.service.CreateInterest(context.Background(), "Cooking")
	req.NoError(err)
	req.Equal(0, view.UserCount)

	list, err := f.service.ListInterests(context.Background())
	req.NoError(err)
	req.Len(list, 1)
	req.Equal(1, list[0].UserCount)
}

func TestInterestService_Profile(t *testing.T) {
	req := require.New(t)
	f := newInterestFixture(t)
	f.users.EXPECT().FindByID(gomock.Any(), ada.ID).Return(ada, nil)

	view, err := f.service.Profile(context.Background(), ada.ID)

	req.NoError(err)
	req.Equal("Ada", view.FirstName)
	req.NotNil(view.Interests)

	_, err = f.service.Profile(context.Background(), "")
	req.ErrorIs(err, errors.ErrUnauthenticated)
}

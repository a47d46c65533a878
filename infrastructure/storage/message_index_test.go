package storage

import (
	"context"
	"interest-chat/domain/chat"
	"interest-chat/errors"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupIndex(t *testing.T) *MessageIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewMessageIndex(writer, slog.Default())
}

func TestMessageIndex_Search_Scoped_To_Interest(t *testing.T) {
	req := require.New(t)
	index := setupIndex(t)
	ctx := context.Background()
	interestID := chat.InterestID(uuid.NewString())
	otherID := chat.InterestID(uuid.NewString())
	now := time.Now().UTC()

	older := chat.Message{ID: uuid.New(), InterestID: interestID, Body: "Telescope mirrors are heavy", CreatedAt: now}
	newer := chat.Message{ID: uuid.New(), InterestID: interestID, Body: "My new telescope arrived", CreatedAt: now.Add(time.Minute)}
	unrelated := chat.Message{ID: uuid.New(), InterestID: interestID, Body: "Cooking tonight", CreatedAt: now}
	elsewhere := chat.Message{ID: uuid.New(), InterestID: otherID, Body: "telescope for sale", CreatedAt: now}
	for _, m := range []chat.Message{older, newer, unrelated, elsewhere} {
		req.NoError(index.Index(m))
	}

	ids, total, err := index.Search(ctx, interestID, "telescope", chat.Page{Number: 1, Size: 10})
	req.NoError(err)
	req.Equal(2, total)
	req.Equal([]uuid.UUID{newer.ID, older.ID}, ids)
}

func TestMessageIndex_Search_Shared_Entry_And_Pages(t *testing.T) {
	req := require.New(t)
	index := setupIndex(t)
	ctx := context.Background()
	interestID := chat.InterestID(uuid.NewString())
	now := time.Now().UTC()

	shared := chat.Message{
		ID:         uuid.New(),
		InterestID: interestID,
		Body:       "have a look",
		CreatedAt:  now,
		SharedEntry: &chat.SharedEntry{
			Ref:   chat.EntryRef{CategoryID: "c", SubCategoryID: "s", TopicID: "t", EntryID: "e"},
			Title: "Refraction",
			Body:  "Light bends in water",
		},
	}
	req.NoError(index.Index(shared))
	req.NoError(index.Index(chat.Message{ID: uuid.New(), InterestID: interestID, Body: "refraction is fun", CreatedAt: now.Add(time.Minute)}))

	// The entry snapshot is searchable
	ids, total, err := index.Search(ctx, interestID, "water", chat.Page{Number: 1, Size: 10})
	req.NoError(err)
	req.Equal(1, total)
	req.Equal([]uuid.UUID{shared.ID}, ids)

	// Paging keeps the total
	ids, total, err = index.Search(ctx, interestID, "refraction", chat.Page{Number: 2, Size: 1})
	req.NoError(err)
	req.Equal(2, total)
	req.Equal([]uuid.UUID{shared.ID}, ids)
}

func TestMessageIndex_Blank_Query(t *testing.T) {
	req := require.New(t)
	index := setupIndex(t)

	_, _, err := index.Search(context.Background(), chat.InterestID(uuid.NewString()), "  ", chat.Page{Number: 1, Size: 10})
	req.ErrorIs(err, errors.ErrMissingQuery)
}

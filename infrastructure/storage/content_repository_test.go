package storage

import (
	"context"
	"interest-chat/domain/chat"
	"interest-chat/errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestContentRepository_Build_And_Resolve(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repo := NewContentRepository(db, slog.Default())

	// Given a category with one entry
	category, err := repo.CreateCategory(ctx, "Physics")
	req.NoError(err)
	sub, err := repo.AddSubCategory(ctx, category.ID, "Optics")
	req.NoError(err)
	topic, err := repo.AddTopic(ctx, category.ID, sub.ID, "Waves")
	req.NoError(err)
	entry, err := repo.AddEntry(ctx, category.ID, sub.ID, topic.ID, "Refraction", "Light bends")
	req.NoError(err)

	ref := chat.EntryRef{CategoryID: category.ID, SubCategoryID: sub.ID, TopicID: topic.ID, EntryID: entry.ID}

	// Then the reference resolves to the entry
	resolved, err := repo.ResolveEntry(ctx, ref)
	req.NoError(err)
	req.Equal("Refraction", resolved.Title)
	req.Equal("Light bends", resolved.Body)

	name, err := repo.CategoryName(ctx, category.ID)
	req.NoError(err)
	req.Equal("Physics", name)

	categories, err := repo.ListCategories(ctx)
	req.NoError(err)
	req.Len(categories, 1)
	req.Len(categories[0].SubCategories[0].Topics[0].Entries, 1)
}

func TestContentRepository_Resolve_Reports_Failing_Level(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repo := NewContentRepository(db, slog.Default())

	category, err := repo.CreateCategory(ctx, "Physics")
	req.NoError(err)
	sub, err := repo.AddSubCategory(ctx, category.ID, "Optics")
	req.NoError(err)
	topic, err := repo.AddTopic(ctx, category.ID, sub.ID, "Waves")
	req.NoError(err)
	entry, err := repo.AddEntry(ctx, category.ID, sub.ID, topic.ID, "Refraction", "Light bends")
	req.NoError(err)
	missing := uuid.NewString()

	_, err = repo.ResolveEntry(ctx, chat.EntryRef{CategoryID: missing, SubCategoryID: sub.ID, TopicID: topic.ID, EntryID: entry.ID})
	req.ErrorIs(err, errors.ErrCategoryNotFound)

	_, err = repo.ResolveEntry(ctx, chat.EntryRef{CategoryID: category.ID, SubCategoryID: missing, TopicID: topic.ID, EntryID: entry.ID})
	req.ErrorIs(err, errors.ErrSubCategoryNotFound)

	_, err = repo.ResolveEntry(ctx, chat.EntryRef{CategoryID: category.ID, SubCategoryID: sub.ID, TopicID: missing, EntryID: entry.ID})
	req.ErrorIs(err, errors.ErrTopicNotFound)

	_, err = repo.ResolveEntry(ctx, chat.EntryRef{CategoryID: category.ID, SubCategoryID: sub.ID, TopicID: topic.ID, EntryID: missing})
	req.ErrorIs(err, errors.ErrEntryNotFound)

	_, err = repo.CategoryName(ctx, missing)
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestContentRepository_Deleted_Entry_Is_Hidden(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repo := NewContentRepository(db, slog.Default())

	category, err := repo.CreateCategory(ctx, "Physics")
	req.NoError(err)
	sub, err := repo.AddSubCategory(ctx, category.ID, "Optics")
	req.NoError(err)
	topic, err := repo.AddTopic(ctx, category.ID, sub.ID, "Waves")
	req.NoError(err)
	entry, err := repo.AddEntry(ctx, category.ID, sub.ID, topic.ID, "Refraction", "Light bends")
	req.NoError(err)
	ref := chat.EntryRef{CategoryID: category.ID, SubCategoryID: sub.ID, TopicID: topic.ID, EntryID: entry.ID}

	// When the entry is soft deleted
	req.NoError(repo.DeleteEntry(ctx, ref))

	// Then it no longer resolves nor lists
	_, err = repo.ResolveEntry(ctx, ref)
	req.ErrorIs(err, errors.ErrEntryNotFound)

	categories, err := repo.ListCategories(ctx)
	req.NoError(err)
	req.Len(categories, 1)
	req.Empty(categories[0].SubCategories[0].Topics[0].Entries)

	// And deleting it twice is a not found
	req.ErrorIs(repo.DeleteEntry(ctx, ref), errors.ErrEntryNotFound)
}

func TestContentRepository_Blank_Names_Rejected(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	repo := NewContentRepository(db, slog.Default())

	_, err := repo.CreateCategory(ctx, "  ")
	req.ErrorIs(err, errors.ErrBadRequest)

	_, err = repo.AddSubCategory(ctx, uuid.NewString(), "Optics")
	req.ErrorIs(err, errors.ErrCategoryNotFound)
}

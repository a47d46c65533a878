package learn

import (
	"interest-chat/domain/chat"
	"interest-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func givenCategory() Category {
	return Category{
		ID:   "cat",
		Name: "Science",
		SubCategories: []SubCategory{{
			ID:   "sub",
			Name: "Physics",
			Topics: []Topic{{
				ID:   "topic",
				Name: "Optics",
				Entries: []Entry{
					{ID: "entry", Title: "Refraction", Body: "Light bends"},
					{ID: "other", Title: "Diffraction", Body: "Light spreads"},
				},
			}},
		}},
	}
}

func TestCategory_Resolve(t *testing.T) {
	req := require.New(t)
	category := givenCategory()
	ref := chat.EntryRef{CategoryID: "cat", SubCategoryID: "sub", TopicID: "topic", EntryID: "entry"}

	entry, err := category.Resolve(ref)
	req.NoError(err)
	req.Equal("Refraction", entry.Title)
	req.Equal("Light bends", entry.Body)

	tests := []struct {
		name     string
		ref      chat.EntryRef
		expected error
	}{
		{"Unknown category", chat.EntryRef{CategoryID: "x", SubCategoryID: "sub", TopicID: "topic", EntryID: "entry"}, errors.ErrCategoryNotFound},
		{"Unknown sub category", chat.EntryRef{CategoryID: "cat", SubCategoryID: "x", TopicID: "topic", EntryID: "entry"}, errors.ErrSubCategoryNotFound},
		{"Unknown topic", chat.EntryRef{CategoryID: "cat", SubCategoryID: "sub", TopicID: "x", EntryID: "entry"}, errors.ErrTopicNotFound},
		{"Unknown entry", chat.EntryRef{CategoryID: "cat", SubCategoryID: "sub", TopicID: "topic", EntryID: "x"}, errors.ErrEntryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := category.Resolve(tt.ref)
			require.ErrorIs(t, err, tt.expected)
			require.ErrorIs(t, err, errors.ErrNotFound)
		})
	}
}

func TestCategory_Resolve_Filters_Soft_Deleted_Levels(t *testing.T) {
	req := require.New(t)
	ref := chat.EntryRef{CategoryID: "cat", SubCategoryID: "sub", TopicID: "topic", EntryID: "entry"}
	now := time.Now().UTC()

	// Given a deleted entry
	category := givenCategory()
	req.NoError(category.DeleteEntry(ref, now))
	_, err := category.Resolve(ref)
	req.ErrorIs(err, errors.ErrEntryNotFound)

	// Given a deleted topic
	category = givenCategory()
	category.SubCategories[0].Topics[0].DeletedAt = &now
	_, err = category.Resolve(ref)
	req.ErrorIs(err, errors.ErrTopicNotFound)

	// Given a deleted sub category
	category = givenCategory()
	category.SubCategories[0].DeletedAt = &now
	_, err = category.Resolve(ref)
	req.ErrorIs(err, errors.ErrSubCategoryNotFound)

	// Given a deleted category
	category = givenCategory()
	category.DeletedAt = &now
	_, err = category.Resolve(ref)
	req.ErrorIs(err, errors.ErrCategoryNotFound)
}

func TestCategory_Live_Prunes_Deleted_Nodes(t *testing.T) {
	req := require.New(t)
	category := givenCategory()
	ref := chat.EntryRef{CategoryID: "cat", SubCategoryID: "sub", TopicID: "topic", EntryID: "entry"}
	req.NoError(category.DeleteEntry(ref, time.Now().UTC()))

	live := category.Live()

	req.Len(live.SubCategories[0].Topics[0].Entries, 1)
	req.Equal("other", live.SubCategories[0].Topics[0].Entries[0].ID)
	// The original keeps its history
	req.Len(category.SubCategories[0].Topics[0].Entries, 2)
}

func TestCategory_Add_Under_Deleted_Parent_Fails(t *testing.T) {
	req := require.New(t)
	category := givenCategory()
	now := time.Now().UTC()
	category.SubCategories[0].DeletedAt = &now

	err := category.AddTopic("sub", Topic{ID: "t2"})
	req.ErrorIs(err, errors.ErrSubCategoryNotFound)

	err = category.AddEntry("sub", "topic", Entry{ID: "e2"})
	req.ErrorIs(err, errors.ErrSubCategoryNotFound)
}

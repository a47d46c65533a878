package storage

import (
	"context"
	"fmt"
	"interest-chat/domain/chat"
	"interest-chat/domain/learn"
	"interest-chat/errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const categoryPrefix = "category:"

// ContentRepository stores one document per category holding its whole subtree.
// Reads apply the soft delete filter at every level.
type ContentRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewContentRepository(db *badger.DB, log *slog.Logger) *ContentRepository {
	return &ContentRepository{db: db, log: log}
}

type categoryRecord struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	SubCategories []subCategoryRecord `json:"subCategories"`
	CreatedAt     time.Time           `json:"createdAt"`
	DeletedAt     *time.Time          `json:"deletedAt,omitempty"`
}

type subCategoryRecord struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Topics    []topicRecord `json:"topics"`
	DeletedAt *time.Time    `json:"deletedAt,omitempty"`
}

type topicRecord struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Entries   []entryRecord `json:"entries"`
	DeletedAt *time.Time    `json:"deletedAt,omitempty"`
}

type entryRecord struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"createdAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func categoryKey(id string) []byte {
	return []byte(categoryPrefix + id)
}

func (c *ContentRepository) CreateCategory(ctx context.Context, name string) (learn.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return learn.Category{}, errors.ErrMissingName
	}
	category := learn.Category{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	err := update(ctx, c.db, func(txn *badger.Txn) error {
		return setJSON(txn, categoryKey(category.ID), fromCategory(category))
	})
	if err != nil {
		return learn.Category{}, err
	}
	return category, nil
}

func (c *ContentRepository) AddSubCategory(ctx context.Context, categoryID, name string) (learn.SubCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return learn.SubCategory{}, errors.ErrMissingName
	}
	sub := learn.SubCategory{ID: uuid.NewString(), Name: name}
	err := c.mutate(ctx, categoryID, func(category *learn.Category) error {
		category.AddSubCategory(sub)
		return nil
	})
	return sub, err
}

func (c *ContentRepository) AddTopic(ctx context.Context, categoryID, subCategoryID, name string) (learn.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return learn.Topic{}, errors.ErrMissingName
	}
	topic := learn.Topic{ID: uuid.NewString(), Name: name}
	err := c.mutate(ctx, categoryID, func(category *learn.Category) error {
		return category.AddTopic(subCategoryID, topic)
	})
	return topic, err
}

func (c *ContentRepository) AddEntry(ctx context.Context, categoryID, subCategoryID, topicID, title, body string) (learn.Entry, error) {
	if strings.TrimSpace(title) == "" {
		return learn.Entry{}, errors.ErrMissingName
	}
	entry := learn.Entry{ID: uuid.NewString(), Title: title, Body: body, CreatedAt: time.Now().UTC()}
	err := c.mutate(ctx, categoryID, func(category *learn.Category) error {
		return category.AddEntry(subCategoryID, topicID, entry)
	})
	return entry, err
}

// DeleteEntry soft deletes an entry. Messages that already shared it keep their snapshot.
func (c *ContentRepository) DeleteEntry(ctx context.Context, ref chat.EntryRef) error {
	return c.mutate(ctx, ref.CategoryID, func(category *learn.Category) error {
		return category.DeleteEntry(ref, time.Now().UTC())
	})
}

// ListCategories returns the live tree sorted by category name.
func (c *ContentRepository) ListCategories(ctx context.Context) ([]learn.Category, error) {
	var categories []learn.Category
	err := view(ctx, c.db, func(txn *badger.Txn) error {
		prefix := []byte(categoryPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record categoryRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return fmt.Errorf("failed to decode category %s: %w", it.Item().Key(), err)
			}
			if record.DeletedAt == nil {
				categories = append(categories, toCategory(record).Live())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (c *ContentRepository) ResolveEntry(ctx context.Context, ref chat.EntryRef) (learn.Entry, error) {
	category, err := c.find(ctx, ref.CategoryID)
	if err != nil {
		return learn.Entry{}, err
	}
	return category.Resolve(ref)
}

// CategoryName fails with errors.ErrCategoryNotFound for a missing or deleted category.
func (c *ContentRepository) CategoryName(ctx context.Context, categoryID string) (string, error) {
	category, err := c.find(ctx, categoryID)
	if err != nil {
		return "", err
	}
	if category.IsDeleted() {
		return "", errors.ErrCategoryNotFound
	}
	return category.Name, nil
}

func (c *ContentRepository) find(ctx context.Context, categoryID string) (learn.Category, error) {
	var record categoryRecord
	err := view(ctx, c.db, func(txn *badger.Txn) error {
		return getJSON(txn, categoryKey(categoryID), &record, errors.ErrCategoryNotFound)
	})
	if err != nil {
		return learn.Category{}, err
	}
	return toCategory(record), nil
}

func (c *ContentRepository) mutate(ctx context.Context, categoryID string, change func(*learn.Category) error) error {
	return update(ctx, c.db, func(txn *badger.Txn) error {
		var record categoryRecord
		if err := getJSON(txn, categoryKey(categoryID), &record, errors.ErrCategoryNotFound); err != nil {
			return err
		}
		category := toCategory(record)
		if category.IsDeleted() {
			return errors.ErrCategoryNotFound
		}
		if err := change(&category); err != nil {
			return err
		}
		return setJSON(txn, categoryKey(categoryID), fromCategory(category))
	})
}

func fromCategory(category learn.Category) categoryRecord {
	return categoryRecord{
		ID:        category.ID,
		Name:      category.Name,
		CreatedAt: category.CreatedAt,
		DeletedAt: category.DeletedAt,
		SubCategories: lo.Map(category.SubCategories, func(s learn.SubCategory, _ int) subCategoryRecord {
			return subCategoryRecord{
				ID:        s.ID,
				Name:      s.Name,
				DeletedAt: s.DeletedAt,
				Topics: lo.Map(s.Topics, func(t learn.Topic, _ int) topicRecord {
					return topicRecord{
						ID:        t.ID,
						Name:      t.Name,
						DeletedAt: t.DeletedAt,
						Entries: lo.Map(t.Entries, func(e learn.Entry, _ int) entryRecord {
							return entryRecord(e)
						}),
					}
				}),
			}
		}),
	}
}

func toCategory(record categoryRecord) learn.Category {
	return learn.Category{
		ID:        record.ID,
		Name:      record.Name,
		CreatedAt: record.CreatedAt,
		DeletedAt: record.DeletedAt,
		SubCategories: lo.Map(record.SubCategories, func(s subCategoryRecord, _ int) learn.SubCategory {
			return learn.SubCategory{
				ID:        s.ID,
				Name:      s.Name,
				DeletedAt: s.DeletedAt,
				Topics: lo.Map(s.Topics, func(t topicRecord, _ int) learn.Topic {
					return learn.Topic{
						ID:        t.ID,
						Name:      t.Name,
						DeletedAt: t.DeletedAt,
						Entries: lo.Map(t.Entries, func(e entryRecord, _ int) learn.Entry {
							return learn.Entry(e)
						}),
					}
				}),
			}
		}),
	}
}

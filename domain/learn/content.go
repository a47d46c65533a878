package learn

import (
	"interest-chat/domain/chat"
	"interest-chat/errors"
	"time"

	"github.com/samber/lo"
)

// Every level of the tree can be soft deleted. A deleted node hides everything below it.

type Entry struct {
	ID        string
	Title     string
	Body      string
	CreatedAt time.Time
	DeletedAt *time.Time
}

type Topic struct {
	ID        string
	Name      string
	Entries   []Entry
	DeletedAt *time.Time
}

type SubCategory struct {
	ID        string
	Name      string
	Topics    []Topic
	DeletedAt *time.Time
}

type Category struct {
	ID            string
	Name          string
	SubCategories []SubCategory
	CreatedAt     time.Time
	DeletedAt     *time.Time
}

func (c Category) IsDeleted() bool { return c.DeletedAt != nil }

// Resolve walks the reference chain and returns the live entry it designates.
func (c Category) Resolve(ref chat.EntryRef) (Entry, error) {
	if c.IsDeleted() || c.ID != ref.CategoryID {
		return Entry{}, errors.ErrCategoryNotFound
	}
	sub, ok := lo.Find(c.SubCategories, func(s SubCategory) bool {
		return s.ID == ref.SubCategoryID && s.DeletedAt == nil
	})
	if !ok {
		return Entry{}, errors.ErrSubCategoryNotFound
	}
	topic, ok := lo.Find(sub.Topics, func(t Topic) bool {
		return t.ID == ref.TopicID && t.DeletedAt == nil
	})
	if !ok {
		return Entry{}, errors.ErrTopicNotFound
	}
	entry, ok := lo.Find(topic.Entries, func(e Entry) bool {
		return e.ID == ref.EntryID && e.DeletedAt == nil
	})
	if !ok {
		return Entry{}, errors.ErrEntryNotFound
	}
	return entry, nil
}

// Live returns a copy of the category without its soft deleted descendants.
func (c Category) Live() Category {
	live := c
	live.SubCategories = lo.FilterMap(c.SubCategories, func(s SubCategory, _ int) (SubCategory, bool) {
		if s.DeletedAt != nil {
			return SubCategory{}, false
		}
		s.Topics = lo.FilterMap(s.Topics, func(t Topic, _ int) (Topic, bool) {
			if t.DeletedAt != nil {
				return Topic{}, false
			}
			t.Entries = lo.Filter(t.Entries, func(e Entry, _ int) bool { return e.DeletedAt == nil })
			return t, true
		})
		return s, true
	})
	return live
}

func (c *Category) subCategory(id string) (*SubCategory, error) {
	for i := range c.SubCategories {
		if c.SubCategories[i].ID == id && c.SubCategories[i].DeletedAt == nil {
			return &c.SubCategories[i], nil
		}
	}
	return nil, errors.ErrSubCategoryNotFound
}

func (c *Category) topic(subCategoryID, topicID string) (*Topic, error) {
	sub, err := c.subCategory(subCategoryID)
	if err != nil {
		return nil, err
	}
	for i := range sub.Topics {
		if sub.Topics[i].ID == topicID && sub.Topics[i].DeletedAt == nil {
			return &sub.Topics[i], nil
		}
	}
	return nil, errors.ErrTopicNotFound
}

func (c *Category) AddSubCategory(sub SubCategory) {
	c.SubCategories = append(c.SubCategories, sub)
}

func (c *Category) AddTopic(subCategoryID string, topic Topic) error {
	sub, err := c.subCategory(subCategoryID)
	if err != nil {
		return err
	}
	sub.Topics = append(sub.Topics, topic)
	return nil
}

func (c *Category) AddEntry(subCategoryID, topicID string, entry Entry) error {
	topic, err := c.topic(subCategoryID, topicID)
	if err != nil {
		return err
	}
	topic.Entries = append(topic.Entries, entry)
	return nil
}

// DeleteEntry marks a live entry as deleted at the given instant.
func (c *Category) DeleteEntry(ref chat.EntryRef, at time.Time) error {
	if c.IsDeleted() || c.ID != ref.CategoryID {
		return errors.ErrCategoryNotFound
	}
	topic, err := c.topic(ref.SubCategoryID, ref.TopicID)
	if err != nil {
		return err
	}
	for i := range topic.Entries {
		if topic.Entries[i].ID == ref.EntryID && topic.Entries[i].DeletedAt == nil {
			topic.Entries[i].DeletedAt = &at
			return nil
		}
	}
	return errors.ErrEntryNotFound
}

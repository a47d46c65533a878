package storage

import (
	"context"
	"fmt"
	"interest-chat/domain/chat"
	"interest-chat/errors"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const (
	fieldInterestID = "interest_id"
	fieldMessage    = "message"
	fieldEntry      = "entry"
	fieldCreatedAt  = "created_at"
)

// MessageIndex keeps a full text copy of the message logs.
// It only returns identities, the message store stays the source of truth.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

func (m *MessageIndex) Index(message chat.Message) error {
	doc := bluge.NewDocument(message.ID.String())
	doc.AddField(bluge.NewKeywordField(fieldInterestID, message.InterestID.String()))
	doc.AddField(bluge.NewTextField(fieldMessage, message.Body))
	if message.SharedEntry != nil {
		doc.AddField(bluge.NewTextField(fieldEntry, message.SharedEntry.Title+" "+message.SharedEntry.Body))
	}
	doc.AddField(bluge.NewDateTimeField(fieldCreatedAt, message.CreatedAt).Sortable())

	if err := m.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("failed to index message %s: %w", message.ID, err)
	}
	return nil
}

// Search matches terms against bodies and shared entries of one interest, newest first.
// It returns the page of identities and the total number of hits.
func (m *MessageIndex) Search(ctx context.Context, interestID chat.InterestID, terms string, page chat.Page) ([]uuid.UUID, int, error) {
	terms = strings.TrimSpace(terms)
	if terms == "" {
		return nil, 0, errors.ErrMissingQuery
	}

	text := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(terms).SetField(fieldMessage)).
		AddShould(bluge.NewMatchQuery(terms).SetField(fieldEntry)).
		SetMinShould(1)
	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(interestID.String()).SetField(fieldInterestID)).
		AddMust(text)

	request := bluge.NewTopNSearch(page.Size, query).
		SetFrom(page.Offset()).
		SortBy([]string{"-" + fieldCreatedAt}).
		WithStandardAggregations()

	reader, err := m.writer.Reader()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open index reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			m.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	dmi, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search messages: %w", err)
	}

	var ids []uuid.UUID
	match, err := dmi.Next()
	for err == nil && match != nil {
		var visitErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field != "_id" {
				return true
			}
			id, parseErr := uuid.ParseBytes(value)
			if parseErr != nil {
				visitErr = parseErr
				return false
			}
			ids = append(ids, id)
			return false
		})
		if err == nil && visitErr != nil {
			m.log.Warn("Skipping malformed index document", "error", visitErr)
		}
		if err != nil {
			break
		}
		match, err = dmi.Next()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read search results: %w", err)
	}
	return ids, int(dmi.Aggregations().Count()), nil
}

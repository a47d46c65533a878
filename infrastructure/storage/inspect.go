package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/mama165/sdk-go/database"
)

const detailWidth = 60

// InspectMapper turns a raw badger pair into a readable row for the debug inspector and cmd/inspect.
func InspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "idx:"):
		row.Type = "INDEX"
		row.Detail = truncate(string(val))
	case strings.HasPrefix(key, messagePrefix):
		var r messageRecord
		if err := json.Unmarshal(val, &r); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "MESSAGE"
		if r.Important {
			row.Type = "IMPORTANT"
		}
		if r.SharedEntry != nil {
			row.Type = "SHARED_ENTRY"
		}
		row.Timestamp = time.Unix(0, r.CreatedAt).UTC().Format(time.DateTime)
		row.EntityID = r.AuthorID
		row.Namespace = r.InterestID
		row.Detail = truncate(r.Body)
	case strings.HasPrefix(key, interestPrefix):
		var r interestRecord
		if err := json.Unmarshal(val, &r); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "INTEREST"
		row.Timestamp = r.CreatedAt.UTC().Format(time.DateTime)
		row.EntityID = r.ID
		row.Detail = fmt.Sprintf("%s (%d members)%s", r.Name, len(r.Members), deleted(r.DeletedAt))
	case strings.HasPrefix(key, userPrefix):
		var r userRecord
		if err := json.Unmarshal(val, &r); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "USER"
		row.Timestamp = r.CreatedAt.UTC().Format(time.DateTime)
		row.EntityID = r.ID
		row.Detail = fmt.Sprintf("%s %s <%s>%s", r.FirstName, r.LastName, r.Email, deleted(r.DeactivatedAt))
	case strings.HasPrefix(key, categoryPrefix):
		var r categoryRecord
		if err := json.Unmarshal(val, &r); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "CATEGORY"
		row.Timestamp = r.CreatedAt.UTC().Format(time.DateTime)
		row.EntityID = r.ID
		row.Detail = fmt.Sprintf("%s (%d sub categories)%s", r.Name, len(r.SubCategories), deleted(r.DeletedAt))
	}
	return row
}

// Scan visits every pair under prefix in key order.
func Scan(ctx context.Context, db *badger.DB, prefix string, visit func(database.InspectRow)) error {
	return view(ctx, db, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			visit(InspectMapper(string(item.Key()), val))
		}
		return nil
	})
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > detailWidth {
		return string(r[:detailWidth-1]) + "…"
	}
	return s
}

func deleted(at *time.Time) string {
	if at == nil {
		return ""
	}
	return " [deleted]"
}

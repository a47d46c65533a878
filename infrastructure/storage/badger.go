package storage

import (
	"context"
	"interest-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const maxConflictRetries = 5

// update runs fn in a read-write transaction, retrying when a concurrent
// transaction touched the same keys.
func update(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func view(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.View(fn)
}

// getJSON decodes the value stored at key into out.
// A missing key is reported as notFound.
func getJSON(txn *badger.Txn, key []byte, out any, notFound error) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

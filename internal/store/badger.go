package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/swgestor/backend/internal/chat"
)

// maxTimestamp is the lexicographically largest key component a padded
// nanosecond timestamp can take; seeking to it positions a reverse iterator
// at the newest entry of a room.
const maxTimestamp = "9999999999999999999"

// Badger is the message log backed by BadgerDB.
//
// Keys are "msg:<room>:<timestamp>:<uuid>". The 19-digit zero-padded
// nanosecond timestamp makes lexicographic order chronological, and the UUID
// suffix disambiguates two messages landing on the same nanosecond. A reverse
// prefix scan therefore yields a room's messages newest first, which matches
// the query shape history needs.
type Badger struct {
	db  *badger.DB
	log zerolog.Logger
}

// OpenBadger opens (or creates) the message log at path.
func OpenBadger(path string, log zerolog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open message log: %w", err)
	}
	return &Badger{db: db, log: log}, nil
}

// NewBadgerInMemory opens an ephemeral log, used by tests and by deployments
// that do not care about history surviving a restart.
func NewBadgerInMemory(log zerolog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory message log: %w", err)
	}
	return &Badger{db: db, log: log}, nil
}

func messageKey(room string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", room, at.UnixNano(), id))
}

func roomPrefix(room string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", room))
}

// Append validates and persists one message.
func (b *Badger) Append(_ context.Context, req chat.SendRequest) (chat.Message, error) {
	if err := chat.ValidateSend(req); err != nil {
		return chat.Message{}, err
	}

	msg := chat.Message{
		ID:        uuid.NewString(),
		Room:      req.Room,
		User:      req.User,
		Message:   req.Message,
		CreatedAt: time.Now().UTC(),
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return chat.Message{}, fmt.Errorf("encode message: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg.Room, msg.CreatedAt, msg.ID), value)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("persist message: %w", err)
	}

	b.log.Debug().Str("room", msg.Room).Str("id", msg.ID).Msg("message appended")
	return msg, nil
}

// History reads the room's most recent messages and returns them oldest
// first. The scan walks the room prefix in reverse from the max-timestamp
// sentinel and stops once the clamped limit is reached. Room names may
// themselves contain colons, so a room can be a key-prefix of another
// ("project:1" of "project:1:2"); entries are matched on the decoded room,
// not the prefix alone.
func (b *Badger) History(_ context.Context, room string, limit int) ([]chat.Message, error) {
	limit = ClampLimit(limit)
	prefix := roomPrefix(room)
	seekKey := append(append([]byte{}, prefix...), maxTimestamp...)

	var messages []chat.Message
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var msg chat.Message
				if err := json.Unmarshal(value, &msg); err != nil {
					return fmt.Errorf("decode message %s: %w", it.Item().Key(), err)
				}
				if msg.Room != room {
					// A sibling room sharing this key prefix.
					return nil
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	return lo.Reverse(messages), nil
}

// Close flushes and closes the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"warframe_bot/internal/model"
)

var (
	bucketUsers    = []byte("users")
	bucketNotified = []byte("notified_fissures")
)

// Bolt implements Storage on a single bbolt file. Each user is one JSON
// encoded row keyed by chat ID.
type Bolt struct {
	db  *bolt.DB
	log *slog.Logger
}

var _ Storage = (*Bolt)(nil)

// NewBolt opens or creates the bolt file at path.
func NewBolt(path string, log *slog.Logger) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketNotified} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bolt{db: db, log: log}, nil
}

// Close closes the bolt file.
func (s *Bolt) Close() error {
	return s.db.Close()
}

// GetSubscriber returns the preferences of one chat.
func (s *Bolt) GetSubscriber(_ context.Context, chatID int64) (*model.Subscriber, error) {
	var sub *model.Subscriber
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUsers).Get(userKey(chatID))
		if v == nil {
			return ErrNotFound
		}
		r, err := decodeBoltRow(v)
		if err != nil {
			return err
		}
		got := fromRow(r, s.log)
		sub = &got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// PutSubscriber inserts or fully replaces a record.
func (s *Bolt) PutSubscriber(_ context.Context, sub *model.Subscriber) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putBoltRow(tx, sub)
	})
}

// UpdateSubscriber runs fn inside a write transaction.
func (s *Bolt) UpdateSubscriber(_ context.Context, chatID int64, fn func(*model.Subscriber) error) (*model.Subscriber, error) {
	var sub *model.Subscriber
	err := s.db.Update(func(tx *bolt.Tx) error {
		sub = model.NewSubscriber(chatID)
		if v := tx.Bucket(bucketUsers).Get(userKey(chatID)); v != nil {
			r, err := decodeBoltRow(v)
			if err != nil {
				return err
			}
			got := fromRow(r, s.log)
			sub = &got
		}
		if err := fn(sub); err != nil {
			return err
		}
		sub.ChatID = chatID
		return putBoltRow(tx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ListSubscribers returns every stored record ordered by chat ID. Rows that
// cannot be decoded at all are logged and skipped.
func (s *Bolt) ListSubscribers(_ context.Context) ([]model.Subscriber, error) {
	var subs []model.Subscriber
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
			r, err := decodeBoltRow(v)
			if err != nil {
				s.log.Warn("skip unreadable user row", "key", string(k), "error", err)
				return nil
			}
			subs = append(subs, fromRow(r, s.log))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	slices.SortFunc(subs, func(a, b model.Subscriber) int {
		switch {
		case a.ChatID < b.ChatID:
			return -1
		case a.ChatID > b.ChatID:
			return 1
		}
		return 0
	})
	return subs, nil
}

// MarkNotified records that a fissure was delivered to a chat.
func (s *Bolt) MarkNotified(_ context.Context, chatID int64, key string, expiresAt time.Time) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNotified)
		k := notifiedKey(chatID, key)
		if b.Get(k) != nil {
			return nil
		}
		return b.Put(k, []byte(expiresAt.UTC().Format(timeLayout)))
	})
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// IsNotified checks whether a fissure was already delivered to a chat.
func (s *Bolt) IsNotified(_ context.Context, chatID int64, key string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketNotified).Get(notifiedKey(chatID, key)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("check notified: %w", err)
	}
	return found, nil
}

// PruneNotified removes ledger entries that expired before now.
func (s *Bolt) PruneNotified(_ context.Context, now time.Time) (int64, error) {
	cutoff := now.UTC().Format(timeLayout)
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNotified)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if string(v) < cutoff {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune notified: %w", err)
	}
	return n, nil
}

func userKey(chatID int64) []byte {
	return []byte(strconv.FormatInt(chatID, 10))
}

func notifiedKey(chatID int64, key string) []byte {
	return []byte(strings.Join([]string{strconv.FormatInt(chatID, 10), key}, "|"))
}

func decodeBoltRow(v []byte) (row, error) {
	var r row
	if err := json.Unmarshal(v, &r); err != nil {
		return r, fmt.Errorf("decode user row: %w", err)
	}
	return r, nil
}

func putBoltRow(tx *bolt.Tx, sub *model.Subscriber) error {
	r, err := toRow(sub)
	if err != nil {
		return err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode user row: %w", err)
	}
	return tx.Bucket(bucketUsers).Put(userKey(sub.ChatID), b)
}

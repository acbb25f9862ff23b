package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	bolt "go.etcd.io/bbolt"

	"warframe_bot/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:", testLogger())
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestBolt(t *testing.T) *Bolt {
	t.Helper()
	s, err := NewBolt(filepath.Join(t.TempDir(), "bot.db"), testLogger())
	if err != nil {
		t.Fatalf("new bolt: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// backend pairs a store with a way to write a raw, possibly corrupt, filter
// column behind its back.
type backend struct {
	name          string
	open          func(t *testing.T) Storage
	corruptFilter func(t *testing.T, s Storage, chatID int64, raw string)
}

func backends() []backend {
	return []backend{
		{
			name: "sqlite",
			open: func(t *testing.T) Storage { return newTestDB(t) },
			corruptFilter: func(t *testing.T, s Storage, chatID int64, raw string) {
				t.Helper()
				_, err := s.(*SQLite).db.Exec(
					`INSERT INTO users (chat_id, timezone, subscriptions, fissure_filters) VALUES (?, 'UTC', 'fissures', ?)`,
					chatID, raw,
				)
				if err != nil {
					t.Fatalf("insert raw row: %v", err)
				}
			},
		},
		{
			name: "bolt",
			open: func(t *testing.T) Storage { return newTestBolt(t) },
			corruptFilter: func(t *testing.T, s Storage, chatID int64, raw string) {
				t.Helper()
				err := s.(*Bolt).db.Update(func(tx *bolt.Tx) error {
					v := `{"chat_id":` + string(userKey(chatID)) + `,"timezone":"UTC","subscriptions":"fissures","fissure_filters":` + quote(raw) + `}`
					return tx.Bucket(bucketUsers).Put(userKey(chatID), []byte(v))
				})
				if err != nil {
					t.Fatalf("put raw row: %v", err)
				}
			},
		},
	}
}

func quote(s string) string {
	out := []byte{'"'}
	for _, c := range []byte(s) {
		if c == '"' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(append(out, '"'))
}

func TestGetSubscriberNotFound(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			_, err := s.GetSubscriber(context.Background(), 42)
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestPutGetSubscriber(t *testing.T) {
	tests := []struct {
		name string
		sub  model.Subscriber
		want model.Subscriber
	}{
		{
			name: "defaults",
			sub:  *model.NewSubscriber(100),
			want: model.Subscriber{
				ChatID:   100,
				Timezone: model.DefaultTimezone,
				Filter:   model.DefaultFissureFilter(),
			},
		},
		{
			name: "full record",
			sub: model.Subscriber{
				ChatID:   -200,
				Timezone: "UTC+03:00",
				Topics:   []model.Topic{model.TopicFissures, model.TopicEvents},
				Filter: model.FissureFilter{
					Types: []string{"Survival"},
					Tiers: []string{"Axi", "Lith"},
					Hard:  true,
				},
			},
			want: model.Subscriber{
				ChatID:   -200,
				Timezone: "UTC+03:00",
				Topics:   []model.Topic{model.TopicFissures, model.TopicEvents},
				Filter: model.FissureFilter{
					Types: []string{"Survival"},
					Tiers: []string{"Axi", "Lith"},
					Hard:  true,
				},
			},
		},
		{
			name: "empty timezone stored as default",
			sub:  model.Subscriber{ChatID: 300},
			want: model.Subscriber{
				ChatID:   300,
				Timezone: model.DefaultTimezone,
				Filter:   model.DefaultFissureFilter(),
			},
		},
	}

	for _, b := range backends() {
		for _, tt := range tests {
			t.Run(b.name+"/"+tt.name, func(t *testing.T) {
				ctx := context.Background()
				s := b.open(t)

				sub := tt.sub
				if err := s.PutSubscriber(ctx, &sub); err != nil {
					t.Fatalf("put: %v", err)
				}
				got, err := s.GetSubscriber(ctx, tt.sub.ChatID)
				if err != nil {
					t.Fatalf("get: %v", err)
				}
				if diff := cmp.Diff(tt.want, *got); diff != "" {
					t.Errorf("GetSubscriber mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestPutSubscriberReplaces(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			first := model.NewSubscriber(7)
			first.Topics = []model.Topic{model.TopicEvents}
			if err := s.PutSubscriber(ctx, first); err != nil {
				t.Fatalf("put: %v", err)
			}
			second := model.NewSubscriber(7)
			second.Timezone = "Asia/Tokyo"
			if err := s.PutSubscriber(ctx, second); err != nil {
				t.Fatalf("put: %v", err)
			}

			got, err := s.GetSubscriber(ctx, 7)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if diff := cmp.Diff(*second, *got); diff != "" {
				t.Errorf("replaced record mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpdateSubscriber(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			got, err := s.UpdateSubscriber(ctx, 9, func(sub *model.Subscriber) error {
				sub.Filter.ToggleHard()
				return nil
			})
			if err != nil {
				t.Fatalf("update missing: %v", err)
			}
			if !got.Filter.Hard || got.Timezone != model.DefaultTimezone {
				t.Errorf("expected defaults with hard set, got %+v", got)
			}

			_, err = s.UpdateSubscriber(ctx, 9, func(sub *model.Subscriber) error {
				sub.Filter.ToggleType("Survival")
				return nil
			})
			if err != nil {
				t.Fatalf("update existing: %v", err)
			}

			stored, err := s.GetSubscriber(ctx, 9)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			want := model.FissureFilter{Types: []string{"Survival"}, Tiers: []string{}, Hard: true}
			if diff := cmp.Diff(want, stored.Filter); diff != "" {
				t.Errorf("filter mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpdateSubscriberConcurrent(t *testing.T) {
	const writers = 40
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for i := range writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.UpdateSubscriber(ctx, 7, func(sub *model.Subscriber) error {
						sub.Filter.ToggleType(fmt.Sprintf("type-%02d", i))
						sub.Filter.ToggleHard()
						return nil
					})
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("update: %v", err)
				}
			}

			got, err := s.GetSubscriber(ctx, 7)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if diff := cmp.Diff(writers, len(got.Filter.Types)); diff != "" {
				t.Errorf("lost updates (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(false, got.Filter.Hard); diff != "" {
				t.Errorf("even number of hard toggles (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpdateSubscriberAbortsOnError(t *testing.T) {
	errStop := errors.New("stop")
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			_, err := s.UpdateSubscriber(ctx, 11, func(sub *model.Subscriber) error {
				sub.Timezone = "Asia/Tokyo"
				return errStop
			})
			if !errors.Is(err, errStop) {
				t.Fatalf("expected errStop, got %v", err)
			}
			if _, err := s.GetSubscriber(ctx, 11); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected nothing written, got %v", err)
			}
		})
	}
}

func TestCorruptFilterDegradesToOpen(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)

			for _, id := range []int64{1, 3} {
				sub := model.NewSubscriber(id)
				sub.Topics = []model.Topic{model.TopicFissures}
				sub.Filter.Types = []string{"Survival"}
				if err := s.PutSubscriber(ctx, sub); err != nil {
					t.Fatalf("put: %v", err)
				}
			}
			b.corruptFilter(t, s, 2, `{"types": [broken`)

			subs, err := s.ListSubscribers(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}

			var ids []int64
			var reset []bool
			for _, sub := range subs {
				ids = append(ids, sub.ChatID)
				reset = append(reset, sub.FilterReset)
			}
			if diff := cmp.Diff([]int64{1, 2, 3}, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]bool{false, true, false}, reset); diff != "" {
				t.Errorf("reset flags mismatch (-want +got):\n%s", diff)
			}
			if !subs[1].Filter.IsOpen() {
				t.Errorf("corrupt filter should degrade to open, got %+v", subs[1].Filter)
			}

			got, err := s.GetSubscriber(ctx, 2)
			if err != nil {
				t.Fatalf("get corrupt: %v", err)
			}
			if !got.FilterReset {
				t.Error("GetSubscriber should flag the reset filter")
			}
		})
	}
}

func TestUnknownTopicsDropped(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	_, err := s.db.Exec(
		`INSERT INTO users (chat_id, subscriptions) VALUES (5, 'events,alerts,fissures,events')`,
	)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetSubscriber(ctx, 5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := []model.Topic{model.TopicEvents, model.TopicFissures}
	if diff := cmp.Diff(want, got.Topics); diff != "" {
		t.Errorf("topics mismatch (-want +got):\n%s", diff)
	}
	if got.FilterReset {
		t.Error("column default filter should decode cleanly")
	}
}

func TestNotifiedLedger(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)
			now := time.Date(2025, 5, 16, 10, 0, 0, 0, time.UTC)

			if err := s.MarkNotified(ctx, 1, "fis-old", now.Add(-time.Minute)); err != nil {
				t.Fatalf("mark: %v", err)
			}
			if err := s.MarkNotified(ctx, 1, "fis-new", now.Add(time.Hour)); err != nil {
				t.Fatalf("mark: %v", err)
			}
			if err := s.MarkNotified(ctx, 1, "fis-new", now.Add(time.Hour)); err != nil {
				t.Fatalf("mark twice: %v", err)
			}

			seen, err := s.IsNotified(ctx, 1, "fis-new")
			if err != nil || !seen {
				t.Fatalf("IsNotified(fis-new) = %v, %v", seen, err)
			}
			seen, err = s.IsNotified(ctx, 2, "fis-new")
			if err != nil || seen {
				t.Fatalf("ledger must be per chat, got %v, %v", seen, err)
			}

			n, err := s.PruneNotified(ctx, now)
			if err != nil {
				t.Fatalf("prune: %v", err)
			}
			if diff := cmp.Diff(int64(1), n); diff != "" {
				t.Errorf("pruned count mismatch (-want +got):\n%s", diff)
			}
			if seen, _ := s.IsNotified(ctx, 1, "fis-old"); seen {
				t.Error("expired entry should be pruned")
			}
			if seen, _ := s.IsNotified(ctx, 1, "fis-new"); !seen {
				t.Error("live entry should survive pruning")
			}
		})
	}
}

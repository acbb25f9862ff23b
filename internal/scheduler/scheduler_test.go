package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"warframe_bot/internal/feed"
	"warframe_bot/internal/model"
	"warframe_bot/internal/storage"
)

type sentMessage struct {
	ChatID int64
	Text   string
}

type mockSender struct {
	mu       sync.Mutex
	messages []sentMessage
	failFor  int64
	panicFor int64
	onSend   func()
}

func (m *mockSender) SendMessage(chatID int64, text string) error {
	if m.onSend != nil {
		m.onSend()
	}
	if chatID == m.panicFor {
		panic("sender exploded")
	}
	if chatID == m.failFor {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *mockSender) getMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentMessage, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func (m *mockSender) countFor(chatID int64) int {
	n := 0
	for _, msg := range m.getMessages() {
		if msg.ChatID == chatID {
			n++
		}
	}
	return n
}

type stubFeed struct {
	snap *model.Snapshot
	err  error
}

func (f *stubFeed) Snapshot(_ context.Context) (*model.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadFixture(t *testing.T) *model.Snapshot {
	t.Helper()
	data, err := os.ReadFile("../../testdata/worldstate.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	snap, err := feed.Decode(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return snap
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:", testLogger())
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestScheduler(store storage.Storage, snap *model.Snapshot, sender Sender) *Scheduler {
	s := New(store, &stubFeed{snap: snap}, sender, testLogger())
	s.SetSendRate(0)
	return s
}

func putSubscriber(t *testing.T, store storage.Storage, chatID int64, tz string, f model.FissureFilter, topics ...model.Topic) {
	t.Helper()
	sub := &model.Subscriber{ChatID: chatID, Timezone: tz, Topics: topics, Filter: f}
	if err := store.PutSubscriber(context.Background(), sub); err != nil {
		t.Fatalf("put subscriber %d: %v", chatID, err)
	}
}

func TestNotifySurvivalOnly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	snap := &model.Snapshot{Fissures: []model.Fissure{
		{ID: "a", Node: "Mot (Void)", MissionType: "Survival", Tier: "Lith", ETA: "40m"},
		{ID: "b", Node: "Ukko (Void)", MissionType: "Defense", Tier: "Lith", ETA: "35m"},
	}}
	putSubscriber(t, store, 100, "UTC", model.FissureFilter{Types: []string{"Survival"}}, model.TopicFissures)

	sender := &mockSender{}
	newTestScheduler(store, snap, sender).notifyAll(ctx)

	msgs := sender.getMessages()
	if diff := cmp.Diff(1, len(msgs)); diff != "" {
		t.Fatalf("message count mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(msgs[0].Text, "Mot (Void)") {
		t.Errorf("expected the Survival fissure, got:\n%s", msgs[0].Text)
	}
}

func TestNotifyFilters(t *testing.T) {
	tests := []struct {
		name      string
		filter    model.FissureFilter
		wantCount int
	}{
		{name: "open filter", filter: model.DefaultFissureFilter(), wantCount: 5},
		{name: "survival in both vocabularies", filter: model.FissureFilter{Types: []string{"Survival"}}, wantCount: 2},
		{name: "lith tier", filter: model.FissureFilter{Tiers: []string{"Лит"}}, wantCount: 2},
		{name: "steel path", filter: model.FissureFilter{Hard: true}, wantCount: 2},
		{name: "void storm", filter: model.FissureFilter{Storm: true}, wantCount: 1},
		{name: "survival steel path", filter: model.FissureFilter{Types: []string{"Survival"}, Hard: true}, wantCount: 1},
		{name: "no match", filter: model.FissureFilter{Tiers: []string{"Requiem"}}, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newTestStore(t)
			putSubscriber(t, store, 100, "UTC", tt.filter, model.TopicFissures)

			sender := &mockSender{}
			newTestScheduler(store, loadFixture(t), sender).notifyAll(ctx)

			if diff := cmp.Diff(tt.wantCount, len(sender.getMessages())); diff != "" {
				t.Errorf("message count mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNotifySkipsSubscribersWithoutFissureTopic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	putSubscriber(t, store, 100, "UTC", model.DefaultFissureFilter(), model.TopicEvents, model.TopicInvasions)
	putSubscriber(t, store, 200, "UTC", model.DefaultFissureFilter(), model.TopicFissures)

	sender := &mockSender{}
	newTestScheduler(store, loadFixture(t), sender).notifyAll(ctx)

	if diff := cmp.Diff(0, sender.countFor(100)); diff != "" {
		t.Errorf("unsubscribed chat mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(5, sender.countFor(200)); diff != "" {
		t.Errorf("subscribed chat mismatch (-want +got):\n%s", diff)
	}
}

func TestNotifyIsolatesCorruptRecord(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.db")
	store, err := storage.NewSQLite(path, testLogger())
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	capture := model.FissureFilter{Types: []string{"Capture"}}
	putSubscriber(t, store, 100, "UTC", capture, model.TopicFissures)
	putSubscriber(t, store, 300, "UTC", capture, model.TopicFissures)

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer raw.Close()
	if _, err := raw.Exec(
		`INSERT INTO users (chat_id, timezone, subscriptions, fissure_filters) VALUES (200, 'UTC', 'fissures', '{"types": [')`,
	); err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	sender := &mockSender{}
	newTestScheduler(store, loadFixture(t), sender).notifyAll(ctx)

	got := map[int64]int{100: sender.countFor(100), 200: sender.countFor(200), 300: sender.countFor(300)}
	want := map[int64]int{100: 1, 200: 5, 300: 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("per-chat counts mismatch (-want +got):\n%s", diff)
	}
}

func TestNotifyIsolatesSenderFailures(t *testing.T) {
	tests := []struct {
		name   string
		sender *mockSender
	}{
		{name: "send error", sender: &mockSender{failFor: 200}},
		{name: "panic", sender: &mockSender{panicFor: 200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newTestStore(t)
			for _, id := range []int64{100, 200, 300} {
				putSubscriber(t, store, id, "UTC", model.FissureFilter{Storm: true}, model.TopicFissures)
			}

			newTestScheduler(store, loadFixture(t), tt.sender).notifyAll(ctx)

			got := map[int64]int{100: tt.sender.countFor(100), 200: tt.sender.countFor(200), 300: tt.sender.countFor(300)}
			want := map[int64]int{100: 1, 200: 0, 300: 1}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("per-chat counts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNotifyNoData(t *testing.T) {
	tests := []struct {
		name string
		feed *stubFeed
	}{
		{name: "fetch error", feed: &stubFeed{err: feed.ErrNoData}},
		{name: "invalid snapshot", feed: &stubFeed{err: feed.ErrInvalid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newTestStore(t)
			putSubscriber(t, store, 100, "UTC", model.DefaultFissureFilter(), model.TopicFissures)

			sender := &mockSender{}
			s := New(store, tt.feed, sender, testLogger())
			s.notifyAll(ctx)

			if diff := cmp.Diff(0, len(sender.getMessages())); diff != "" {
				t.Errorf("expected no messages (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNotifyCancelledContext(t *testing.T) {
	store := newTestStore(t)
	putSubscriber(t, store, 100, "UTC", model.DefaultFissureFilter(), model.TopicFissures)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sender := &mockSender{}
	newTestScheduler(store, loadFixture(t), sender).notifyAll(ctx)

	if diff := cmp.Diff(0, len(sender.getMessages())); diff != "" {
		t.Errorf("expected no messages when context cancelled (-want +got):\n%s", diff)
	}
}

func TestNotifyFinishesCycleAfterCancel(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []int64{1, 2, 3} {
		putSubscriber(t, store, id, "UTC", model.DefaultFissureFilter(), model.TopicFissures)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &mockSender{onSend: cancel}
	newTestScheduler(store, loadFixture(t), sender).notifyAll(ctx)

	got := map[int64]int{1: sender.countFor(1), 2: sender.countFor(2), 3: sender.countFor(3)}
	want := map[int64]int{1: 5, 2: 5, 3: 5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("per-chat counts mismatch (-want +got):\n%s", diff)
	}
}

func TestNotifyDedup(t *testing.T) {
	tests := []struct {
		name      string
		dedup     bool
		wantCount int
	}{
		{name: "without dedup every cycle resends", dedup: false, wantCount: 10},
		{name: "with dedup second cycle is silent", dedup: true, wantCount: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newTestStore(t)
			putSubscriber(t, store, 100, "UTC", model.DefaultFissureFilter(), model.TopicFissures)

			sender := &mockSender{}
			s := newTestScheduler(store, loadFixture(t), sender)
			s.SetDedup(tt.dedup)
			s.notifyAll(ctx)
			s.notifyAll(ctx)

			if diff := cmp.Diff(tt.wantCount, len(sender.getMessages())); diff != "" {
				t.Errorf("message count mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNotifyDedupPrunesExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	putSubscriber(t, store, 100, "UTC", model.DefaultFissureFilter(), model.TopicFissures)

	snap := &model.Snapshot{Fissures: []model.Fissure{
		{ID: "old", Node: "Hepit (Void)", MissionType: "Capture", Tier: "Lith", Expiry: "2025-05-16T10:45:00.000Z"},
	}}
	sender := &mockSender{}
	s := newTestScheduler(store, snap, sender)
	s.SetDedup(true)
	s.now = func() time.Time { return time.Date(2025, 5, 16, 10, 0, 0, 0, time.UTC) }
	s.notifyAll(ctx)

	// The ledger row expires before the next cycle, so the fissure is sent again.
	s.now = func() time.Time { return time.Date(2025, 5, 16, 11, 0, 0, 0, time.UTC) }
	s.notifyAll(ctx)

	if diff := cmp.Diff(2, len(sender.getMessages())); diff != "" {
		t.Errorf("message count mismatch (-want +got):\n%s", diff)
	}
}

func TestNotifyUsesSubscriberTimezone(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	capture := model.FissureFilter{Types: []string{"Capture"}}
	putSubscriber(t, store, 100, "UTC+03:00", capture, model.TopicFissures)
	putSubscriber(t, store, 200, "Not/AZone", capture, model.TopicFissures)

	sender := &mockSender{}
	newTestScheduler(store, loadFixture(t), sender).notifyAll(ctx)

	want := map[int64]string{
		100: "Ends: 16.05.2099 13:45",
		200: "Ends: 16.05.2099 13:45",
	}
	for _, msg := range sender.getMessages() {
		if !strings.Contains(msg.Text, want[msg.ChatID]) {
			t.Errorf("chat %d: expected %q in:\n%s", msg.ChatID, want[msg.ChatID], msg.Text)
		}
	}
	if diff := cmp.Diff(2, len(sender.getMessages())); diff != "" {
		t.Errorf("message count mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	sender := &mockSender{}
	s := newTestScheduler(store, loadFixture(t), sender)
	s.SetSchedule("@every 1h")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error)
	go func() {
		done <- s.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestRunInvalidSchedule(t *testing.T) {
	s := newTestScheduler(newTestStore(t), loadFixture(t), &mockSender{})
	s.SetSchedule("every now and then")

	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

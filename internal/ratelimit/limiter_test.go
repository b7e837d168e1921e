package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tv-order-relay/internal/storage"
)

type stubCheckpointStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newStubCheckpointStore() *stubCheckpointStore {
	return &stubCheckpointStore{values: make(map[string]string)}
}

func (s *stubCheckpointStore) GetCheckpoint(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *stubCheckpointStore) SetCheckpoint(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

var _ storage.CheckpointStore = (*stubCheckpointStore)(nil)

func TestReserveEnforcesInterval(t *testing.T) {
	l, err := New(context.Background(), time.Minute, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := l.Reserve(); !ok {
		t.Fatal("first reservation should be admitted")
	}
	if _, ok := l.Reserve(); ok {
		t.Fatal("second reservation inside the interval should be refused")
	}
}

func TestReserveAdmitsAfterInterval(t *testing.T) {
	l, err := New(context.Background(), time.Minute, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	current := time.Unix(1700000000, 0)
	l.now = func() time.Time { return current }

	if _, ok := l.Reserve(); !ok {
		t.Fatal("first reservation should be admitted")
	}

	current = current.Add(30 * time.Second)
	if _, ok := l.Reserve(); ok {
		t.Fatal("half an interval later should be refused")
	}

	current = current.Add(31 * time.Second)
	if ts, ok := l.Reserve(); !ok {
		t.Fatal("a full interval later should be admitted")
	} else if ts != l.LastTimestamp() {
		t.Fatal("reserve should advance the last timestamp")
	}
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	l, err := New(context.Background(), time.Minute, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const n = 32
	var admitted int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := l.Reserve(); ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}

	close(start)
	wg.Wait()

	if admitted != 1 {
		t.Fatalf("expected exactly one admitted reservation, got %d", admitted)
	}
}

func TestNewSeedsFromCheckpoint(t *testing.T) {
	store := newStubCheckpointStore()
	last := float64(time.Now().Unix())
	_ = store.SetCheckpoint(context.Background(), storage.CheckpointLastOrder, strconv.FormatFloat(last, 'f', -1, 64))

	l, err := New(context.Background(), time.Minute, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if l.LastTimestamp() != last {
		t.Fatalf("expected seeded timestamp %f, got %f", last, l.LastTimestamp())
	}
	if _, ok := l.Reserve(); ok {
		t.Fatal("reservation right after the seeded checkpoint should be refused")
	}
}

func TestNewIgnoresUnparseableCheckpoint(t *testing.T) {
	store := newStubCheckpointStore()
	_ = store.SetCheckpoint(context.Background(), storage.CheckpointLastOrder, "garbage")

	l, err := New(context.Background(), time.Minute, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.LastTimestamp() != 0 {
		t.Fatalf("expected zero seed, got %f", l.LastTimestamp())
	}
}

func TestPersistWritesCheckpoint(t *testing.T) {
	store := newStubCheckpointStore()
	l, err := New(context.Background(), time.Second, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ts, ok := l.Reserve()
	if !ok {
		t.Fatal("first reservation should be admitted")
	}
	if err := l.Persist(context.Background()); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	value, found, _ := store.GetCheckpoint(context.Background(), storage.CheckpointLastOrder)
	if !found {
		t.Fatal("checkpoint should be written")
	}
	parsed, parseErr := strconv.ParseFloat(value, 64)
	if parseErr != nil {
		t.Fatalf("checkpoint should be a float: %v", parseErr)
	}
	if parsed != ts {
		t.Fatalf("expected checkpoint %f, got %f", ts, parsed)
	}
}

package cycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/CosmoTheDev/seatwatch/internal/availability"
	"github.com/CosmoTheDev/seatwatch/internal/dedup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spySender struct {
	mu      sync.Mutex
	batches []availability.Batch
}

func (s *spySender) Send(_ context.Context, b availability.Batch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b)
	return true
}

func (s *spySender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

type staticSource []availability.Record

func (s staticSource) Records(context.Context) ([]availability.Record, error) { return s, nil }

type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b blockingSource) Records(context.Context) ([]availability.Record, error) {
	close(b.entered)
	<-b.release
	return nil, nil
}

var recipients = map[string]string{"42": "a@x.com"}

func TestRunOnceFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(`
{"subject_name": "Algebra", "seats_free": 2, "url": "https://usos.example/?course_id=42"}
{"subject_name": "Topology", "seats_free": 0, "url": "https://usos.example/?course_id=42"}
`), 0o600))

	sender := &spySender{}
	r := NewRunner(FileSource{Path: path}, sender, recipients, "", nil)
	rep, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Records)
	assert.True(t, rep.Sent)
	require.Len(t, rep.Batch, 1)
	assert.Equal(t, "a@x.com", rep.Batch[0].Recipient)
	assert.Equal(t, availability.DefaultTimeSlot, rep.Batch[0].TimeSlot)
	assert.Equal(t, 1, sender.count())
}

func TestRunOnceMissingRecords(t *testing.T) {
	r := NewRunner(FileSource{Path: filepath.Join(t.TempDir(), "nope.json")}, &spySender{}, recipients, "", nil)
	_, err := r.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestRunOnceSweepsStaleState(t *testing.T) {
	store := dedup.NewMemoryStore()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(context.Background(), dedup.State{
		Sent:         map[string]int{"123": 3},
		LastActivity: now.Add(-2 * time.Hour),
	}))
	gate := dedup.NewGate(store, 3, time.Hour, dedup.WithClock(func() time.Time { return now }))

	r := NewRunner(staticSource{}, &spySender{}, recipients, "", gate)
	rep, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Sent)

	st, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Sent)
	assert.True(t, st.LastActivity.IsZero())
}

func TestRunOnceSerialised(t *testing.T) {
	src := blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	r := NewRunner(src, &spySender{}, recipients, "", nil)

	done := make(chan error, 1)
	go func() {
		_, err := r.RunOnce(context.Background())
		done <- err
	}()
	<-src.entered

	_, err := r.RunOnce(context.Background())
	assert.True(t, errors.Is(err, ErrBusy))

	close(src.release)
	require.NoError(t, <-done)
}

func TestWatch(t *testing.T) {
	sender := &spySender{}
	src := staticSource{{SubjectName: "Algebra", SeatsFree: 1, SourceURL: "https://usos.example/?course_id=42"}}
	r := NewRunner(src, sender, recipients, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, "@every 1h") }()

	require.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchInvalidSchedule(t *testing.T) {
	r := NewRunner(staticSource{}, &spySender{}, recipients, "", nil)
	assert.Error(t, r.Watch(context.Background(), "every now and then"))
}

func TestFollowRunsOnWrite(t *testing.T) {
	prev := followDebounce
	followDebounce = 10 * time.Millisecond
	defer func() { followDebounce = prev }()

	path := filepath.Join(t.TempDir(), "records.json")
	sender := &spySender{}
	r := NewRunner(FileSource{Path: path}, sender, recipients, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Follow(ctx, path) }()

	record := []byte(`[{"subject_name": "Algebra", "seats_free": 1, "url": "https://usos.example/?course_id=42"}]`)
	// The watcher starts asynchronously; keep rewriting until a cycle ran.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, record, 0o600)
		return sender.count() > 0
	}, 3*time.Second, 100*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

package availability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	batches []Batch
}

func (s *recordingSender) Send(_ context.Context, b Batch) bool {
	s.batches = append(s.batches, b)
	return true
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestAnalyzeResolvesRecipient(t *testing.T) {
	sender := &recordingSender{}
	agg := NewAggregator(sender, map[string]string{"42": "a@x.com"}, "")
	agg.Upload(Record{SubjectName: "Algebra", TimeSlot: DefaultTimeSlot, SeatsFree: 2, SourceURL: "https://usos.example/?course_id=42"})

	batch, sent := agg.Analyze(context.Background())

	require.True(t, sent)
	require.Len(t, batch, 1)
	assert.Equal(t, "a@x.com", batch[0].Recipient)
	assert.Equal(t, "Algebra", batch[0].SubjectName)
	require.Len(t, sender.batches, 1)
	assert.Equal(t, batch, sender.batches[0])
}

func TestAnalyzeSkipsFullCourses(t *testing.T) {
	sender := &recordingSender{}
	agg := NewAggregator(sender, map[string]string{"1": "a@x.com", "2": "b@x.com"}, "")
	agg.Upload(Record{SubjectName: "Full", SeatsFree: 0, SourceURL: "/?course_id=1"})
	agg.Upload(Record{SubjectName: "Open", SeatsFree: 1, SourceURL: "/?course_id=2"})

	batch, _ := agg.Analyze(context.Background())

	require.Len(t, batch, 1)
	for _, f := range batch {
		assert.Positive(t, f.SeatsFree)
	}
	assert.Equal(t, "Open", batch[0].SubjectName)
}

func TestAnalyzeNoChangesDoesNotDispatch(t *testing.T) {
	logs := captureLogs(t)
	sender := &recordingSender{}
	agg := NewAggregator(sender, map[string]string{"1": "a@x.com"}, "")
	agg.Upload(Record{SubjectName: "Full", SeatsFree: 0, SourceURL: "/?course_id=1"})

	batch, sent := agg.Analyze(context.Background())

	assert.False(t, sent)
	assert.Empty(t, batch)
	assert.Empty(t, sender.batches)
	assert.Contains(t, logs.String(), "No changes have been detected")
}

func TestAnalyzeDropsUnresolvableRecords(t *testing.T) {
	logs := captureLogs(t)
	sender := &recordingSender{}
	agg := NewAggregator(sender, map[string]string{"7": "ok@x.com"}, "")
	agg.Upload(Record{SubjectName: "NoMarker", SeatsFree: 3, SourceURL: "https://usos.example/course"})
	agg.Upload(Record{SubjectName: "Unmapped", SeatsFree: 3, SourceURL: "/?course_id=99"})
	agg.Upload(Record{SubjectName: "Mapped", SeatsFree: 3, SourceURL: "/?course_id=7"})

	batch, sent := agg.Analyze(context.Background())

	require.True(t, sent)
	require.Len(t, batch, 1)
	assert.Equal(t, "Mapped", batch[0].SubjectName)
	assert.Contains(t, logs.String(), "NoMarker")
	assert.Contains(t, logs.String(), "Unmapped")
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestReset(t *testing.T) {
	agg := NewAggregator(nil, nil, "")
	agg.Upload(Record{SeatsFree: 1})
	assert.Equal(t, 1, agg.Len())
	agg.Reset()
	assert.Equal(t, 0, agg.Len())
}

package availability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegistered(t *testing.T) {
	cur, maximum, err := ParseRegistered(" 27/30 ")
	require.NoError(t, err)
	assert.Equal(t, 27, cur)
	assert.Equal(t, 30, maximum)

	for _, bad := range []string{"", "30", "a/30", "3/b"} {
		_, _, err := ParseRegistered(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewRecord(t *testing.T) {
	r, err := NewRecord("Algebra", "", "28/30", "/?course_id=42")
	require.NoError(t, err)
	assert.Equal(t, 2, r.SeatsFree)
	assert.Equal(t, DefaultTimeSlot, r.TimeSlot)

	r, err = NewRecord("Algebra", "Mon 10:00", "31/30", "/?course_id=42")
	require.NoError(t, err)
	assert.Equal(t, 0, r.SeatsFree)
	assert.Equal(t, "Mon 10:00", r.TimeSlot)
}

func TestDestinationID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://usos.example/kontroler.php?_action=x&course_id=42", "42"},
		{"https://usos.example/?course_id=42&term=2026Z", "42"},
		{"https://usos.example/?course_id=AB-1#top", "AB-1"},
	}
	for _, tt := range tests {
		got, err := DestinationID(tt.url, "")
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got)
	}

	_, err := DestinationID("https://usos.example/", "")
	assert.True(t, errors.Is(err, ErrNoDestination))
	_, err = DestinationID("https://usos.example/?course_id=", "")
	assert.True(t, errors.Is(err, ErrNoDestination))
}

func TestBatchRecipients(t *testing.T) {
	b := Batch{
		{Recipient: "a@x.com"},
		{Recipient: "b@x.com"},
		{Recipient: "a@x.com"},
	}
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, b.Recipients())
}

func TestDecodeRecords(t *testing.T) {
	arr := []byte(`[{"subject_name":"Algebra","seats_free":2,"url":"/?course_id=1"}]`)
	recs, err := DecodeRecords(arr)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, DefaultTimeSlot, recs[0].TimeSlot)

	lines := []byte("{\"subject_name\":\"A\",\"seats_free\":1,\"url\":\"u1\"}\n\n{\"subject_name\":\"B\",\"time_slot\":\"Tue\",\"seats_free\":0,\"url\":\"u2\"}\n")
	recs, err = DecodeRecords(lines)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Tue", recs[1].TimeSlot)

	_, err = DecodeRecords([]byte("{broken"))
	assert.Error(t, err)

	recs, err = DecodeRecords(nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

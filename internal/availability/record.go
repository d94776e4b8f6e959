package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultTimeSlot is used when a course page carries no time-slot field.
const DefaultTimeSlot = "default"

// DefaultMarker precedes the destination id in a course URL.
const DefaultMarker = "course_id="

var (
	// ErrNoDestination is returned when a URL carries no destination marker.
	ErrNoDestination = errors.New("destination id not found in url")
	// ErrNoRecipient is returned when a destination has no mapped recipient.
	ErrNoRecipient = errors.New("no recipient for destination")
)

// Record is one scraped course page. Records are immutable once built and
// live for a single scrape cycle.
type Record struct {
	SubjectName string `json:"subject_name"`
	TimeSlot    string `json:"time_slot"`
	SeatsFree   int    `json:"seats_free"`
	SourceURL   string `json:"url"`
}

// Fact is a record that is worth notifying about, resolved to a recipient.
type Fact struct {
	Record
	Recipient string `json:"mail_recipient"`
}

// Batch is the set of facts produced by one cycle.
type Batch []Fact

// Recipients returns the distinct recipients of b in first-seen order.
func (b Batch) Recipients() []string {
	seen := make(map[string]bool, len(b))
	var out []string
	for _, f := range b {
		if f.Recipient == "" || seen[f.Recipient] {
			continue
		}
		seen[f.Recipient] = true
		out = append(out, f.Recipient)
	}
	return out
}

// ParseRegistered parses the "<current>/<maximum>" registration counter
// shown on a course page.
func ParseRegistered(text string) (current, maximum int, err error) {
	left, right, ok := strings.Cut(strings.TrimSpace(text), "/")
	if !ok {
		return 0, 0, fmt.Errorf("registration counter %q: missing '/'", text)
	}
	current, err = strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, fmt.Errorf("registration counter %q: current: %w", text, err)
	}
	maximum, err = strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return 0, 0, fmt.Errorf("registration counter %q: maximum: %w", text, err)
	}
	return current, maximum, nil
}

// NewRecord builds a record from the raw fields an extractor pulls off a
// course page. An empty timeSlot means the page has no such field and is
// replaced with DefaultTimeSlot.
func NewRecord(subject, timeSlot, registered, sourceURL string) (Record, error) {
	current, maximum, err := ParseRegistered(registered)
	if err != nil {
		return Record{}, err
	}
	free := maximum - current
	if free < 0 {
		free = 0
	}
	if strings.TrimSpace(timeSlot) == "" {
		timeSlot = DefaultTimeSlot
	}
	return Record{
		SubjectName: strings.TrimSpace(subject),
		TimeSlot:    strings.TrimSpace(timeSlot),
		SeatsFree:   free,
		SourceURL:   sourceURL,
	}, nil
}

// DestinationID returns the substring of url following marker, up to the
// next query separator or fragment.
func DestinationID(url, marker string) (string, error) {
	if marker == "" {
		marker = DefaultMarker
	}
	i := strings.Index(url, marker)
	if i < 0 {
		return "", fmt.Errorf("%w: %q", ErrNoDestination, url)
	}
	id := url[i+len(marker):]
	if j := strings.IndexAny(id, "&#"); j >= 0 {
		id = id[:j]
	}
	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrNoDestination, url)
	}
	return id, nil
}

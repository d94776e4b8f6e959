package availability

import (
	"context"
	"fmt"
	"log/slog"
)

// Sender receives the batch of facts found in a cycle.
// *notify.Dispatcher satisfies it.
type Sender interface {
	Send(ctx context.Context, batch Batch) bool
}

// Aggregator collects the records of one scrape cycle and decides which of
// them are worth a notification.
type Aggregator struct {
	sender     Sender
	recipients map[string]string
	marker     string

	records []Record
}

// NewAggregator creates an Aggregator that resolves destinations through
// recipients and hands non-empty batches to sender.
func NewAggregator(sender Sender, recipients map[string]string, marker string) *Aggregator {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Aggregator{sender: sender, recipients: recipients, marker: marker}
}

// Upload adds a record to the current cycle.
func (a *Aggregator) Upload(r Record) {
	a.records = append(a.records, r)
}

// Len returns the number of records uploaded in the current cycle.
func (a *Aggregator) Len() int { return len(a.records) }

// Reset discards the records of the current cycle.
func (a *Aggregator) Reset() { a.records = nil }

// Analyze turns the cycle's records into facts and dispatches them.
// Records without free seats are skipped; records whose destination or
// recipient cannot be resolved are dropped with a warning. Facts already
// reported in earlier cycles are not filtered here: suppression is up to
// the delivering channel. It returns the batch and whether it was handed
// to the sender.
func (a *Aggregator) Analyze(ctx context.Context) (Batch, bool) {
	var batch Batch
	for _, r := range a.records {
		if r.SeatsFree <= 0 {
			continue
		}
		recipient, err := a.resolve(r)
		if err != nil {
			slog.Warn("dropping record", "subject", r.SubjectName, "url", r.SourceURL, "error", err)
			continue
		}
		batch = append(batch, Fact{Record: r, Recipient: recipient})
	}

	if len(batch) == 0 {
		slog.Info("No changes have been detected", "records", len(a.records))
		return nil, false
	}

	slog.Info("Changes detected, passing onto dispatcher", "facts", len(batch), "records", len(a.records))
	if a.sender != nil {
		a.sender.Send(ctx, batch)
	}
	return batch, true
}

func (a *Aggregator) resolve(r Record) (string, error) {
	dest, err := DestinationID(r.SourceURL, a.marker)
	if err != nil {
		return "", err
	}
	recipient := a.recipients[dest]
	if recipient == "" {
		return "", fmt.Errorf("%w %q", ErrNoRecipient, dest)
	}
	return recipient, nil
}

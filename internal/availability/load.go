package availability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// LoadRecords reads the records an extractor left behind for this cycle.
// The file may hold a JSON array or one JSON object per line.
func LoadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading records %s: %w", path, err)
	}
	return DecodeRecords(data)
}

// DecodeRecords decodes a JSON array or JSON lines of records. A record with
// no time slot gets DefaultTimeSlot.
func DecodeRecords(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var records []Record
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decoding records: %w", err)
		}
	} else {
		sc := bufio.NewScanner(bytes.NewReader(trimmed))
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		line := 0
		for sc.Scan() {
			line++
			b := bytes.TrimSpace(sc.Bytes())
			if len(b) == 0 {
				continue
			}
			var r Record
			if err := json.Unmarshal(b, &r); err != nil {
				return nil, fmt.Errorf("decoding record on line %d: %w", line, err)
			}
			records = append(records, r)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scanning records: %w", err)
		}
	}

	for i := range records {
		if records[i].TimeSlot == "" {
			records[i].TimeSlot = DefaultTimeSlot
		}
		if records[i].SeatsFree < 0 {
			records[i].SeatsFree = 0
		}
	}
	return records, nil
}

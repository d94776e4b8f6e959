package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/seatwatch/internal/database"
)

// SQLStore keeps state in the dedup_sent and dedup_meta tables. Each Update
// runs in one database transaction that locks the meta row first, so
// concurrent runs against the same database serialise.
type SQLStore struct {
	db database.DB
}

// NewSQLStore migrates db and wraps it as a Store. The store takes
// ownership of db and closes it on Close.
func NewSQLStore(ctx context.Context, db database.DB) (*SQLStore, error) {
	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrating dedup tables: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Load(ctx context.Context) (State, error) {
	var st State
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		st, err = s.read(ctx, tx, "")
		return err
	})
	if err != nil {
		slog.Warn("dedup state unreadable, starting empty", "driver", s.db.Driver(), "error", err)
		return NewState(), nil
	}
	return st, nil
}

func (s *SQLStore) Save(ctx context.Context, st State) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		return s.write(ctx, tx, st)
	})
}

func (s *SQLStore) Update(ctx context.Context, fn func(st *State) error) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		st, err := s.read(ctx, tx, s.db.ForUpdate())
		if err != nil {
			slog.Warn("dedup state unreadable, starting empty", "driver", s.db.Driver(), "error", err)
			st = NewState()
		}
		if err := fn(&st); err != nil {
			return err
		}
		return s.write(ctx, tx, st)
	})
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) read(ctx context.Context, tx *sql.Tx, lock string) (State, error) {
	st := NewState()

	var last sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT last_activity FROM dedup_meta WHERE id = 1`+lock).Scan(&last); err != nil {
		return st, fmt.Errorf("reading dedup meta: %w", err)
	}
	if last.Valid && last.String != "" {
		t, err := ParseTime(last.String)
		if err != nil {
			return st, err
		}
		st.LastActivity = t
	}

	rows, err := tx.QueryContext(ctx, `SELECT fact_hash, sent_count FROM dedup_sent`)
	if err != nil {
		return st, fmt.Errorf("reading dedup counters: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			hash  string
			count int
		)
		if err := rows.Scan(&hash, &count); err != nil {
			return st, err
		}
		st.Sent[hash] = count
	}
	return st, rows.Err()
}

func (s *SQLStore) write(ctx context.Context, tx *sql.Tx, st State) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM dedup_sent`); err != nil {
		return fmt.Errorf("clearing dedup counters: %w", err)
	}
	for hash, count := range st.Sent {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dedup_sent (fact_hash, sent_count) VALUES (?, ?)`, hash, count); err != nil {
			return fmt.Errorf("writing dedup counter %s: %w", hash, err)
		}
	}

	var last any
	if !st.LastActivity.IsZero() {
		last = FormatTime(st.LastActivity)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE dedup_meta SET last_activity = ? WHERE id = 1`, last); err != nil {
		return fmt.Errorf("writing dedup meta: %w", err)
	}
	return nil
}

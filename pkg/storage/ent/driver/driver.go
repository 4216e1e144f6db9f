// Package entdriver implements storage.Driver on ent's SQL layer. It is
// database-agnostic and embedded by the postgres and sqlite backends.
package entdriver

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"go.uber.org/zap"

	"github.com/papercomputeco/memoir/pkg/retry"
	"github.com/papercomputeco/memoir/pkg/storage"
)

const (
	columnSeq       = "seq"
	columnMessageID = "message_id"
	columnFromID    = "from_id"
	columnIsBot     = "is_bot"
	columnText      = "text"
	columnCreatedAt = "created_at"
)

// Config configures an EntDriver.
type Config struct {
	Retry retry.Policy

	// Transient reports errors worth retrying for the backend in use.
	Transient retry.Classifier

	Logger *zap.Logger
}

// EntDriver provides storage operations over an ent SQL driver.
type EntDriver struct {
	drv       *entsql.Driver
	table     string
	retry     retry.Policy
	transient retry.Classifier
	logger    *zap.Logger
}

// New migrates the chat history schema and returns a driver over drv.
func New(ctx context.Context, drv *entsql.Driver, c Config) (*EntDriver, error) {
	table, err := ChatHistoriesTable()
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, drv); err != nil {
		return nil, err
	}

	if c.Retry.BaseDelay == 0 {
		c.Retry = retry.DefaultPolicy()
	}
	if c.Transient == nil {
		c.Transient = retry.IsTransient
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	return &EntDriver{
		drv:       drv,
		table:     table.Name,
		retry:     c.Retry,
		transient: c.Transient,
		logger:    c.Logger,
	}, nil
}

// Insert writes every row in a single statement. Rows whose message id
// already exists are skipped.
func (ed *EntDriver) Insert(ctx context.Context, rows []storage.Row) error {
	if len(rows) == 0 {
		return nil
	}

	insert := entsql.Dialect(ed.drv.Dialect()).
		Insert(ed.table).
		Columns(columnMessageID, columnFromID, columnIsBot, columnText, columnCreatedAt)
	for _, r := range rows {
		if r.UserID == "" {
			return storage.ErrMissingUserID
		}
		insert.Values(r.MessageID, r.UserID, r.IsAssistant, r.Text, r.CreatedAt.UTC())
	}
	insert.OnConflict(
		entsql.ConflictColumns(columnMessageID),
		entsql.DoNothing(),
	)

	query, args, err := insert.QueryErr()
	if err != nil {
		return fmt.Errorf("build chat history insert: %w", err)
	}

	err = retry.Do(ctx, ed.retry, ed.transient, func(ctx context.Context) error {
		return ed.drv.Exec(ctx, query, args, nil)
	})
	if err != nil {
		return fmt.Errorf("insert chat history: %w", err)
	}

	ed.logger.Debug("inserted chat history rows", zap.Int("count", len(rows)))
	return nil
}

// History returns the user's rows oldest first.
func (ed *EntDriver) History(ctx context.Context, userID string) ([]storage.Row, error) {
	if userID == "" {
		return nil, storage.ErrMissingUserID
	}

	b := entsql.Dialect(ed.drv.Dialect())
	t := b.Table(ed.table)
	query, args := b.Select(
		t.C(columnMessageID),
		t.C(columnFromID),
		t.C(columnIsBot),
		t.C(columnText),
		t.C(columnCreatedAt),
	).
		From(t).
		Where(entsql.EQ(t.C(columnFromID), userID)).
		OrderBy(t.C(columnCreatedAt), t.C(columnSeq)).
		Query()

	out, err := retry.Value(ctx, ed.retry, ed.transient, func(ctx context.Context) ([]storage.Row, error) {
		var rows entsql.Rows
		if err := ed.drv.Query(ctx, query, args, &rows); err != nil {
			return nil, err
		}
		defer rows.Close()

		var result []storage.Row
		for rows.Next() {
			var (
				r       storage.Row
				created time.Time
			)
			if err := rows.Scan(&r.MessageID, &r.UserID, &r.IsAssistant, &r.Text, &created); err != nil {
				return nil, err
			}
			r.CreatedAt = created.UTC()
			result = append(result, r)
		}
		return result, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	return out, nil
}

// Ping verifies the database is reachable.
func (ed *EntDriver) Ping(ctx context.Context) error {
	return ed.drv.DB().PingContext(ctx)
}

// Close closes the underlying database.
func (ed *EntDriver) Close() error {
	return ed.drv.Close()
}

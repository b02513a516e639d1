package counters

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/counterbot/core/logger"
	"github.com/m3rciful/counterbot/core/metrics"
)

var _ Store = (*SQLStore)(nil)

// SQLStore keeps every chat's counters in one table keyed by chat_id.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open, migrated database.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Chat returns the partition of chatID.
func (s *SQLStore) Chat(chatID int64) Partition {
	return &partition{db: s.db, chatID: chatID}
}

// Stats counts counters and the chats that own at least one.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	const q = `SELECT COUNT(*) AS counters, COUNT(DISTINCT chat_id) AS chats FROM counters`
	start := time.Now()
	var st Stats
	err := s.db.GetContext(ctx, &st, q)
	observe(ctx, "stats", 0, start, err)
	if err != nil {
		return Stats{}, &PersistenceError{Op: "stats", Err: err}
	}
	return st, nil
}

type partition struct {
	db     *sqlx.DB
	chatID int64
}

func (p *partition) Create(ctx context.Context, name string, initial int64) (int64, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return 0, err
	}
	q := p.db.Rebind(`INSERT INTO counters (chat_id, name, count) VALUES (?, ?, ?) RETURNING id`)
	start := time.Now()
	var id int64
	err = p.db.QueryRowxContext(ctx, q, p.chatID, name, initial).Scan(&id)
	observe(ctx, "create", p.chatID, start, err, slog.Int64("counter_id", id))
	if err != nil {
		return 0, &PersistenceError{Op: "create", Err: err}
	}
	return id, nil
}

func (p *partition) List(ctx context.Context) ([]Counter, error) {
	q := p.db.Rebind(`SELECT id, name, count FROM counters WHERE chat_id = ? ORDER BY id`)
	start := time.Now()
	list := []Counter{}
	err := p.db.SelectContext(ctx, &list, q, p.chatID)
	observe(ctx, "list", p.chatID, start, err, slog.Int("counters", len(list)))
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return list, nil
}

func (p *partition) Get(ctx context.Context, id int64) (Counter, error) {
	q := p.db.Rebind(`SELECT id, name, count FROM counters WHERE chat_id = ? AND id = ?`)
	start := time.Now()
	var c Counter
	err := p.db.GetContext(ctx, &c, q, p.chatID, id)
	if errors.Is(err, sql.ErrNoRows) {
		observe(ctx, "get", p.chatID, start, nil, slog.Int64("counter_id", id))
		return Counter{}, ErrNotFound
	}
	observe(ctx, "get", p.chatID, start, err, slog.Int64("counter_id", id))
	if err != nil {
		return Counter{}, &PersistenceError{Op: "get", Err: err}
	}
	return c, nil
}

// IncrementBy only matches rows where count+delta stays inside int64. A counter
// that exists but would overflow gets a ValidationError and keeps its value.
func (p *partition) IncrementBy(ctx context.Context, id, delta int64) (int64, error) {
	cond, bound := `count <= ?`, math.MaxInt64-delta
	if delta < 0 {
		cond, bound = `count >= ?`, math.MinInt64-delta
	}
	q := p.db.Rebind(`UPDATE counters SET count = count + ?, updated_at = CURRENT_TIMESTAMP
		WHERE chat_id = ? AND id = ? AND ` + cond + ` RETURNING count`)
	start := time.Now()
	var value int64
	err := p.db.QueryRowxContext(ctx, q, delta, p.chatID, id, bound).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		observe(ctx, "increment", p.chatID, start, nil, slog.Int64("counter_id", id))
		if _, err := p.Get(ctx, id); err != nil {
			return 0, err
		}
		return 0, &ValidationError{Field: "value", Reason: "out of range"}
	}
	observe(ctx, "increment", p.chatID, start, err, slog.Int64("counter_id", id))
	if err != nil {
		return 0, &PersistenceError{Op: "increment", Err: err}
	}
	return value, nil
}

func (p *partition) SetValue(ctx context.Context, id, value int64) error {
	q := p.db.Rebind(`UPDATE counters SET count = ?, updated_at = CURRENT_TIMESTAMP WHERE chat_id = ? AND id = ?`)
	return p.exec(ctx, "set", id, q, value, p.chatID, id)
}

func (p *partition) Delete(ctx context.Context, id int64) error {
	q := p.db.Rebind(`DELETE FROM counters WHERE chat_id = ? AND id = ?`)
	return p.exec(ctx, "delete", id, q, p.chatID, id)
}

// exec runs a statement that must touch exactly the row id.
func (p *partition) exec(ctx context.Context, op string, id int64, q string, args ...any) error {
	start := time.Now()
	res, err := p.db.ExecContext(ctx, q, args...)
	var n int64
	if err == nil {
		n, err = res.RowsAffected()
	}
	observe(ctx, op, p.chatID, start, err, slog.Int64("counter_id", id))
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func observe(ctx context.Context, op string, chatID int64, start time.Time, err error, extra ...slog.Attr) {
	took := time.Since(start)
	metrics.ObserveStoreOp(op, err, took)
	attrs := []slog.Attr{
		slog.String("op", op),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	if chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	attrs = append(attrs, extra...)
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.Error(ctx, "service.counters", "store."+op, attrs...)
		return
	}
	logger.Debug(ctx, "service.counters", "store."+op, attrs...)
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

const (
	defaultOutboxBatch = 100
	// defaultOutboxLease — сколько выбранное сообщение скрыто от других экземпляров relay.
	defaultOutboxLease = 30 * time.Second
)

// OutboxRepository — очередь событий в таблице outbox_messages. PullPending арендует строки,
// поэтому несколько экземпляров relay не публикуют одно событие одновременно.
type OutboxRepository struct {
	db    *sql.DB
	lease time.Duration
	now   func() time.Time
}

// NewOutboxRepository создаёт outbox поверх Store.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{
		db:    store.DB(),
		lease: defaultOutboxLease,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue добавляет событие; пустой ID заменяется на UUID.
func (r *OutboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	var payload sql.NullString
	if len(msg.Payload) > 0 {
		payload = sql.NullString{String: string(msg.Payload), Valid: true}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox_messages (id, aggregate_type, aggregate_id, event_type, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, payload, r.now()); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox event %s for %s: %w", msg.EventType, msg.AggregateID, err)
	}
	return msg, nil
}

// PullPending арендует до limit pending-событий, у которых нет действующей аренды.
func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}
	now := r.now()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		UPDATE outbox_messages AS o
		SET claimed_until = $2, updated_at = $3
		FROM (
			SELECT id FROM outbox_messages
			WHERE status = 'pending' AND (claimed_until IS NULL OR claimed_until <= $3)
			ORDER BY seq
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		) AS next
		WHERE o.id = next.id
		RETURNING o.seq, o.id, o.aggregate_type, o.aggregate_id, o.event_type, o.payload
	`, limit, now.Add(r.lease), now)
	if err != nil {
		return nil, fmt.Errorf("lease pending outbox events: %w", err)
	}
	defer rows.Close()

	type leased struct {
		seq int64
		msg domain.OutboxMessage
	}
	batch := make([]leased, 0, limit)
	for rows.Next() {
		var (
			item    leased
			payload []byte
		)
		if err := rows.Scan(&item.seq, &item.msg.ID, &item.msg.AggregateType, &item.msg.AggregateID, &item.msg.EventType, &payload); err != nil {
			return nil, fmt.Errorf("scan leased outbox event: %w", err)
		}
		item.msg.Payload = append([]byte(nil), payload...)
		batch = append(batch, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read leased outbox events: %w", err)
	}

	// RETURNING не сохраняет порядок подзапроса
	sort.Slice(batch, func(i, j int) bool { return batch[i].seq < batch[j].seq })
	messages := make([]domain.OutboxMessage, len(batch))
	for i, item := range batch {
		messages[i] = item.msg
	}
	return messages, nil
}

// Stats считает pending-события, включая арендованные.
func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(created_at) FROM outbox_messages WHERE status = 'pending'
	`).Scan(&stats.PendingCount, &oldest); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox backlog stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

// MarkSent фиксирует публикацию и снимает аренду.
func (r *OutboxRepository) MarkSent(id string) error {
	return r.finish(id, `
		UPDATE outbox_messages
		SET status = 'sent', published_at = $2, claimed_until = NULL,
		    attempt_count = attempt_count + 1, updated_at = $2
		WHERE id = $1
	`)
}

// MarkFailed выводит событие из очереди после исчерпания попыток.
func (r *OutboxRepository) MarkFailed(id string) error {
	return r.finish(id, `
		UPDATE outbox_messages
		SET status = 'failed', claimed_until = NULL,
		    attempt_count = attempt_count + 1, updated_at = $2
		WHERE id = $1
	`)
}

func (r *OutboxRepository) finish(id, query string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, query, id, r.now())
	if err != nil {
		return fmt.Errorf("update outbox event %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update outbox event %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("outbox event %s not found: %w", id, domain.ErrOutboxPublish)
	}
	return nil
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)

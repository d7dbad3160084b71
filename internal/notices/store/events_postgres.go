package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"wrls/internal/notices/models"
	dErrors "wrls/pkg/domain-errors"
	"wrls/pkg/platform/sentinel"
	txcontext "wrls/pkg/platform/tx"
)

const (
	defaultTxTimeout = 5 * time.Second

	uniqueViolation = "23505"
)

// PostgresEventStore persists notice events, their notifications and the
// outbox rows that relay them.
type PostgresEventStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresEventStore constructs a PostgreSQL-backed event store.
func NewPostgresEventStore(db *sql.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db, timeout: defaultTxTimeout}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresEventStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx runs fn with a transaction carried in its context. Store calls
// made with that context join the transaction.
func (s *PostgresEventStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateEvent inserts a notice event. A duplicate reference code is reported
// as sentinel.ErrConflict.
func (s *PostgresEventStore) CreateEvent(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (id, reference_code, subtype, journey, licences, recipient_count, issuer, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		event.ReferenceCode,
		string(event.Subtype),
		string(event.Journey),
		textArray(event.Licences),
		event.RecipientCount,
		event.Issuer,
		event.Status,
		event.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("event reference %s: %w", event.ReferenceCode, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// CreateNotifications inserts notifications and queues each on the outbox.
func (s *PostgresEventStore) CreateNotifications(ctx context.Context, notifications []models.Notification) error {
	exec := s.execer(ctx)

	notificationQuery := `
		INSERT INTO notifications (
			id, event_id, licences, message_ref, template_id, message_type, contact_type,
			personalisation, return_log_ids, recipient, status, due_date, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13)
	`
	outboxQuery := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, n := range notifications {
		personalisation, err := json.Marshal(n.Personalisation)
		if err != nil {
			return fmt.Errorf("marshal personalisation: %w", err)
		}
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal notification payload: %w", err)
		}

		var dueDate *time.Time
		if !n.DueDate.IsZero() {
			dueDate = &n.DueDate
		}

		if _, err := exec.ExecContext(ctx, notificationQuery,
			n.ID,
			n.EventID,
			textArray(n.Licences),
			n.MessageRef,
			n.TemplateID,
			string(n.MessageType),
			string(n.ContactType),
			personalisation,
			textArray(n.ReturnLogIDs),
			n.Recipient,
			n.Status,
			dueDate,
			n.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}

		if _, err := exec.ExecContext(ctx, outboxQuery,
			uuid.New(),
			"notification",
			n.ID,
			models.OutboxEventNotificationCreated,
			payload,
			n.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
	}
	return nil
}

// Event returns the event with id, or sentinel.ErrNotFound.
func (s *PostgresEventStore) Event(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	query := `
		SELECT id, reference_code, subtype, journey, licences, recipient_count, issuer, status, created_at
		FROM events
		WHERE id = $1
	`
	var (
		event    models.Event
		subtype  string
		journey  string
		licences pq.StringArray
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.ReferenceCode,
		&subtype,
		&journey,
		&licences,
		&event.RecipientCount,
		&event.Issuer,
		&event.Status,
		&event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("query event: %w", err)
	}
	event.Subtype = models.NoticeType(subtype)
	event.Journey = models.Journey(journey)
	event.Licences = []string(licences)
	return &event, nil
}

// NotificationsByEvent lists an event's notifications oldest first.
func (s *PostgresEventStore) NotificationsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Notification, error) {
	query := `
		SELECT id, event_id, licences, message_ref, template_id, message_type, contact_type,
			   personalisation, return_log_ids, COALESCE(recipient, ''), status, due_date, created_at
		FROM notifications
		WHERE event_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n               models.Notification
			licences        pq.StringArray
			returnLogIDs    pq.StringArray
			messageType     string
			contactType     string
			personalisation []byte
			dueDate         sql.NullTime
		)
		if err := rows.Scan(
			&n.ID,
			&n.EventID,
			&licences,
			&n.MessageRef,
			&n.TemplateID,
			&messageType,
			&contactType,
			&personalisation,
			&returnLogIDs,
			&n.Recipient,
			&n.Status,
			&dueDate,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if err := json.Unmarshal(personalisation, &n.Personalisation); err != nil {
			return nil, fmt.Errorf("decode personalisation: %w", err)
		}
		n.Licences = []string(licences)
		n.ReturnLogIDs = []string(returnLogIDs)
		n.MessageType = models.MessageType(messageType)
		n.ContactType = models.ContactType(contactType)
		if dueDate.Valid {
			n.DueDate = dueDate.Time.UTC()
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

// ProcessOutbox locks up to limit unpublished entries, hands them to publish
// and marks the ids it returns as published, all in one transaction. Rows
// locked by a concurrent relay are skipped.
func (s *PostgresEventStore) ProcessOutbox(
	ctx context.Context,
	limit int,
	publish func(ctx context.Context, entries []models.OutboxEntry) ([]uuid.UUID, error),
) (int, error) {
	var (
		published  int
		publishErr error
	)
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		exec := s.execer(ctx)

		rows, err := exec.QueryContext(ctx, `
			SELECT id, aggregate_id, event_type, payload, created_at
			FROM outbox
			WHERE published_at IS NULL
			ORDER BY created_at, id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return fmt.Errorf("claim outbox entries: %w", err)
		}

		var entries []models.OutboxEntry
		for rows.Next() {
			var e models.OutboxEntry
			if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan outbox entry: %w", err)
			}
			entries = append(entries, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate outbox entries: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		// entries missing from ids stay unpublished and are retried next poll
		var ids []uuid.UUID
		ids, publishErr = publish(ctx, entries)
		if len(ids) == 0 {
			return nil
		}
		if _, err := exec.ExecContext(ctx,
			`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
			time.Now().UTC(), uuidArray(ids),
		); err != nil {
			return fmt.Errorf("mark outbox entries published: %w", err)
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, publishErr
}

func uuidArray(ids []uuid.UUID) any {
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = id.String()
	}
	return pq.Array(values)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

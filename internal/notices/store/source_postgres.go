package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"wrls/internal/notices/models"
)

const (
	rolePrimaryUser = "primary_user"
	roleUserReturns = "user_returns"
)

// PostgresSource reads due return logs and licence contacts from PostgreSQL.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource constructs a PostgreSQL-backed recipient source.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Snapshot reads the due logs matching filter and the contacts of their
// licences inside one read-only repeatable-read transaction, so both halves
// see the same state.
func (s *PostgresSource) Snapshot(ctx context.Context, filter models.DueReturnLogFilter) (*models.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	logs, err := queryDueReturnLogs(ctx, tx, filter)
	if err != nil {
		return nil, err
	}

	refs := licenceRefs(logs)
	licences := make(map[string]models.LicenceContacts, len(refs))
	for _, ref := range refs {
		licences[ref] = models.LicenceContacts{LicenceRef: ref}
	}

	if len(refs) > 0 {
		if err := queryLetterContacts(ctx, tx, refs, licences); err != nil {
			return nil, err
		}
		if err := queryRegisteredUsers(ctx, tx, refs, licences); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return &models.Snapshot{DueReturnLogs: logs, Licences: licences}, nil
}

func queryDueReturnLogs(ctx context.Context, tx *sql.Tx, f models.DueReturnLogFilter) ([]models.DueReturnLog, error) {
	query := `
		SELECT return_id, return_reference, licence_ref, start_date, end_date, due_date,
			   status, summer, quarterly,
			   COALESCE(site_description, ''), COALESCE(purpose, '')
		FROM return_logs
		WHERE status = $1
		  AND (cardinality($2::text[]) = 0 OR licence_ref = ANY($2::text[]))
		  AND NOT (licence_ref = ANY($3::text[]))
		  AND (cardinality($4::text[]) = 0 OR return_id = ANY($4::text[]))
		  AND ($5::date IS NULL OR start_date >= $5::date)
		  AND ($6::date IS NULL OR end_date <= $6::date)
		  AND ($7::boolean IS NULL OR (summer = $7::boolean AND quarterly = $8::boolean))
		  AND ($9::int = 0
		       OR ($9::int = 1 AND due_date IS NULL)
		       OR ($9::int = 2 AND due_date IS NOT NULL))
		ORDER BY licence_ref, return_reference, return_id
	`

	var (
		periodStart, periodEnd *time.Time
		summer, quarterly      *bool
	)
	if p := f.Period; p != nil {
		periodStart, periodEnd = &p.StartDate, &p.EndDate
		summer, quarterly = &p.Summer, &p.Quarterly
	}

	rows, err := tx.QueryContext(ctx, query,
		models.ReturnLogStatusDue,
		textArray(f.LicenceRefs),
		textArray(f.ExcludedLicenceRefs),
		textArray(f.ReturnLogIDs),
		periodStart,
		periodEnd,
		summer,
		quarterly,
		int(f.DueDate),
	)
	if err != nil {
		return nil, fmt.Errorf("query due return logs: %w", err)
	}
	defer rows.Close()

	var logs []models.DueReturnLog
	for rows.Next() {
		var (
			log     models.DueReturnLog
			dueDate sql.NullTime
		)
		if err := rows.Scan(
			&log.ID,
			&log.ReturnReference,
			&log.LicenceRef,
			&log.StartDate,
			&log.EndDate,
			&dueDate,
			&log.Status,
			&log.Summer,
			&log.Quarterly,
			&log.SiteDescription,
			&log.Purpose,
		); err != nil {
			return nil, fmt.Errorf("scan due return log: %w", err)
		}
		log.StartDate = log.StartDate.UTC()
		log.EndDate = log.EndDate.UTC()
		if dueDate.Valid {
			d := dueDate.Time.UTC()
			log.DueDate = &d
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due return logs: %w", err)
	}
	return logs, nil
}

func queryLetterContacts(ctx context.Context, tx *sql.Tx, refs []string, licences map[string]models.LicenceContacts) error {
	query := `
		SELECT licence_ref, COALESCE(metadata->'contacts', '[]'::jsonb)
		FROM licence_document_headers
		WHERE licence_ref = ANY($1::text[])
	`
	rows, err := tx.QueryContext(ctx, query, pq.Array(refs))
	if err != nil {
		return fmt.Errorf("query licence contacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ref string
			raw []byte
		)
		if err := rows.Scan(&ref, &raw); err != nil {
			return fmt.Errorf("scan licence contacts: %w", err)
		}
		var contacts []models.Contact
		if err := json.Unmarshal(raw, &contacts); err != nil {
			return fmt.Errorf("decode contacts for licence %s: %w", ref, err)
		}
		lc := licences[ref]
		lc.Contacts = contacts
		licences[ref] = lc
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate licence contacts: %w", err)
	}
	return nil
}

func queryRegisteredUsers(ctx context.Context, tx *sql.Tx, refs []string, licences map[string]models.LicenceContacts) error {
	query := `
		SELECT ler.licence_ref, ler.role, le.name
		FROM licence_entity_roles ler
		JOIN licence_entities le ON le.id = ler.licence_entity_id
		WHERE ler.licence_ref = ANY($1::text[])
		  AND ler.role = ANY($2::text[])
		ORDER BY ler.licence_ref, ler.role, le.name
	`
	rows, err := tx.QueryContext(ctx, query, pq.Array(refs), pq.Array([]string{rolePrimaryUser, roleUserReturns}))
	if err != nil {
		return fmt.Errorf("query registered users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref, role, email string
		if err := rows.Scan(&ref, &role, &email); err != nil {
			return fmt.Errorf("scan registered user: %w", err)
		}
		lc := licences[ref]
		switch role {
		case rolePrimaryUser:
			if lc.PrimaryUser == "" {
				lc.PrimaryUser = email
			}
		case roleUserReturns:
			lc.ReturnsAgents = append(lc.ReturnsAgents, email)
		}
		licences[ref] = lc
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate registered users: %w", err)
	}
	return nil
}

// textArray binds a possibly nil slice as a non-null text[] so that
// cardinality and ANY behave.
func textArray(values []string) any {
	if values == nil {
		values = []string{}
	}
	return pq.Array(values)
}

func licenceRefs(logs []models.DueReturnLog) []string {
	seen := make(map[string]struct{}, len(logs))
	refs := make([]string, 0, len(logs))
	for _, log := range logs {
		if _, ok := seen[log.LicenceRef]; ok {
			continue
		}
		seen[log.LicenceRef] = struct{}{}
		refs = append(refs, log.LicenceRef)
	}
	return refs
}

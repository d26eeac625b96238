package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/tenant"
)

// VisitorRepo stores visitors, their account links and behavioral events.
type VisitorRepo struct{ db *sql.DB }

func NewVisitorRepo(db *sql.DB) *VisitorRepo { return &VisitorRepo{db: db} }

const visitorColumns = `v.id, v.name, v.whatsapp_number, v.device_uuid, v.created_at, v.updated_at`

func scanVisitor(row interface{ Scan(...interface{}) error }) (domain.Visitor, error) {
	var v domain.Visitor
	err := row.Scan(&v.ID, &v.Name, &v.WhatsAppNumber, &v.DeviceUUID, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (r *VisitorRepo) FindVisitorByDevice(ctx context.Context, deviceUUID uuid.UUID) (domain.Visitor, error) {
	v, err := scanVisitor(r.db.QueryRowContext(ctx,
		`SELECT `+visitorColumns+` FROM visitors v WHERE v.device_uuid = $1`, deviceUUID))
	if err != nil {
		return v, fmt.Errorf("find visitor: %w", notFound(err))
	}
	return v, nil
}

// GetVisitor returns the visitor only if it is linked to the tenant.
func (r *VisitorRepo) GetVisitor(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Visitor, error) {
	v, err := scanVisitor(r.db.QueryRowContext(ctx, `
		SELECT `+visitorColumns+`
		FROM visitors v JOIN account_visitors av ON av.visitor_id = v.id
		WHERE v.id = $1 AND av.account_id = $2`, id, tc.AccountID))
	if err != nil {
		return v, fmt.Errorf("get visitor: %w", notFound(err))
	}
	return v, nil
}

// CreateVisitor inserts the visitor and links it to the tenant.
func (r *VisitorRepo) CreateVisitor(ctx context.Context, tc tenant.Context, v *domain.Visitor) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO visitors (id, name, whatsapp_number, device_uuid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`, v.ID, v.Name, v.WhatsAppNumber, v.DeviceUUID).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create visitor: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_visitors (account_id, visitor_id, created_at) VALUES ($1, $2, NOW())
	`, tc.AccountID, v.ID); err != nil {
		return fmt.Errorf("link visitor: %w", err)
	}
	return tx.Commit()
}

// LinkVisitor adds the visitor to the tenant. linked is false when the
// link already existed.
func (r *VisitorRepo) LinkVisitor(ctx context.Context, tc tenant.Context, visitorID uuid.UUID) (linked bool, err error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO account_visitors (account_id, visitor_id, created_at) VALUES ($1, $2, NOW())
		ON CONFLICT (account_id, visitor_id) DO NOTHING
	`, tc.AccountID, visitorID)
	if err != nil {
		return false, fmt.Errorf("link visitor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *VisitorRepo) IsVisitorLinked(ctx context.Context, tc tenant.Context, visitorID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM account_visitors WHERE account_id = $1 AND visitor_id = $2)
	`, tc.AccountID, visitorID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check visitor link: %w", err)
	}
	return ok, nil
}

func (r *VisitorRepo) InsertEvent(ctx context.Context, e *domain.BehavioralEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO behavioral_events
			(id, account_id, visitor_id, browser, device, page_name, page_url, button_clicked,
			 latitude, longitude, location, timezone, time_stayed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		RETURNING created_at
	`, e.ID, e.AccountID, e.VisitorID, e.Browser, e.Device, e.PageName, e.PageURL, e.ButtonClicked,
		e.Latitude, e.Longitude, e.Location, e.Timezone, e.TimeStayed).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *VisitorRepo) DistinctPageNames(ctx context.Context, tc tenant.Context) ([]string, error) {
	return r.distinct(ctx, `
		SELECT DISTINCT page_name FROM behavioral_events
		WHERE account_id = $1 AND page_name <> '' ORDER BY page_name`, tc.AccountID)
}

func (r *VisitorRepo) DistinctButtons(ctx context.Context, tc tenant.Context) ([]string, error) {
	return r.distinct(ctx, `
		SELECT DISTINCT button_clicked FROM behavioral_events
		WHERE account_id = $1 AND button_clicked <> '' ORDER BY button_clicked`, tc.AccountID)
}

func (r *VisitorRepo) distinct(ctx context.Context, q string, accountID uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("distinct values: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

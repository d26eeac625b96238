package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/tenant"
)

// SegmentationRepo stores segmentations and their memberships. It also
// runs the compiled audience queries against behavioral_events.
type SegmentationRepo struct{ db *sql.DB }

func NewSegmentationRepo(db *sql.DB) *SegmentationRepo { return &SegmentationRepo{db: db} }

func (r *SegmentationRepo) CreateSegmentation(ctx context.Context, s *domain.Segmentation) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO segmentations (id, account_id, name, rql_query, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`, s.ID, s.AccountID, s.Name, s.Query).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create segmentation: %w", err)
	}
	return nil
}

func (r *SegmentationRepo) UpdateSegmentation(ctx context.Context, s *domain.Segmentation) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE segmentations SET name = $1, rql_query = $2, updated_at = NOW()
		WHERE id = $3 AND account_id = $4
		RETURNING created_at, updated_at
	`, s.Name, s.Query, s.ID, s.AccountID).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update segmentation: %w", notFound(err))
	}
	return nil
}

const segmentationColumns = `
	s.id, s.account_id, s.name, s.rql_query, s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM segment_memberships m WHERE m.segmentation_id = s.id)`

func scanSegmentation(row interface{ Scan(...interface{}) error }) (domain.Segmentation, error) {
	var s domain.Segmentation
	err := row.Scan(&s.ID, &s.AccountID, &s.Name, &s.Query, &s.CreatedAt, &s.UpdatedAt, &s.VisitorCount)
	return s, err
}

func (r *SegmentationRepo) GetSegmentation(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Segmentation, error) {
	s, err := scanSegmentation(r.db.QueryRowContext(ctx,
		`SELECT`+segmentationColumns+` FROM segmentations s WHERE s.id = $1 AND s.account_id = $2`,
		id, tc.AccountID))
	if err != nil {
		return domain.Segmentation{}, fmt.Errorf("get segmentation: %w", notFound(err))
	}
	return s, nil
}

func (r *SegmentationRepo) ListSegmentations(ctx context.Context, tc tenant.Context) ([]domain.Segmentation, error) {
	return r.list(ctx,
		`SELECT`+segmentationColumns+` FROM segmentations s WHERE s.account_id = $1 ORDER BY s.created_at DESC`,
		tc.AccountID)
}

// ListAllSegmentations returns every segmentation of every account. Only
// the periodic reconciler calls it.
func (r *SegmentationRepo) ListAllSegmentations(ctx context.Context) ([]domain.Segmentation, error) {
	return r.list(ctx, `
		SELECT id, account_id, name, rql_query, created_at, updated_at, 0
		FROM segmentations s ORDER BY account_id, created_at`)
}

func (r *SegmentationRepo) list(ctx context.Context, q string, args ...interface{}) ([]domain.Segmentation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list segmentations: %w", err)
	}
	defer rows.Close()

	var out []domain.Segmentation
	for rows.Next() {
		s, err := scanSegmentation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segmentation: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSegmentation removes the segmentation; memberships and campaigns
// go with it by cascade.
func (r *SegmentationRepo) DeleteSegmentation(ctx context.Context, tc tenant.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM segmentations WHERE id = $1 AND account_id = $2`, id, tc.AccountID)
	if err != nil {
		return fmt.Errorf("delete segmentation: %w", err)
	}
	return rowsAffected(res)
}

// SelectVisitorIDs runs a compiled audience query.
func (r *SegmentationRepo) SelectVisitorIDs(ctx context.Context, query string, args []interface{}) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan visitor id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertMemberships get-or-creates memberships in one statement. Rows
// that already exist are skipped by the unique constraint, so concurrent
// syncs never create the same membership twice and only genuinely new rows
// come back.
func (r *SegmentationRepo) InsertMemberships(ctx context.Context, segmentationID uuid.UUID, visitorIDs []uuid.UUID) ([]domain.SegmentMembership, error) {
	if len(visitorIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(visitorIDs))
	for i, v := range visitorIDs {
		ids[i] = v.String()
	}

	rows, err := r.db.QueryContext(ctx, `
		INSERT INTO segment_memberships (id, visitor_id, segmentation_id, created_at)
		SELECT gen_random_uuid(), v, $1, NOW()
		FROM unnest($2::uuid[]) AS v
		ON CONFLICT (visitor_id, segmentation_id) DO NOTHING
		RETURNING id, visitor_id, segmentation_id, created_at
	`, segmentationID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("insert memberships: %w", err)
	}
	defer rows.Close()

	var out []domain.SegmentMembership
	for rows.Next() {
		var m domain.SegmentMembership
		if err := rows.Scan(&m.ID, &m.VisitorID, &m.SegmentationID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SegmentationRepo) ListVisitorIDs(ctx context.Context, segmentationID uuid.UUID) ([]uuid.UUID, error) {
	return r.SelectVisitorIDs(ctx,
		`SELECT visitor_id FROM segment_memberships WHERE segmentation_id = $1 ORDER BY created_at`,
		[]interface{}{segmentationID})
}

// ListUnenrolled returns members whose head sends have not been scheduled
// yet, oldest first.
func (r *SegmentationRepo) ListUnenrolled(ctx context.Context, segmentationID uuid.UUID) ([]uuid.UUID, error) {
	return r.SelectVisitorIDs(ctx,
		`SELECT visitor_id FROM segment_memberships WHERE segmentation_id = $1 AND enrolled_at IS NULL ORDER BY created_at`,
		[]interface{}{segmentationID})
}

func (r *SegmentationRepo) MarkEnrolled(ctx context.Context, segmentationID uuid.UUID, visitorIDs []uuid.UUID) error {
	if len(visitorIDs) == 0 {
		return nil
	}
	ids := make([]string, len(visitorIDs))
	for i, v := range visitorIDs {
		ids[i] = v.String()
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE segment_memberships SET enrolled_at = NOW()
		WHERE segmentation_id = $1 AND visitor_id = ANY($2::uuid[]) AND enrolled_at IS NULL
	`, segmentationID, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark enrolled: %w", err)
	}
	return nil
}

func (r *SegmentationRepo) HasMember(ctx context.Context, segmentationID, visitorID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM segment_memberships WHERE segmentation_id = $1 AND visitor_id = $2)
	`, segmentationID, visitorID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

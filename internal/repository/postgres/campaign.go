package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/campaign"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/tenant"
)

// CampaignRepo stores campaigns and their message trees.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) CreateCampaign(ctx context.Context, c *domain.Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO campaigns (id, account_id, segmentation_id, name, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`, c.ID, c.AccountID, c.SegmentationID, c.Name, c.State).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

const campaignColumns = `id, account_id, segmentation_id, name, state, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (domain.Campaign, error) {
	var c domain.Campaign
	err := row.Scan(&c.ID, &c.AccountID, &c.SegmentationID, &c.Name, &c.State, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *CampaignRepo) GetCampaign(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 AND account_id = $2`, id, tc.AccountID))
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("get campaign: %w", notFound(err))
	}
	return c, nil
}

func (r *CampaignRepo) ListCampaigns(ctx context.Context, tc tenant.Context) ([]domain.Campaign, error) {
	return r.listCampaigns(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE account_id = $1 ORDER BY created_at DESC`,
		tc.AccountID)
}

func (r *CampaignRepo) ListActiveBySegmentation(ctx context.Context, tc tenant.Context, segmentationID uuid.UUID) ([]domain.Campaign, error) {
	return r.listCampaigns(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE account_id = $1 AND segmentation_id = $2 AND state = 'A'
		ORDER BY created_at`, tc.AccountID, segmentationID)
}

func (r *CampaignRepo) listCampaigns(ctx context.Context, q string, args ...interface{}) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) UpdateCampaignState(ctx context.Context, tc tenant.Context, id uuid.UUID, state domain.CampaignState) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET state = $1, updated_at = NOW()
		WHERE id = $2 AND account_id = $3
	`, state, id, tc.AccountID)
	if err != nil {
		return fmt.Errorf("update campaign state: %w", err)
	}
	return rowsAffected(res)
}

// CreateMessage inserts a node. The partial unique indexes on
// (parent_id, action) and on the head row turn racing writers into
// campaign.ErrDuplicateChild / campaign.ErrMultipleHeads.
func (r *CampaignRepo) CreateMessage(ctx context.Context, m *domain.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	params, err := marshalParams(m.Params)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO campaign_messages (id, campaign_id, parent_id, action, schedule, template, params, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`, m.ID, m.CampaignID, m.ParentID, m.Trigger, m.DelayMinutes, m.Template, params).Scan(&m.CreatedAt, &m.UpdatedAt)
	if isUniqueViolation(err) {
		if m.ParentID == nil {
			return campaign.ErrMultipleHeads
		}
		return campaign.ErrDuplicateChild
	}
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

const messageColumns = `m.id, m.campaign_id, m.parent_id, m.action, m.schedule, m.template, m.params, m.created_at, m.updated_at`

func scanMessage(row interface{ Scan(...interface{}) error }) (domain.Message, error) {
	var (
		m      domain.Message
		parent uuid.NullUUID
		params []byte
	)
	if err := row.Scan(&m.ID, &m.CampaignID, &parent, &m.Trigger, &m.DelayMinutes, &m.Template, &params, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return m, err
	}
	if parent.Valid {
		id := parent.UUID
		m.ParentID = &id
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &m.Params); err != nil {
			return m, fmt.Errorf("decode params: %w", err)
		}
	}
	if len(m.Params) == 0 {
		m.Params = nil
	}
	return m, nil
}

func (r *CampaignRepo) GetMessage(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM campaign_messages m JOIN campaigns c ON c.id = m.campaign_id
		WHERE m.id = $1 AND c.account_id = $2`, id, tc.AccountID))
	if err != nil {
		return domain.Message{}, fmt.Errorf("get message: %w", notFound(err))
	}
	return m, nil
}

func (r *CampaignRepo) ListByCampaign(ctx context.Context, tc tenant.Context, campaignID uuid.UUID) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM campaign_messages m JOIN campaigns c ON c.id = m.campaign_id
		WHERE m.campaign_id = $1 AND c.account_id = $2
		ORDER BY m.created_at`, campaignID, tc.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func marshalParams(p map[string]string) ([]byte, error) {
	if len(p) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	return b, nil
}

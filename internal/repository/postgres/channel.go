package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/tenant"
)

// ChannelRepo stores per-account channel credentials and the cached
// template list.
type ChannelRepo struct{ db *sql.DB }

func NewChannelRepo(db *sql.DB) *ChannelRepo { return &ChannelRepo{db: db} }

func (r *ChannelRepo) GetCredentials(ctx context.Context, tc tenant.Context) (domain.ChannelCredentials, error) {
	var c domain.ChannelCredentials
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, api_endpoint, api_key, connected, updated_at
		FROM channel_credentials WHERE account_id = $1
	`, tc.AccountID).Scan(&c.AccountID, &c.Endpoint, &c.APIKey, &c.Connected, &c.UpdatedAt)
	if err != nil {
		return c, fmt.Errorf("get credentials: %w", notFound(err))
	}
	return c, nil
}

// SaveCredentials upserts the account's row.
func (r *ChannelRepo) SaveCredentials(ctx context.Context, c *domain.ChannelCredentials) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO channel_credentials (account_id, api_endpoint, api_key, connected, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (account_id) DO UPDATE
		SET api_endpoint = EXCLUDED.api_endpoint, api_key = EXCLUDED.api_key,
		    connected = EXCLUDED.connected, updated_at = NOW()
		RETURNING updated_at
	`, c.AccountID, c.Endpoint, c.APIKey, c.Connected).Scan(&c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// ListConnectedAccounts returns every account whose last probe succeeded.
func (r *ChannelRepo) ListConnectedAccounts(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id FROM channel_credentials WHERE connected ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("list connected accounts: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ReplaceTemplates swaps the account's cached templates in one
// transaction.
func (r *ChannelRepo) ReplaceTemplates(ctx context.Context, tc tenant.Context, templates []domain.Template) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM channel_templates WHERE account_id = $1`, tc.AccountID); err != nil {
		return fmt.Errorf("flush templates: %w", err)
	}
	for _, t := range templates {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		raw := []byte(t.Raw)
		if len(raw) == 0 {
			raw = []byte("{}")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO channel_templates (id, account_id, name, template, created_at)
			VALUES ($1, $2, $3, $4, NOW())
		`, t.ID, tc.AccountID, t.Name, raw); err != nil {
			return fmt.Errorf("insert template %q: %w", t.Name, err)
		}
	}
	return tx.Commit()
}

func (r *ChannelRepo) ListTemplates(ctx context.Context, tc tenant.Context) ([]domain.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, name, template, created_at
		FROM channel_templates WHERE account_id = $1 ORDER BY name
	`, tc.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		var (
			t   domain.Template
			raw []byte
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Name, &raw, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.Raw = raw
		out = append(out, t)
	}
	return out, rows.Err()
}

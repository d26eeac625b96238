package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/delivery"
	"github.com/zntrlhub/engage/internal/domain"
)

// CorrelationRepo implements delivery.CorrelationStore.
type CorrelationRepo struct{ db *sql.DB }

func NewCorrelationRepo(db *sql.DB) *CorrelationRepo { return &CorrelationRepo{db: db} }

var _ delivery.CorrelationStore = (*CorrelationRepo)(nil)

func (r *CorrelationRepo) InsertCorrelation(ctx context.Context, c domain.DeliveryCorrelation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_correlations (id, account_id, external_id, message_id, visitor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.AccountID, c.ExternalID, c.MessageID, c.VisitorID, c.CreatedAt)
	if isUniqueViolation(err) {
		return delivery.ErrDuplicateCorrelation
	}
	if err != nil {
		return fmt.Errorf("insert correlation: %w", err)
	}
	return nil
}

func (r *CorrelationRepo) FindCorrelation(ctx context.Context, accountID uuid.UUID, externalID string) (domain.DeliveryCorrelation, error) {
	var c domain.DeliveryCorrelation
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, external_id, message_id, visitor_id, created_at
		FROM delivery_correlations
		WHERE account_id = $1 AND external_id = $2
	`, accountID, externalID).Scan(&c.ID, &c.AccountID, &c.ExternalID, &c.MessageID, &c.VisitorID, &c.CreatedAt)
	if err != nil {
		return c, fmt.Errorf("find correlation: %w", notFound(err))
	}
	return c, nil
}

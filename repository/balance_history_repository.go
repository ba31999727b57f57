package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"watchparty/database"
	"watchparty/domain/entities"
	"watchparty/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const balanceHistoryColumns = `id, discord_id, scope, balance_before, balance_after, change_amount,
		       transaction_type, transaction_metadata, related_id, created_at`

// BalanceHistoryRepository stores ledger mutations in PostgreSQL
type BalanceHistoryRepository struct {
	q queryable
}

// NewBalanceHistoryRepository creates a new balance history repository
func NewBalanceHistoryRepository(db *database.DB) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: db.Pool}
}

// Record creates a new balance history entry
func (r *BalanceHistoryRepository) Record(ctx context.Context, history *entities.BalanceHistory) error {
	if err := history.ValidateTransaction(); err != nil {
		return fmt.Errorf("invalid balance history for user %d: %w", history.DiscordID, err)
	}

	metadataJSON, err := json.Marshal(history.TransactionMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	query := `
		INSERT INTO balance_history
		(discord_id, scope, balance_before, balance_after, change_amount, transaction_type, transaction_metadata, related_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		history.DiscordID,
		history.Scope,
		history.BalanceBefore,
		history.BalanceAfter,
		history.ChangeAmount,
		history.TransactionType,
		metadataJSON,
		history.RelatedID,
	).Scan(&history.ID, &history.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record balance history for user %d: %w", history.DiscordID, err)
	}

	return nil
}

// GetByUser returns balance history for a user in a scope, newest first
func (r *BalanceHistoryRepository) GetByUser(ctx context.Context, discordID int64, scope string, limit int) ([]*entities.BalanceHistory, error) {
	query := `
		SELECT ` + balanceHistoryColumns + `
		FROM balance_history
		WHERE discord_id = $1 AND scope = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.q.Query(ctx, query, discordID, scope, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance history for user %d: %w", discordID, err)
	}
	return scanBalanceHistories(rows)
}

// GetByDateRange returns balance history of a user across all scopes within [from, to)
func (r *BalanceHistoryRepository) GetByDateRange(ctx context.Context, discordID int64, from, to time.Time) ([]*entities.BalanceHistory, error) {
	query := `
		SELECT ` + balanceHistoryColumns + `
		FROM balance_history
		WHERE discord_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.q.Query(ctx, query, discordID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance history for user %d in date range: %w", discordID, err)
	}
	return scanBalanceHistories(rows)
}

func scanBalanceHistories(rows pgx.Rows) ([]*entities.BalanceHistory, error) {
	defer rows.Close()

	histories := make([]*entities.BalanceHistory, 0)
	for rows.Next() {
		var history entities.BalanceHistory
		var metadataJSON []byte

		err := rows.Scan(
			&history.ID,
			&history.DiscordID,
			&history.Scope,
			&history.BalanceBefore,
			&history.BalanceAfter,
			&history.ChangeAmount,
			&history.TransactionType,
			&metadataJSON,
			&history.RelatedID,
			&history.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance history: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &history.TransactionMetadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
			}
		}

		histories = append(histories, &history)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balance history: %w", err)
	}
	return histories, nil
}

var _ interfaces.BalanceHistoryRepository = (*BalanceHistoryRepository)(nil)

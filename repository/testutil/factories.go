package testutil

import (
	"watchparty/domain/entities"
)

// CreateTestBalanceHistory creates a balance history entry for a wager stake of 100 points
func CreateTestBalanceHistory(discordID int64, scope string) *entities.BalanceHistory {
	return CreateTestBalanceHistoryWithAmounts(discordID, scope, 1000, 900, -100, entities.TransactionTypeWagerStake)
}

// CreateTestBalanceHistoryWithAmounts creates a balance history entry with explicit amounts
func CreateTestBalanceHistoryWithAmounts(discordID int64, scope string, before, after, change int64, transactionType entities.TransactionType) *entities.BalanceHistory {
	return &entities.BalanceHistory{
		DiscordID:       discordID,
		Scope:           scope,
		BalanceBefore:   before,
		BalanceAfter:    after,
		ChangeAmount:    change,
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
	}
}

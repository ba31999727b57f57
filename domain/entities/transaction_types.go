package entities

// TransactionType represents the type of balance change
type TransactionType string

const (
	// Wager transactions
	TransactionTypeWagerStake  TransactionType = "wager_stake"
	TransactionTypeWagerPayout TransactionType = "wager_payout"
	TransactionTypeWagerRefund TransactionType = "wager_refund"

	// Watch party transactions
	TransactionTypeJoinBonus TransactionType = "join_bonus"

	// Manual adjustments
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// IsWagerRelated returns true if the transaction belongs to a wager
func (tt TransactionType) IsWagerRelated() bool {
	return tt == TransactionTypeWagerStake ||
		tt == TransactionTypeWagerPayout ||
		tt == TransactionTypeWagerRefund
}

// IsCredit returns true if the transaction type adds points
func (tt TransactionType) IsCredit() bool {
	return tt != TransactionTypeWagerStake
}

// String returns the string representation of the transaction type
func (tt TransactionType) String() string {
	return string(tt)
}

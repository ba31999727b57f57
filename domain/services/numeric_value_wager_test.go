package services

import (
	"testing"

	"watchparty/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNumericWager(t *testing.T, env *testEnv, party *WatchParty, bounds NumericBounds) *NumericValueWager {
	t.Helper()
	w, err := NewNumericValueWager(party, TestAdminID, "Total kills?", TestVotingWindow, bounds)
	require.NoError(t, err)
	require.NoError(t, party.CreateWager(w))
	return w
}

func TestNumericValueWager_VoteValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		bounds  NumericBounds
		value   string
		wantErr bool
	}{
		{name: "decimal", value: "12.5"},
		{name: "padded", value: " 7 "},
		{name: "not a number", value: "lots", wantErr: true},
		{name: "NaN", value: "NaN", wantErr: true},
		{name: "infinity", value: "Inf", wantErr: true},
		{name: "integer required", bounds: NumericBounds{IsInteger: true}, value: "12.5", wantErr: true},
		{name: "integer accepted", bounds: NumericBounds{IsInteger: true}, value: "12"},
		{name: "below min", bounds: NumericBounds{Min: float(10)}, value: "9", wantErr: true},
		{name: "at min", bounds: NumericBounds{Min: float(10)}, value: "10"},
		{name: "above max", bounds: NumericBounds{Max: float(50)}, value: "50.5", wantErr: true},
		{name: "at max", bounds: NumericBounds{Max: float(50)}, value: "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(1)
			party := env.manualParty(t, "finals", true)
			env.fund(party, TestUser1ID)
			w := newNumericWager(t, env, party, tt.bounds)

			err := w.Vote(TestUser1ID, tt.value, 10)

			if tt.wantErr {
				requireKind(t, entities.ErrorKindValidation, err)
				assert.Equal(t, TestStartingBalance, env.balance(party, TestUser1ID))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TestStartingBalance-10, env.balance(party, TestUser1ID))
		})
	}
}

func TestNewNumericValueWager_RejectsInvertedBounds(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "finals", true)

	_, err := NewNumericValueWager(party, TestAdminID, "Kills?", TestVotingWindow, NumericBounds{Min: float(10), Max: float(5)})
	requireKind(t, entities.ErrorKindValidation, err)
}

func TestNumericValueWager_ExactMatchesSplitEqually(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "finals", true)
	env.fund(party, TestUser1ID, TestUser2ID)
	w := newNumericWager(t, env, party, NumericBounds{})

	require.NoError(t, w.Vote(TestUser1ID, "35", 50))
	require.NoError(t, w.Vote(TestUser2ID, "35.00001", 50))
	require.NoError(t, w.EndVoting())

	result, err := w.Resolve("35")
	require.NoError(t, err)

	assert.Equal(t, entities.SettlementMethodEqualSplit, result.Method)
	assert.Equal(t, int64(50), result.PayoutFor(TestUser1ID))
	assert.Equal(t, int64(50), result.PayoutFor(TestUser2ID))
	assert.Equal(t, TestStartingBalance, env.balance(party, TestUser1ID))
	assert.Equal(t, TestStartingBalance, env.balance(party, TestUser2ID))
}

func TestNumericValueWager_ExactMatchExcludesOthers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "finals", true)
	env.fund(party, TestUser1ID, TestUser2ID, TestUser3ID)
	w := newNumericWager(t, env, party, NumericBounds{})

	require.NoError(t, w.Vote(TestUser1ID, "35", 50))
	require.NoError(t, w.Vote(TestUser2ID, "34", 50))
	require.NoError(t, w.Vote(TestUser3ID, "35", 50))
	require.NoError(t, w.EndVoting())

	result, err := w.Resolve("35")
	require.NoError(t, err)

	assert.Equal(t, entities.SettlementMethodEqualSplit, result.Method)
	assert.Equal(t, int64(75), result.PayoutFor(TestUser1ID))
	assert.Equal(t, int64(0), result.PayoutFor(TestUser2ID))
	assert.Equal(t, int64(75), result.PayoutFor(TestUser3ID))
}

func TestNumericValueWager_ProximitySettlement(t *testing.T) {
	t.Parallel()
	env := newTestEnv(0)
	party := env.manualParty(t, "finals", true)
	env.fund(party, TestUser1ID, TestUser2ID, TestUser3ID, TestUser4ID)
	w := newNumericWager(t, env, party, NumericBounds{})

	require.NoError(t, w.Vote(TestUser1ID, "30", 50))
	require.NoError(t, w.Vote(TestUser2ID, "33", 50))
	require.NoError(t, w.Vote(TestUser3ID, "40", 50))
	require.NoError(t, w.Vote(TestUser4ID, "20", 50))
	require.NoError(t, w.EndVoting())

	result, err := w.Resolve("35")
	require.NoError(t, err)

	assert.Equal(t, entities.SettlementMethodProximity, result.Method)
	require.Len(t, result.Payouts, 2, "ceil(4 * 0.3) winners")

	// distances 5, 2, 5, 15; the tie at 5 keeps vote order; max distance is 15
	assert.Equal(t, TestUser2ID, result.Payouts[0].DiscordID)
	assert.Equal(t, TestUser1ID, result.Payouts[1].DiscordID)
	assert.Equal(t, int64(108), result.PayoutFor(TestUser2ID))
	assert.Equal(t, int64(91), result.PayoutFor(TestUser1ID))
	assert.Equal(t, int64(0), result.PayoutFor(TestUser3ID))
	assert.Equal(t, int64(0), result.PayoutFor(TestUser4ID))
	assert.Greater(t, result.PayoutFor(TestUser2ID), result.PayoutFor(TestUser1ID))
	assert.LessOrEqual(t, result.TotalPaid(), result.TotalPot)

	assert.Equal(t, TestStartingBalance-50+108, env.balance(party, TestUser2ID))
	assert.Equal(t, int64(1), env.ledger.Wins(TestUser2ID, party.Scope()))
	assert.Equal(t, int64(0), env.ledger.Wins(TestUser3ID, party.Scope()))

	// numeric wagers never grant tickets
	assert.Empty(t, party.Tickets(TestUser2ID))
}

func TestNumericValueWager_ResolveRejectsInvalidNumber(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "finals", true)
	w := newNumericWager(t, env, party, NumericBounds{})
	require.NoError(t, w.EndVoting())

	_, err := w.Resolve("about ten")
	requireKind(t, entities.ErrorKindValidation, err)
	assert.Equal(t, entities.WagerStatePending, w.State())
}

func TestNumericValueWager_ResolveWithoutVoters(t *testing.T) {
	t.Parallel()
	env := newTestEnv(1)
	party := env.manualParty(t, "finals", true)
	w := newNumericWager(t, env, party, NumericBounds{})
	require.NoError(t, w.EndVoting())

	result, err := w.Resolve("10")
	require.NoError(t, err)
	assert.True(t, result.Forfeited)
	assert.Empty(t, result.Payouts)
	assert.Equal(t, entities.WagerStateResolved, w.State())
}

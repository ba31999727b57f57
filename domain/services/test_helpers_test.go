package services

import (
	"testing"
	"time"

	"watchparty/domain/entities"
	"watchparty/domain/testhelpers"

	"github.com/stretchr/testify/require"
)

// Test constants for consistent test data
const (
	TestAdminID         = int64(999999)
	TestUser1ID         = int64(100)
	TestUser2ID         = int64(200)
	TestUser3ID         = int64(300)
	TestUser4ID         = int64(400)
	TestStartingBalance = int64(1000)
	TestVotingWindow    = 10 * time.Minute
)

var testEpoch = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

// testEnv wires a registry with recording collaborators and a fake clock
type testEnv struct {
	clock     *testhelpers.FakeClock
	ledger    *Ledger
	publisher *testhelpers.RecordingPublisher
	history   *testhelpers.RecordingHistory
	deps      PartyDependencies
	registry  *WatchPartyRegistry
}

func newTestEnv(random float64) *testEnv {
	env := &testEnv{
		clock:     testhelpers.NewFakeClock(testEpoch),
		publisher: &testhelpers.RecordingPublisher{},
		history:   &testhelpers.RecordingHistory{},
	}
	env.ledger = NewLedger(env.history, env.publisher)
	env.deps = PartyDependencies{
		Ledger:    env.ledger,
		Admins:    NewStaticAdminChecker([]int64{TestAdminID}),
		Random:    testhelpers.FixedRandom(random),
		Publisher: env.publisher,
		Clock:     env.clock.Now,
	}
	env.registry = NewWatchPartyRegistry(env.deps)
	return env
}

// manualParty creates a manual party created by the test admin
func (e *testEnv) manualParty(t *testing.T, name string, isPublic bool) *WatchParty {
	t.Helper()
	creator := TestAdminID
	party, err := e.registry.CreateManual(name, testEpoch, "League of Legends", isPublic, &creator)
	require.NoError(t, err)
	return party
}

// fund credits a starting balance to each user in the party's scope
func (e *testEnv) fund(party *WatchParty, users ...int64) {
	for _, id := range users {
		e.ledger.Credit(id, party.Scope(), TestStartingBalance, Reason{Type: entities.TransactionTypeAdjustment})
	}
}

func (e *testEnv) balance(party *WatchParty, user int64) int64 {
	return e.ledger.Balance(user, party.Scope())
}

func requireKind(t *testing.T, kind entities.ErrorKind, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, entities.ErrorKindOf(err), "unexpected error: %v", err)
}

func float(v float64) *float64 {
	return &v
}

func testMatch(id string, scheduled time.Time, bestOf int, status entities.MatchStatus) *entities.Match {
	return &entities.Match{
		ID:            id,
		Team1:         "T1",
		Team2:         "Gen.G",
		ScheduledTime: scheduled,
		Tournament:    "LCK",
		BestOf:        bestOf,
		Status:        status,
	}
}

package services

import (
	"strings"
	"time"

	"watchparty/domain/entities"
)

// MinRankingItems is the smallest item set a ranking wager accepts
const MinRankingItems = 2

// OrderedRankingWager pays perfect rankings equally, otherwise the closest rankings by Kendall tau distance
type OrderedRankingWager struct {
	baseWager
	items          []string
	userRanking    map[int64][]string
	correctRanking []string
}

// NewOrderedRankingWager creates a wager on the final order of a fixed item set
func NewOrderedRankingWager(party *WatchParty, creator int64, question string, votingWindow time.Duration, items []string, offersTicket bool) (*OrderedRankingWager, error) {
	cleaned, err := validateRankingItems(items)
	if err != nil {
		return nil, err
	}

	base, err := newBaseWager(party, entities.WagerKindOrderedRanking, creator, question, votingWindow, offersTicket)
	if err != nil {
		return nil, err
	}

	return &OrderedRankingWager{
		baseWager:   base,
		items:       cleaned,
		userRanking: make(map[int64][]string),
	}, nil
}

// rankingSeparators split a ranking vote into its items
const rankingSeparators = ",>"

func validateRankingItems(items []string) ([]string, error) {
	if len(items) < MinRankingItems {
		return nil, entities.NewValidationError("ranking wager needs at least %d items", MinRankingItems)
	}

	seen := make(map[string]bool, len(items))
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, entities.NewValidationError("items cannot be empty")
		}
		if strings.ContainsAny(item, rankingSeparators) {
			return nil, entities.NewValidationError("item %q cannot contain %q or %q", item, ",", ">")
		}
		key := strings.ToLower(item)
		if seen[key] {
			return nil, entities.NewValidationError("duplicate item: %s", item)
		}
		seen[key] = true
		cleaned = append(cleaned, item)
	}
	return cleaned, nil
}

// ParseRanking splits a ranking such as "A > B > C" or "A, B, C" into its items
func ParseRanking(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return strings.ContainsRune(rankingSeparators, r)
	})
	ranking := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			ranking = append(ranking, f)
		}
	}
	return ranking
}

// Items returns a copy of the items
func (w *OrderedRankingWager) Items() []string {
	return append([]string(nil), w.items...)
}

// Vote stakes points on a full ranking of the items
func (w *OrderedRankingWager) Vote(discordID int64, value string, points int64) error {
	return w.vote(w, discordID, value, points)
}

// Resolve settles against the correct ranking
func (w *OrderedRankingWager) Resolve(correct string) (*entities.SettlementResult, error) {
	return w.resolve(w, correct)
}

// Snapshot returns a read-only view of the wager
func (w *OrderedRankingWager) Snapshot() entities.WagerSummary {
	w.party.mu.Lock()
	defer w.party.mu.Unlock()
	return w.summaryLocked()
}

func (w *OrderedRankingWager) summaryLocked() entities.WagerSummary {
	return w.summary(w)
}

// validateRanking checks that ranking is a permutation of the items and returns it in canonical spelling
func (w *OrderedRankingWager) validateRanking(ranking []string) ([]string, error) {
	if len(ranking) != len(w.items) {
		return nil, entities.NewValidationError("ranking must contain exactly %d items, got %d", len(w.items), len(ranking))
	}

	canonical := make(map[string]string, len(w.items))
	for _, item := range w.items {
		canonical[strings.ToLower(item)] = item
	}

	used := make(map[string]bool, len(ranking))
	result := make([]string, 0, len(ranking))
	for _, entry := range ranking {
		key := strings.ToLower(strings.TrimSpace(entry))
		item, ok := canonical[key]
		if !ok || used[key] {
			return nil, entities.NewValidationError("ranking must contain each item exactly once: %s", strings.Join(w.items, ", "))
		}
		used[key] = true
		result = append(result, item)
	}
	return result, nil
}

func (w *OrderedRankingWager) parseVote(value string) (any, error) {
	return w.validateRanking(ParseRanking(value))
}

func (w *OrderedRankingWager) recordVote(discordID int64, parsed any) {
	w.userRanking[discordID] = parsed.([]string)
}

func (w *OrderedRankingWager) voteValue(discordID int64) string {
	return strings.Join(w.userRanking[discordID], " > ")
}

func (w *OrderedRankingWager) options() []string {
	return w.Items()
}

func rankingsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (w *OrderedRankingWager) settle(correct string) (*entities.SettlementResult, error) {
	ranking, err := w.validateRanking(ParseRanking(correct))
	if err != nil {
		return nil, err
	}
	w.correctRanking = ranking

	result := &entities.SettlementResult{
		Correct:  strings.Join(ranking, " > "),
		TotalPot: w.totalPotLocked(),
	}

	var perfect []int64
	distances := make([]voterDistance, 0, len(w.voteOrder))
	for _, discordID := range w.voteOrder {
		userRanking := w.userRanking[discordID]
		if rankingsEqual(userRanking, ranking) {
			perfect = append(perfect, discordID)
		}
		distances = append(distances, voterDistance{
			discordID: discordID,
			distance:  float64(kendallTauDistance(userRanking, ranking)),
		})
	}

	switch {
	case len(perfect) > 0:
		result.Method = entities.SettlementMethodEqualSplit
		result.Payouts = w.payEqualSplit(perfect, entities.TicketTypeOrderedRanking)
	case len(distances) == 0:
		result.Method = entities.SettlementMethodForfeit
		result.Forfeited = true
	default:
		n := len(w.items)
		maxDistance := float64(n * (n - 1) / 2)
		result.Method = entities.SettlementMethodKendallTau
		result.Payouts = w.payByDistance(distances, maxDistance, entities.TicketTypeOrderedRanking)
	}
	return result, nil
}

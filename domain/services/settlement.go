package services

import (
	"math"
	"sort"
)

// voterDistance is a voter's distance from the correct answer
type voterDistance struct {
	discordID int64
	distance  float64
}

// winnerCount returns ceil(participants * 30%) using integer arithmetic
func winnerCount(participants int) int {
	return (participants*WinnerFractionPercent + 99) / 100
}

// closestVoters sorts voters by ascending distance and keeps the closest share.
// Voters at equal distance keep their vote order.
func closestVoters(distances []voterDistance) []voterDistance {
	sorted := make([]voterDistance, len(distances))
	copy(sorted, distances)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].distance < sorted[j].distance
	})
	return sorted[:winnerCount(len(sorted))]
}

// maxObservedDistance returns the largest distance among all voters
func maxObservedDistance(distances []voterDistance) float64 {
	var largest float64
	for _, d := range distances {
		if d.distance > largest {
			largest = d.distance
		}
	}
	return largest
}

// weightedRewards splits pot among winners with weight 1/(1+d/maxDistance).
// Each reward is floored, so the sum may be less than pot.
func weightedRewards(winners []voterDistance, maxDistance float64, pot int64) []int64 {
	weights := make([]float64, len(winners))
	var total float64
	for i, w := range winners {
		normalized := 0.0
		if maxDistance > 0 {
			normalized = w.distance / maxDistance
		}
		weights[i] = 1 / (1 + normalized)
		total += weights[i]
	}

	rewards := make([]int64, len(winners))
	if total == 0 {
		return rewards
	}
	for i, weight := range weights {
		rewards[i] = int64(math.Floor(weight / total * float64(pot)))
	}
	return rewards
}

// kendallTauDistance counts item pairs ordered differently in ranking and correct.
// Both must be permutations of the same items.
func kendallTauDistance(ranking, correct []string) int {
	position := make(map[string]int, len(ranking))
	for i, item := range ranking {
		position[item] = i
	}

	distance := 0
	for i := 0; i < len(correct); i++ {
		for j := i + 1; j < len(correct); j++ {
			if position[correct[i]] > position[correct[j]] {
				distance++
			}
		}
	}
	return distance
}

package services

import (
	"math"
	"sort"
	"time"

	"github.com/vaforge/vaforge-engine/pkg/config"
	"github.com/vaforge/vaforge-engine/pkg/models"
)

// Priority boosts added on top of the decayed confidence. Facts about the
// business itself outrank market observations, and a user's own words
// (chat, manual entry) outrank inference from an analysis.
var (
	categoryBoost = map[models.InsightCategory]int{
		models.CategoryBusinessContext:     5,
		models.CategoryCompliance:          5,
		models.CategoryToolStack:           3,
		models.CategoryProcessOptimization: 2,
		models.CategoryCustomerMarket:      0,
		models.CategoryKnowledgeGap:        0,
	}
	sourceBoost = map[models.SourceType]int{
		models.SourceManual:   5,
		models.SourceChat:     2,
		models.SourceAnalysis: 0,
	}
)

// Priority label cut-offs on the priority score.
const (
	criticalPriorityScore = 95
	highPriorityScore     = 88
	mediumPriorityScore   = 80
)

// DecayConfidence scales confidence linearly from 1 at age 0 down to
// minRatio at maxAge and keeps it at the floor beyond that. Rounding keeps a
// freshly created event at its original confidence; the result never drops
// below minRatio*confidence rounded up.
func DecayConfidence(confidence int, age, maxAge time.Duration, minRatio float64) int {
	if age <= 0 || maxAge <= 0 {
		return confidence
	}
	progress := float64(age) / float64(maxAge)
	if progress > 1 {
		progress = 1
	}
	ratio := 1 - progress*(1-minRatio)
	if ratio < minRatio {
		ratio = minRatio
	}
	rounded := int(math.Round(float64(confidence) * ratio))
	return max(rounded, decayFloor(confidence, minRatio))
}

// decayFloor is ceil(minRatio*confidence), tolerant of float error so that an
// exact product such as 0.3*100 is not bumped to the next integer.
func decayFloor(confidence int, minRatio float64) int {
	return int(math.Ceil(float64(confidence)*minRatio - 1e-9))
}

// PriorityScore combines the decayed confidence with category and source boosts.
func PriorityScore(adjusted int, category models.InsightCategory, source models.SourceType) int {
	return adjusted + categoryBoost[category] + sourceBoost[source]
}

// LabelPriority buckets a priority score.
func LabelPriority(score int) models.PriorityLabel {
	switch {
	case score >= criticalPriorityScore:
		return models.PriorityCritical
	case score >= highPriorityScore:
		return models.PriorityHigh
	case score >= mediumPriorityScore:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// scoredEvent is a pending event with its decay and priority computed.
type scoredEvent struct {
	event    *models.LearningEvent
	adjusted int
	score    int
	label    models.PriorityLabel
}

// scoreEvents decays and ranks events, highest priority first. Ties go to the
// newer event.
func scoreEvents(events []*models.LearningEvent, now time.Time, cfg config.LearningConfig) []scoredEvent {
	scored := make([]scoredEvent, 0, len(events))
	for _, e := range events {
		adjusted := DecayConfidence(e.Confidence, now.Sub(e.CreatedAt), cfg.DecayMaxAge, cfg.MinConfidenceRatio)
		score := PriorityScore(adjusted, e.Category, e.SourceType)
		scored = append(scored, scoredEvent{
			event:    e,
			adjusted: adjusted,
			score:    score,
			label:    LabelPriority(score),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].event.CreatedAt.After(scored[j].event.CreatedAt)
	})
	return scored
}

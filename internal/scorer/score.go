// Package scorer assigns a deterministic relevance score in [0, 100] to a
// discovered competitor candidate and drops anything below the configured
// threshold.
package scorer

import (
	"strings"
	"time"

	"github.com/sells-group/competitor-intel/internal/config"
	"github.com/sells-group/competitor-intel/internal/model"
)

// Target is the discovery run's matching criteria the scorer compares
// candidates against.
type Target struct {
	Industries []string
	Regions    []string // ISO-3166 alpha-2
}

// Result holds a candidate alongside its score and component breakdown, for
// observability and for the "ties broken by insertion order" rule upstream.
type Result struct {
	Candidate       model.Candidate
	Score           int
	ComponentScores map[string]int
}

// Score computes the deterministic scoring formula for one candidate and
// reports its named component contributions.
func Score(c model.Candidate, target Target, now time.Time) Result {
	components := make(map[string]int, 5)

	components["industry"] = industryScore(c.Basic.Industry, target.Industries)
	components["geography"] = geographyScore(c.Basic.Country, target.Regions)
	components["completeness"] = completenessScore(c)
	components["founded_recency"] = foundedRecencyScore(c, now)
	components["funding"] = fundingScore(c)

	total := 0
	for _, v := range components {
		total += v
	}
	if total > 100 {
		total = 100
	}

	return Result{Candidate: c, Score: total, ComponentScores: components}
}

// FilterAndScore scores every candidate, preserving insertion order, and
// drops those below the configured relevance threshold.
func FilterAndScore(candidates []model.Candidate, target Target, cfg config.ScorerConfig, now time.Time) []Result {
	threshold := cfg.RelevanceThreshold
	if threshold <= 0 {
		threshold = 75
	}

	out := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		r := Score(c, target, now)
		if r.Score < threshold {
			continue
		}
		out = append(out, r)
	}
	return out
}

func industryScore(candidateIndustry string, targets []string) int {
	if candidateIndustry == "" {
		return 0
	}
	lower := strings.ToLower(candidateIndustry)
	for _, t := range targets {
		if t == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(t)) {
			return 30
		}
	}
	return 0
}

func geographyScore(candidateCountry string, targets []string) int {
	if candidateCountry == "" {
		return 0
	}
	upper := strings.ToUpper(candidateCountry)
	for _, t := range targets {
		if strings.EqualFold(t, upper) {
			return 25
		}
	}
	return 0
}

// completenessScore counts five fields (name, description, website, business
// model, value proposition) toward the 20-point completeness component.
func completenessScore(c model.Candidate) int {
	filled := 0
	const total = 5

	if c.Basic.Name != "" {
		filled++
	}
	if c.Basic.Description != "" {
		filled++
	}
	if c.Basic.Website != "" {
		filled++
	}
	if c.Enriched != nil && c.Enriched.BusinessModel != "" {
		filled++
	}
	if c.Enriched != nil && c.Enriched.ValueProp != "" {
		filled++
	}

	return roundInt(float64(filled) / float64(total) * 20)
}

func foundedRecencyScore(c model.Candidate, now time.Time) int {
	if c.Enriched == nil || c.Enriched.FoundedYear <= 0 {
		return 0
	}
	age := now.Year() - c.Enriched.FoundedYear
	switch {
	case age <= 3:
		return 15
	case age <= 5:
		return 10
	case age <= 10:
		return 5
	default:
		return 0
	}
}

func fundingScore(c model.Candidate) int {
	if c.Enriched == nil || c.Enriched.TotalFunding == nil {
		return 0
	}
	amount := *c.Enriched.TotalFunding
	switch {
	case amount >= 1_000_000:
		return 10
	case amount >= 100_000:
		return 5
	default:
		return 0
	}
}

// roundInt rounds to the nearest integer, half away from zero — the ladder
// inputs here are always non-negative so this matches round(x).
func roundInt(f float64) int {
	return int(f + 0.5)
}

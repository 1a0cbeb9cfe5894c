package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/competitor-intel/internal/model"
)

func TestBuild_NeobankFrancophoneAfrica(t *testing.T) {
	p := model.Project{
		Name:        "Sika",
		Description: "mobile-first challenger bank for francophone Africa",
	}
	got := Build(p)
	assert.Equal(t, []string{"neobank challenger bank mobile banking Africa startup"}, got)
}

func TestBuild_NeobankWestAfricaRegionVote(t *testing.T) {
	p := model.Project{
		Name:        "Sika",
		Description: "mobile-first challenger bank",
		Regions:     []string{"NG", "GH", "CI"},
	}
	got := Build(p)
	assert.GreaterOrEqual(t, len(got), 1)
	assert.LessOrEqual(t, len(got), 5)
	assert.Contains(t, got[0], "neobank")
	assert.Contains(t, got[0], "West Africa")
	assert.Contains(t, got[0], "startup")
}

func TestBuild_EmptyProjectFallsBack(t *testing.T) {
	got := Build(model.Project{})
	assert.Equal(t, []string{"startup company"}, got)
}

func TestBuild_NoVerticalUsesProjectName(t *testing.T) {
	p := model.Project{Name: "Acme Widgets"}
	got := Build(p)
	assert.Equal(t, []string{"Acme Widgets competitors"}, got)
}

func TestBuild_CapsAtFiveQueries(t *testing.T) {
	p := model.Project{
		Name:        "Sika",
		Description: "fintech payments",
		Keywords:    []string{"lending", "savings", "remittance"},
		Industries:  []string{"financial services"},
		Regions:     []string{"NG", "GH", "KE"},
	}
	got := Build(p)
	assert.LessOrEqual(t, len(got), 5)
	for _, q := range got {
		assert.NotEmpty(t, q)
	}
}

func TestBuild_EastAfricaMajority(t *testing.T) {
	p := model.Project{
		Description: "agritech for smallholder farmers",
		Regions:     []string{"KE", "TZ", "UG"},
	}
	got := Build(p)
	assert.Contains(t, got[0], "East Africa")
	assert.Contains(t, got[0], "agritech")
}

func TestBuild_B2BDetected(t *testing.T) {
	p := model.Project{Description: "b2b logistics platform for freight brokers"}
	got := Build(p)
	assert.Contains(t, got[0], "B2B")
	assert.Contains(t, got[0], "logistics")
}

func TestRegionName(t *testing.T) {
	assert.Equal(t, "Nigeria", RegionName("NG"))
	assert.Equal(t, "Nigeria", RegionName("ng"))
	assert.Equal(t, "XX", RegionName("XX"))
}

func TestDetectGeography_GuineaBissauDoesNotMisfireOnGuinea(t *testing.T) {
	geo := detectGeography("expanding into guinea-bissau markets", nil)
	assert.Equal(t, "Guinea-Bissau", geo)
}

// Package model holds the entities shared across the discovery pipeline:
// the external Organization/Project collaborators, the DiscoveryRun and
// Competitor records the pipeline owns, and the transient Candidate and
// QueueJob shapes that never leave the pipeline's process boundary.
package model

import "time"

// SubscriptionTier gates which enrichment extras a run is entitled to.
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierTrial   SubscriptionTier = "trial"
	TierPremium SubscriptionTier = "premium"
)

// RequestContext is resolved by the (out-of-scope) auth collaborator and
// passed down explicitly, never inferred from a hard-coded id.
type RequestContext struct {
	UserID         string
	OrganizationID string
	Tier           SubscriptionTier
}

// Organization is owned by an external collaborator; the pipeline only
// reads its subscription tier.
type Organization struct {
	ID   string
	Tier SubscriptionTier
}

// Project is owned by an external collaborator.
type Project struct {
	ID             string
	OrganizationID string
	Name           string
	Description    string
	Keywords       []string
	Industries     []string
	Regions        []string // ISO-3166 alpha-2
}

// RunStatus is the DiscoveryRun lifecycle. Transitions are monotonic:
// pending < searching < extracting < (completed | failed).
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunSearching  RunStatus = "searching"
	RunExtracting RunStatus = "extracting"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// rank orders statuses for the monotonic-transition check. completed and
// failed are terminal and mutually exclusive at the same rank.
var rank = map[RunStatus]int{
	RunPending:    0,
	RunSearching:  1,
	RunExtracting: 2,
	RunCompleted:  3,
	RunFailed:     3,
}

// CanTransition reports whether moving from `from` to `to` respects the
// partial order pending < searching < extracting < (completed | failed).
// A terminal status (completed/failed) accepts no further transition.
func CanTransition(from, to RunStatus) bool {
	if from == RunCompleted || from == RunFailed {
		return false
	}
	if from == to {
		return true
	}
	return rank[to] > rank[from]
}

// DiscoveryRun is the unit of work for the discovery pipeline.
type DiscoveryRun struct {
	ID            string
	ProjectID     string
	CreatorID     string
	Status        RunStatus
	Keywords      []string
	Regions       []string
	ResultsCount  int
	ErrorMessage  string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// DiscoveryContext is the payload handed to a worker job: everything the
// discovery pipeline needs that isn't re-derivable from the run id alone.
type DiscoveryContext struct {
	RunID       string
	ProjectID   string
	OrgID       string
	UserID      string
	ProjectName string
	Description string
	Keywords    []string
	Regions     []string
	Industries  []string
	MaxResults  int
	Tier        SubscriptionTier
}

// ValidationStatus is the human-review outcome for a persisted Competitor.
type ValidationStatus string

const (
	ValidationPending  ValidationStatus = ""
	ValidationApproved ValidationStatus = "approved"
	ValidationRejected ValidationStatus = "rejected"
)

// SocialLinks carries the discovered/synthesized social profile URLs.
type SocialLinks struct {
	LinkedIn  string `json:"linkedin,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

// SWOT is the AI-analysis competitive-positioning output.
type SWOT struct {
	Strengths     []string `json:"strengths,omitempty"`
	Weaknesses    []string `json:"weaknesses,omitempty"`
	Opportunities []string `json:"opportunities,omitempty"`
	Threats       []string `json:"threats,omitempty"`
}

// SocialMetrics holds the parsed follower/employee/like counts per network.
type SocialMetrics struct {
	LinkedInFollowers  *int64 `json:"linkedin_followers,omitempty"`
	LinkedInEmployees  *int64 `json:"linkedin_employees,omitempty"`
	TwitterFollowers   *int64 `json:"twitter_followers,omitempty"`
	FacebookLikes      *int64 `json:"facebook_likes,omitempty"`
}

// BasicCompetitor is what the extractor emits for plain discovery: a
// closed, typed variant rather than a loosely-shaped "any" payload.
type BasicCompetitor struct {
	Name        string
	Website     string
	Description string
	Industry    string
	Country     string // ISO-3166 alpha-2
}

// EnrichedCompetitor is the fully-enriched company shape the Enrichment
// Engine and the enriched extraction path produce: a second closed, typed
// variant alongside BasicCompetitor, rather than a loosely-shaped payload
// that grows fields ad hoc as new providers are added.
type EnrichedCompetitor struct {
	BasicCompetitor
	Tagline        string
	Headquarters   string
	Founders       []string
	FoundedYear    int
	FundingStage   string
	TotalFunding   *int64 // USD-equivalent
	Investors      []string
	Technologies   []string
	SocialLinks    SocialLinks
	SWOT           SWOT
	Metrics        SocialMetrics
	BusinessModel  string
	ValueProp      string
	GrowthSignals  []string
	RiskFactors    []string
	MarketPosition string

	DataSources        []string // subset of {website, website_crawl, linkedin, twitter, facebook, ai_analysis}
	DataCompleteness   int      // 0-100
	ConfidenceScore    int      // 0-100
	EnrichmentDate     time.Time
}

// Competitor is a persisted company record, attached to exactly one
// Organization and (for its first appearance) one DiscoveryRun.
type Competitor struct {
	ID               string
	OrganizationID   string
	SearchRunID      string
	Name             string
	Website          string
	Description      string
	Industry         string
	Country          string
	Score            int
	Enriched         EnrichedCompetitor
	ValidationStatus ValidationStatus
	ValidatedBy      string
	ValidatedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CompetitorPatch is the closed set of fields an enrichment update may
// merge into a stored Competitor; only non-nil fields are applied, and
// enrichment_date is always set.
type CompetitorPatch struct {
	Enriched *EnrichedCompetitor
}

// Candidate is an in-memory competitor in flight between the Extractor and
// Persistence Adapter, carrying a provisional score and dedup key.
type Candidate struct {
	Basic          BasicCompetitor
	Enriched       *EnrichedCompetitor // set once the Enrichment Engine has run
	Score          int
	NormalizedHost string
	Embedding      []float64 // set by the semantic dedup stage when an embedding generator is configured
}

// QueueJob is the Worker Runtime's internal unit of dispatch. It is never
// exposed outside the worker runtime; in this implementation it corresponds
// to a Temporal workflow execution (see internal/worker), where JobID is the
// workflow id, Payload its input, and Attempts/NextRunAt are realized by
// Temporal's own retry policy and scheduling rather than a separate table.
type QueueJob struct {
	JobID    string
	Kind     string // "discover"
	Payload  DiscoveryContext
	Attempts int
	NextRun  time.Time
}

// TokenUsage tracks LLM token consumption for cost attribution, mirroring
// the accounting the extractor and enrichment AI-analysis step produce.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

func (u *TokenUsage) Add(o TokenUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

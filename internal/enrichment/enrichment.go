// Package enrichment implements the Enrichment Engine: given a competitor's
// website (and whatever the extractor already knows about it), it builds the
// full EnrichedCompetitor profile via structured scraping, optional deep
// crawl, social-profile discovery and probing, and optional AI analysis.
package enrichment

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/competitor-intel/internal/config"
	"github.com/sells-group/competitor-intel/internal/cost"
	"github.com/sells-group/competitor-intel/internal/extractor"
	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/searchprovider"
	"github.com/sells-group/competitor-intel/pkg/anthropic"
	"github.com/sells-group/competitor-intel/pkg/perplexity"
)

// analysisMaxTokens budgets output for a single SWOT-shaped JSON object.
const analysisMaxTokens = 1200

// maxAnalysisChars caps the content fed into the AI-analysis prompt.
const maxAnalysisChars = 2000

// importantFieldCount is the denominator for data_completeness: the number
// of enrichment-only fields a fully-enriched profile fills in.
const importantFieldCount = 14

// allowedCrawlPaths is the deep-crawl allow-list; CrawlDepth caps how many
// of these are fetched.
var allowedCrawlPaths = []string{"/about", "/team", "/pricing", "/product", "/company"}

// Options controls which optional enrichment steps run.
type Options struct {
	IncludeSocialMedia bool
	IncludeAIAnalysis  bool
	CrawlDepth         int      // deep crawl runs only when > 1, then fetches up to this many allow-listed subpages
	ExcludePaths       []string // glob patterns skipped during deep crawl; defaults to blog/news/press/careers
}

// DefaultOptions mirrors the contract most callers want: both optional steps
// on, no deep crawl beyond the landing page.
func DefaultOptions() Options {
	return Options{IncludeSocialMedia: true, IncludeAIAnalysis: true, CrawlDepth: 1}
}

// Enricher builds EnrichedCompetitor profiles. aiClient is optional: a nil
// client skips structured re-extraction and AI analysis, leaving the
// non-AI parts of enrichment (social probing, merge, scoring) intact.
type Enricher struct {
	scraper          searchprovider.Scraper
	aiClient         anthropic.Client
	acfg             config.AnthropicConfig
	socialProbeLimit int
	calc             *cost.Calculator
	pplxClient       perplexity.Client
	pplxModel        string
}

// New builds an Enricher. socialProbeLimit bounds concurrent social-scrape
// probes; a value <= 0 defaults to 3 (one per supported network). calc may be
// nil, in which case AI call cost is not logged.
func New(scraper searchprovider.Scraper, aiClient anthropic.Client, acfg config.AnthropicConfig, socialProbeLimit int, calc *cost.Calculator) *Enricher {
	if socialProbeLimit <= 0 {
		socialProbeLimit = 3
	}
	return &Enricher{scraper: scraper, aiClient: aiClient, acfg: acfg, socialProbeLimit: socialProbeLimit, calc: calc}
}

// WithSocialLookup attaches a Perplexity client used to resolve a company's
// real social profile URLs before falling back to guessed slugs. Optional;
// an Enricher with no lookup client attached behaves exactly as before.
func (e *Enricher) WithSocialLookup(client perplexity.Client, model string) *Enricher {
	e.pplxClient = client
	e.pplxModel = model
	return e
}

// Enrich builds a full profile for website. initial carries whatever the
// extractor already determined about the company (may be nil). Individual
// step failures are logged and degrade the profile rather than aborting it;
// the only hard error is an empty website.
func (e *Enricher) Enrich(ctx context.Context, website string, initial *model.BasicCompetitor, opts Options) (*model.EnrichedCompetitor, error) {
	if strings.TrimSpace(website) == "" {
		return nil, eris.New("enrichment: website is required")
	}
	if opts.CrawlDepth <= 0 {
		opts.CrawlDepth = 1
	}

	var dataSources []string

	var rootContent string
	if e.scraper != nil {
		content, err := e.scraper.Scrape(ctx, website)
		if err != nil {
			zap.L().Warn("enrichment: root scrape failed, continuing with partial data",
				zap.String("website", website), zap.Error(err))
		} else {
			rootContent = content
			dataSources = append(dataSources, "website")
		}
	}

	var extracted model.EnrichedCompetitor
	haveExtracted := false
	if rootContent != "" && e.aiClient != nil {
		results, err := extractor.ExtractEnriched(ctx, e.aiClient, e.acfg,
			[]searchprovider.Result{{URL: website, Content: rootContent}}, extractor.Context{}, e.calc)
		if err != nil {
			zap.L().Warn("enrichment: structured extraction failed", zap.String("website", website), zap.Error(err))
		} else if len(results) > 0 {
			extracted = results[0]
			haveExtracted = true
		}
	}

	crawlContent, crawled := e.deepCrawl(ctx, website, opts.CrawlDepth, newPathMatcher(opts.ExcludePaths))
	if crawled {
		dataSources = append(dataSources, "website_crawl")
	}

	links := extracted.SocialLinks
	if crawlContent != "" {
		links = mergeLinks(extractor.ExtractSocialLinks(crawlContent), links)
	}

	name := extracted.Name
	if name == "" && initial != nil {
		name = initial.Name
	}
	if links == (model.SocialLinks{}) && name != "" {
		if looked, err := lookupSocialLinks(ctx, e.pplxClient, e.pplxModel, name, e.calc); err != nil {
			zap.L().Debug("enrichment: perplexity social lookup failed", zap.String("name", name), zap.Error(err))
		} else if looked != (model.SocialLinks{}) {
			links = looked
			dataSources = append(dataSources, "perplexity_lookup")
		}
		if links == (model.SocialLinks{}) {
			links = synthesizeSocialLinks(name)
		}
	}

	var metrics model.SocialMetrics
	if opts.IncludeSocialMedia {
		var socialSources []string
		metrics, socialSources = e.probeSocial(ctx, links)
		dataSources = append(dataSources, socialSources...)
	}

	var (
		swot                     model.SWOT
		marketPosition           string
		growthSignals, riskFactors []string
	)
	if opts.IncludeAIAnalysis {
		analysisContent := strings.TrimSpace(rootContent + "\n\n" + crawlContent)
		var ok bool
		swot, marketPosition, growthSignals, riskFactors, ok = e.analyze(ctx, name, analysisContent)
		if ok {
			dataSources = append(dataSources, "ai_analysis")
		} else {
			industry := extracted.Industry
			if industry == "" && initial != nil {
				industry = initial.Industry
			}
			swot, marketPosition, growthSignals, riskFactors = fallbackAnalysis(industry, extracted.FundingStage, extracted.Technologies, extracted.BusinessModel, extracted.ValueProp)
			dataSources = append(dataSources, "fallback_analysis")
		}
	}

	merged := mergeCompetitor(website, initial, extracted, haveExtracted, links, swot, marketPosition, growthSignals, riskFactors, metrics)
	merged.DataSources = dataSources
	merged.DataCompleteness = completeness(merged)
	merged.ConfidenceScore = confidence(merged, len(dataSources))
	merged.EnrichmentDate = time.Now().UTC()

	return &merged, nil
}

// deepCrawl fetches up to depth allow-listed subpages concurrently and
// concatenates their content as additional context for link/analysis steps.
// depth <= 1 (no deep crawl requested) or a nil scraper skip the step. A
// path already excluded by matcher (e.g. a caller-supplied blog/careers
// exclusion) is skipped before the fetch, not merely filtered afterward.
func (e *Enricher) deepCrawl(ctx context.Context, base string, depth int, matcher *pathMatcher) (string, bool) {
	if depth <= 1 || e.scraper == nil {
		return "", false
	}

	paths := allowedCrawlPaths
	if depth < len(paths) {
		paths = paths[:depth]
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", false
	}

	var (
		mu     sync.Mutex
		chunks []string
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range paths {
		rel, err := url.Parse(p)
		if err != nil {
			continue
		}
		target := u.ResolveReference(rel).String()
		if matcher.excluded(target) {
			continue
		}
		g.Go(func() error {
			content, err := e.scraper.Scrape(gctx, target)
			if err != nil || content == "" {
				return nil
			}
			mu.Lock()
			chunks = append(chunks, content)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(chunks) == 0 {
		return "", false
	}
	return strings.Join(chunks, "\n\n"), true
}

type socialProbe struct {
	network string
	url     string
	apply   func(content string, m *model.SocialMetrics)
}

// probeSocial scrapes each known social link concurrently (bounded to
// socialProbeLimit, naturally at most 3: LinkedIn, Twitter, Facebook are
// the only networks model.SocialMetrics tracks) and parses locale-aware
// follower/employee/like counts. A probe failure is logged and skipped.
func (e *Enricher) probeSocial(ctx context.Context, links model.SocialLinks) (model.SocialMetrics, []string) {
	var probes []socialProbe
	if links.LinkedIn != "" {
		probes = append(probes, socialProbe{"linkedin", links.LinkedIn, func(content string, m *model.SocialMetrics) {
			if v := parseCount(firstMatch(followerRe, content)); v != nil {
				m.LinkedInFollowers = v
			}
			if v := parseCount(firstMatch(employeeRe, content)); v != nil {
				m.LinkedInEmployees = v
			}
		}})
	}
	if links.Twitter != "" {
		probes = append(probes, socialProbe{"twitter", links.Twitter, func(content string, m *model.SocialMetrics) {
			if v := parseCount(firstMatch(followerRe, content)); v != nil {
				m.TwitterFollowers = v
			}
		}})
	}
	if links.Facebook != "" {
		probes = append(probes, socialProbe{"facebook", links.Facebook, func(content string, m *model.SocialMetrics) {
			if v := parseCount(firstMatch(likeRe, content)); v != nil {
				m.FacebookLikes = v
			}
		}})
	}
	if len(probes) == 0 || e.scraper == nil {
		return model.SocialMetrics{}, nil
	}

	var (
		mu      sync.Mutex
		metrics model.SocialMetrics
		sources []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.socialProbeLimit)
	for _, p := range probes {
		g.Go(func() error {
			content, err := e.scraper.Scrape(gctx, p.url)
			if err != nil || content == "" {
				zap.L().Debug("enrichment: social probe failed", zap.String("network", p.network), zap.Error(err))
				return nil
			}
			mu.Lock()
			p.apply(content, &metrics)
			sources = append(sources, p.network)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(sources)
	return metrics, sources
}

var (
	followerRe = regexp.MustCompile(`(?i)([\d.,]+\s*[KMB]?)\s*(?:followers|abonn[ée]s)`)
	employeeRe = regexp.MustCompile(`(?i)([\d.,]+\s*[KMB]?)\s*employees`)
	likeRe     = regexp.MustCompile(`(?i)([\d.,]+\s*[KMB]?)\s*(?:likes|j'aime)`)
)

func firstMatch(re *regexp.Regexp, content string) string {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return m[1]
}

// parseCount parses "12,400", "3.2K", "1.1M" style counts into an int64.
func parseCount(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	suffix := byte(0)
	if last := s[len(s)-1]; last == 'K' || last == 'M' || last == 'B' {
		suffix = last
		s = strings.TrimSpace(s[:len(s)-1])
	}
	s = strings.ReplaceAll(s, ",", "")
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	switch suffix {
	case 'K':
		val *= 1e3
	case 'M':
		val *= 1e6
	case 'B':
		val *= 1e9
	}
	out := int64(math.Round(val))
	return &out
}

const analysisSystemPrompt = `You are a competitive intelligence analyst. Given the company content below, respond with ONLY strict JSON, no prose, no markdown fences, of the shape:
{"competitive_analysis":{"strengths":[string],"weaknesses":[string],"opportunities":[string],"threats":[string]},"market_positioning":string,"growth_signals":[string],"risk_factors":[string]}`

type analysisResult struct {
	CompetitiveAnalysis struct {
		Strengths     []string `json:"strengths"`
		Weaknesses    []string `json:"weaknesses"`
		Opportunities []string `json:"opportunities"`
		Threats       []string `json:"threats"`
	} `json:"competitive_analysis"`
	MarketPositioning string   `json:"market_positioning"`
	GrowthSignals     []string `json:"growth_signals"`
	RiskFactors       []string `json:"risk_factors"`
}

// analyze runs the AI competitive-positioning step. A missing client, empty
// content, or any failure along the way yields ok=false rather than an
// error: AI analysis is an optional enrichment signal, never a hard gate.
func (e *Enricher) analyze(ctx context.Context, name, content string) (model.SWOT, string, []string, []string, bool) {
	if e.aiClient == nil || strings.TrimSpace(content) == "" {
		return model.SWOT{}, "", nil, nil, false
	}
	if len(content) > maxAnalysisChars {
		content = content[:maxAnalysisChars]
	}

	temp := e.acfg.Temperature
	if temp > 0.3 {
		temp = 0.3
	}

	prompt := analysisSystemPrompt + "\n\nCompany: " + name + "\n\nContent:\n" + content
	resp, err := e.aiClient.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.acfg.AnalysisModel,
		MaxTokens:   analysisMaxTokens,
		Temperature: &temp,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		zap.L().Warn("enrichment: ai analysis failed", zap.Error(err))
		return model.SWOT{}, "", nil, nil, false
	}
	if e.calc != nil {
		usage := resp.Usage
		amount := e.calc.Claude(e.acfg.AnalysisModel, false, int(usage.InputTokens), int(usage.OutputTokens), int(usage.CacheCreationInputTokens), int(usage.CacheReadInputTokens))
		zap.L().Info("cost attribution",
			zap.String("model", e.acfg.AnalysisModel),
			zap.String("phase", "enrichment_analysis"),
			zap.Float64("estimated_cost_usd", amount),
		)
	}

	var parsed analysisResult
	if perr := parseObject(textOf(resp), &parsed); perr != nil {
		zap.L().Warn("enrichment: failed to parse ai analysis response", zap.Error(perr))
		return model.SWOT{}, "", nil, nil, false
	}

	swot := model.SWOT{
		Strengths:     parsed.CompetitiveAnalysis.Strengths,
		Weaknesses:    parsed.CompetitiveAnalysis.Weaknesses,
		Opportunities: parsed.CompetitiveAnalysis.Opportunities,
		Threats:       parsed.CompetitiveAnalysis.Threats,
	}
	return swot, parsed.MarketPositioning, parsed.GrowthSignals, parsed.RiskFactors, true
}

// fallbackAnalysis derives a minimal SWOT/positioning from fields already on
// hand when the AI analysis step is unavailable or fails, so a profile never
// ships with the competitive-analysis fields simply empty.
func fallbackAnalysis(industry, fundingStage string, technologies []string, businessModel, valueProp string) (model.SWOT, string, []string, []string) {
	var swot model.SWOT
	var growthSignals, riskFactors []string

	if businessModel != "" {
		swot.Strengths = append(swot.Strengths, "Established "+businessModel+" business model")
	}
	if len(technologies) > 0 {
		swot.Strengths = append(swot.Strengths, "Uses "+strings.Join(technologies, ", "))
	}
	if valueProp == "" {
		swot.Weaknesses = append(swot.Weaknesses, "No clearly stated value proposition found")
	}
	if industry != "" {
		swot.Opportunities = append(swot.Opportunities, "Operates in "+industry)
	}
	if fundingStage != "" {
		swot.Threats = append(swot.Threats, "Funded competitor at "+fundingStage+" stage")
		growthSignals = append(growthSignals, fundingStage+" funding round")
	} else {
		riskFactors = append(riskFactors, "No disclosed funding, limited growth visibility")
	}

	marketPosition := "insufficient data for AI-derived positioning"
	if industry != "" {
		marketPosition = "Participant in " + industry
		if fundingStage != "" {
			marketPosition += " at " + fundingStage + " stage"
		}
	}

	return swot, marketPosition, growthSignals, riskFactors
}

func parseObject(text string, dst any) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return eris.New("enrichment: no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), dst); err != nil {
		return eris.Wrap(err, "enrichment: parse analysis response")
	}
	return nil
}

func textOf(resp *anthropic.MessageResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// mergeLinks merges a over b, preferring non-empty fields from a (regex- or
// crawl-derived links) over b (model-reported links). Mirrors the same
// precedence the extractor applies to its own single-page links.
func mergeLinks(a, b model.SocialLinks) model.SocialLinks {
	out := b
	if a.LinkedIn != "" {
		out.LinkedIn = a.LinkedIn
	}
	if a.Twitter != "" {
		out.Twitter = a.Twitter
	}
	if a.Facebook != "" {
		out.Facebook = a.Facebook
	}
	if a.Instagram != "" {
		out.Instagram = a.Instagram
	}
	return out
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(name), "")
}

// synthesizeSocialLinks builds plausible profile URLs from the company name
// when no links were discovered by extraction or regex. These are
// best-effort guesses the caller should treat as unverified.
func synthesizeSocialLinks(name string) model.SocialLinks {
	slug := slugify(name)
	if slug == "" {
		return model.SocialLinks{}
	}
	return model.SocialLinks{
		LinkedIn: "https://linkedin.com/company/" + slug,
		Twitter:  "https://twitter.com/" + slug,
		Facebook: "https://facebook.com/" + slug,
	}
}

// mergeCompetitor applies field precedence enrichment > initial > URL-derived
// fallback, per company name/description/industry/country, while the
// enrichment-only fields (tagline, funding, etc.) always come from the
// structured extraction when it ran.
func mergeCompetitor(website string, initial *model.BasicCompetitor, extracted model.EnrichedCompetitor, haveExtracted bool, links model.SocialLinks, swot model.SWOT, marketPosition string, growthSignals, riskFactors []string, metrics model.SocialMetrics) model.EnrichedCompetitor {
	var out model.EnrichedCompetitor

	if haveExtracted {
		out.BasicCompetitor = extracted.BasicCompetitor
	} else if initial != nil {
		out.BasicCompetitor = *initial
	}
	out.Website = website

	if out.Name == "" && initial != nil {
		out.Name = initial.Name
	}
	if out.Name == "" {
		out.Name = domainFallbackName(website)
	}
	if out.Description == "" && initial != nil {
		out.Description = initial.Description
	}
	if out.Industry == "" && initial != nil {
		out.Industry = initial.Industry
	}
	if out.Country == "" && initial != nil {
		out.Country = initial.Country
	}

	if haveExtracted {
		out.Tagline = extracted.Tagline
		out.Headquarters = extracted.Headquarters
		out.Founders = extracted.Founders
		out.FoundedYear = extracted.FoundedYear
		out.FundingStage = extracted.FundingStage
		out.TotalFunding = extracted.TotalFunding
		out.Investors = extracted.Investors
		out.Technologies = extracted.Technologies
		out.BusinessModel = extracted.BusinessModel
		out.ValueProp = extracted.ValueProp
	}

	out.SocialLinks = links
	out.SWOT = swot
	out.Metrics = metrics
	out.MarketPosition = marketPosition
	out.GrowthSignals = growthSignals
	out.RiskFactors = riskFactors

	return out
}

// domainFallbackName derives a display name from the website host when
// neither extraction nor the caller's initial record supplied one.
func domainFallbackName(website string) string {
	host := website
	if u, err := url.Parse(website); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if dot := strings.Index(host, "."); dot > 0 {
		host = host[:dot]
	}
	if host == "" {
		return ""
	}
	return strings.ToUpper(host[:1]) + host[1:]
}

// completeness computes data_completeness: the percentage of
// importantFieldCount enrichment fields that are non-empty. Arrays/objects
// count as filled iff non-empty/non-zero.
func completeness(c model.EnrichedCompetitor) int {
	filled := 0
	fields := []bool{
		c.Tagline != "",
		c.Headquarters != "",
		len(c.Founders) > 0,
		c.FoundedYear > 0,
		c.FundingStage != "",
		c.TotalFunding != nil,
		len(c.Investors) > 0,
		len(c.Technologies) > 0,
		c.SocialLinks != (model.SocialLinks{}),
		c.BusinessModel != "",
		c.ValueProp != "",
		len(c.SWOT.Strengths)+len(c.SWOT.Weaknesses)+len(c.SWOT.Opportunities)+len(c.SWOT.Threats) > 0,
		c.Metrics != (model.SocialMetrics{}),
		c.MarketPosition != "",
	}
	for _, f := range fields {
		if f {
			filled++
		}
	}
	return int(math.Round(float64(filled) / float64(importantFieldCount) * 100))
}

// confidence computes confidence_score: up to 40 points from data source
// count, up to 30 from completeness, and fixed bonuses for the signals most
// predictive of a high-quality profile.
func confidence(c model.EnrichedCompetitor, sourceCount int) int {
	score := sourceCount * 10
	if score > 40 {
		score = 40
	}
	score += int(math.Round(float64(c.DataCompleteness) * 0.3))
	if c.Website != "" {
		score += 5
	}
	if c.SocialLinks.LinkedIn != "" {
		score += 10
	}
	if c.FundingStage != "" {
		score += 5
	}
	if len(c.Founders) > 0 {
		score += 5
	}
	if len(c.Technologies) > 0 {
		score += 5
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

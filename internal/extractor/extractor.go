// Package extractor turns a batch of search results into structured
// competitor candidates via low-temperature model calls, one per chunk of
// search results, sent either one by one or through the Message Batches API.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-intel/internal/config"
	"github.com/sells-group/competitor-intel/internal/cost"
	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/internal/searchprovider"
	"github.com/sells-group/competitor-intel/pkg/anthropic"
)

// maxInputResults bounds the number of search results fed into a single
// extraction call, keeping the prompt within budget.
const maxInputResults = 15

// maxContentChars is the per-source content slice injected into the prompt.
const maxContentChars = 1500

// extractMaxTokens budgets output for roughly 10 records.
const extractMaxTokens = 4000

// Context carries the discovery run's targeting parameters into the
// extraction prompt; distinct from model.DiscoveryContext, which also
// carries run/org plumbing the extractor has no use for.
type Context struct {
	Keywords []string
	Regions  []string
	Industry string
}

const basicSystemPrompt = `You are a research analyst identifying companies from web search results.
Extract companies mentioned as direct subjects of a page, or listed within "Top N" / listicle articles.
Skip generic news articles or directory pages unless the page itself is about one specific company.
Respond with ONLY a strict JSON array, no prose, no markdown fences.
Each element: {"name": string, "website": string, "description": string, "industry": string, "country": string (ISO-3166 alpha-2)}.
Omit a candidate entirely if you cannot determine both its name and website.`

const enrichedSystemPrompt = `You are a research analyst building a detailed competitive profile from web content.
Respond with ONLY a strict JSON array, no prose, no markdown fences.
Each element: {"name": string, "website": string, "description": string, "industry": string, "country": string,
"tagline": string, "headquarters": string, "founders": [string], "founded_year": int, "funding_stage": string,
"total_funding": string, "investors": [string], "technologies": [string], "linkedin": string, "twitter": string,
"facebook": string, "instagram": string, "business_model": string, "value_proposition": string}.
Omit a candidate entirely if you cannot determine both its name and website.`

// Extract runs plain discovery extraction over all results, chunked into
// calls of at most maxInputResults each. A run with few chunks (at or below
// cfg.SmallBatchThreshold) issues one CreateMessage per chunk sequentially;
// a run with more chunks submits them together through the Anthropic Message
// Batches API (roughly half the per-token cost, traded for asynchronous
// completion), grouped into CreateBatch calls of at most cfg.MaxBatchSize
// chunks each. calc may be nil, in which case no cost is logged.
func Extract(ctx context.Context, client anthropic.Client, cfg config.AnthropicConfig, results []searchprovider.Result, ectx Context, calc *cost.Calculator) ([]model.BasicCompetitor, error) {
	if len(results) == 0 {
		return nil, nil
	}
	chunks := chunkResults(results, maxInputResults)

	threshold := cfg.SmallBatchThreshold
	if threshold <= 0 {
		threshold = 3
	}

	var raw []rawCandidate
	var err error
	if len(chunks) <= threshold {
		raw, err = extractSequential(ctx, client, cfg, chunks, ectx, calc)
	} else {
		raw, err = extractBatched(ctx, client, cfg, chunks, ectx, calc)
	}
	if err != nil {
		return nil, err
	}

	out := make([]model.BasicCompetitor, 0, len(raw))
	seen := make(map[string]bool)
	for _, c := range raw {
		bc, ok := c.toBasic()
		if !ok {
			continue
		}
		key := normalizedHost(bc.Website)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, bc)
	}
	return out, nil
}

// chunkResults splits results into groups of at most size, preserving order.
func chunkResults(results []searchprovider.Result, size int) [][]searchprovider.Result {
	if size <= 0 {
		size = maxInputResults
	}
	var chunks [][]searchprovider.Result
	for i := 0; i < len(results); i += size {
		end := i + size
		if end > len(results) {
			end = len(results)
		}
		chunks = append(chunks, results[i:end])
	}
	return chunks
}

// extractSequential issues one CreateMessage per chunk and concatenates the
// parsed candidates. A chunk that fails to parse is logged and skipped; a
// transport error aborts the whole extraction, matching the single-call
// behavior this generalizes.
func extractSequential(ctx context.Context, client anthropic.Client, cfg config.AnthropicConfig, chunks [][]searchprovider.Result, ectx Context, calc *cost.Calculator) ([]rawCandidate, error) {
	temp := cfg.Temperature
	if temp > 0.3 {
		temp = 0.3
	}

	var out []rawCandidate
	for _, chunk := range chunks {
		resp, err := client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       cfg.ExtractModel,
			MaxTokens:   extractMaxTokens,
			System:      anthropic.BuildCachedSystemBlocks(basicSystemPrompt),
			Temperature: &temp,
			Messages:    []anthropic.Message{{Role: "user", Content: buildUserContent(chunk, ectx)}},
		})
		if err != nil {
			return nil, eris.Wrap(err, "extractor: create message")
		}
		logCost(calc, cfg.ExtractModel, "extract", false, resp)

		var raw []rawCandidate
		if perr := parseArray(textOf(resp), &raw); perr != nil {
			zap.L().Warn("extractor: failed to parse extraction response", zap.Error(perr))
			continue
		}
		out = append(out, raw...)
	}
	return out, nil
}

// extractBatched submits chunks through the Message Batches API in groups of
// at most cfg.MaxBatchSize, polling each group to completion before moving
// to the next. A failed item within a group is logged and skipped rather
// than failing the run; a transport error creating, polling, or reading a
// batch aborts the whole extraction.
func extractBatched(ctx context.Context, client anthropic.Client, cfg config.AnthropicConfig, chunks [][]searchprovider.Result, ectx Context, calc *cost.Calculator) ([]rawCandidate, error) {
	temp := cfg.Temperature
	if temp > 0.3 {
		temp = 0.3
	}

	maxBatchSize := cfg.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = 100
	}

	systemBlocks := anthropic.BuildCachedSystemBlocks(basicSystemPrompt)

	// Prime the cache with one sequential request before the batch items
	// land: batch requests are processed asynchronously and can't build the
	// cache themselves, so without this every item in the batch would pay
	// full price for the system instructions.
	if _, err := anthropic.PrimerRequest(ctx, client, anthropic.MessageRequest{
		Model:       cfg.ExtractModel,
		MaxTokens:   1,
		System:      systemBlocks,
		Temperature: &temp,
		Messages:    []anthropic.Message{{Role: "user", Content: "Acknowledge."}},
	}); err != nil {
		zap.L().Warn("extractor: cache primer request failed, batch items will not hit a warm cache", zap.Error(err))
	}

	var out []rawCandidate
	for start := 0; start < len(chunks); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		group := chunks[start:end]

		items := make([]anthropic.BatchRequestItem, len(group))
		for i, chunk := range group {
			items[i] = anthropic.BatchRequestItem{
				CustomID: fmt.Sprintf("chunk-%d", start+i),
				Params: anthropic.MessageRequest{
					Model:       cfg.ExtractModel,
					MaxTokens:   extractMaxTokens,
					System:      systemBlocks,
					Temperature: &temp,
					Messages:    []anthropic.Message{{Role: "user", Content: buildUserContent(chunk, ectx)}},
				},
			}
		}

		batch, err := client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
		if err != nil {
			return nil, eris.Wrap(err, "extractor: create batch")
		}
		if _, err := anthropic.PollBatch(ctx, client, batch.ID); err != nil {
			return nil, eris.Wrap(err, "extractor: poll batch")
		}

		iter, err := client.GetBatchResults(ctx, batch.ID)
		if err != nil {
			return nil, eris.Wrap(err, "extractor: get batch results")
		}
		result, err := anthropic.CollectBatchResultsDetailed(iter)
		if err != nil {
			return nil, eris.Wrap(err, "extractor: collect batch results")
		}

		for _, msg := range result.Succeeded {
			logCost(calc, cfg.ExtractModel, "extract_batch", true, msg)
			var raw []rawCandidate
			if perr := parseArray(textOf(msg), &raw); perr != nil {
				zap.L().Warn("extractor: failed to parse batched extraction response", zap.Error(perr))
				continue
			}
			out = append(out, raw...)
		}
		if len(result.Failures) > 0 {
			zap.L().Warn("extractor: batch had failed items", zap.Int("failed", len(result.Failures)))
		}
	}
	return out, nil
}

// ExtractEnriched runs the extended-schema extraction variant used by the
// enrichment engine, merging deterministic regex-derived social links over
// whatever the model surfaces.
func ExtractEnriched(ctx context.Context, client anthropic.Client, cfg config.AnthropicConfig, results []searchprovider.Result, ectx Context, calc *cost.Calculator) ([]model.EnrichedCompetitor, error) {
	batch := results
	if len(batch) > maxInputResults {
		batch = batch[:maxInputResults]
	}
	if len(batch) == 0 {
		return nil, nil
	}

	temp := cfg.Temperature
	if temp > 0.3 {
		temp = 0.3
	}

	resp, err := client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       cfg.AnalysisModel,
		MaxTokens:   extractMaxTokens,
		System:      anthropic.BuildCachedSystemBlocks(enrichedSystemPrompt),
		Temperature: &temp,
		Messages:    []anthropic.Message{{Role: "user", Content: buildUserContent(batch, ectx)}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "extractor: create message (enriched)")
	}
	logCost(calc, cfg.AnalysisModel, "extract_enriched", false, resp)

	var raw []rawEnrichedCandidate
	if perr := parseArray(textOf(resp), &raw); perr != nil {
		zap.L().Warn("extractor: failed to parse enriched extraction response", zap.Error(perr))
		return nil, nil
	}

	// Build a lookup from website host to its source content, so regex
	// social-link extraction can run over the same raw content the model saw.
	contentByHost := make(map[string]string, len(batch))
	for _, r := range batch {
		contentByHost[normalizedHost(r.URL)] = r.Content
	}

	out := make([]model.EnrichedCompetitor, 0, len(raw))
	seen := make(map[string]bool)
	for _, c := range raw {
		ec, ok := c.toEnriched()
		if !ok {
			continue
		}
		key := normalizedHost(ec.Website)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		regexLinks := ExtractSocialLinks(contentByHost[key])
		ec.SocialLinks = mergeSocialLinks(regexLinks, ec.SocialLinks)

		out = append(out, ec)
	}
	return out, nil
}

// buildUserContent renders the per-call user turn (targeting context plus
// sources). The system instructions live in a separate cached system block
// so repeated extraction calls in the same run hit the prompt cache instead
// of re-billing the ~200-token instruction preamble every time.
func buildUserContent(results []searchprovider.Result, ectx Context) string {
	var b strings.Builder
	if len(ectx.Keywords) > 0 {
		b.WriteString("Target keywords: " + strings.Join(ectx.Keywords, ", ") + "\n")
	}
	if len(ectx.Regions) > 0 {
		b.WriteString("Target regions: " + strings.Join(ectx.Regions, ", ") + "\n")
	}
	if ectx.Industry != "" {
		b.WriteString("Target industry: " + ectx.Industry + "\n")
	}
	b.WriteString("\nSources:\n")
	for i, r := range results {
		content := r.Content
		if len(content) > maxContentChars {
			content = content[:maxContentChars]
		}
		b.WriteString("--- Source ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(" ---\n")
		b.WriteString("URL: " + r.URL + "\n")
		b.WriteString("Title: " + r.Title + "\n")
		if r.Snippet != "" {
			b.WriteString("Snippet: " + r.Snippet + "\n")
		}
		if content != "" {
			b.WriteString("Content:\n" + content + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

type rawCandidate struct {
	Name        string `json:"name"`
	Website     string `json:"website"`
	Description string `json:"description"`
	Industry    string `json:"industry"`
	Country     string `json:"country"`
}

func (c rawCandidate) toBasic() (model.BasicCompetitor, bool) {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Website) == "" {
		return model.BasicCompetitor{}, false
	}
	return model.BasicCompetitor{
		Name:        c.Name,
		Website:     normalizeURL(c.Website),
		Description: c.Description,
		Industry:    c.Industry,
		Country:     normalizeCountry(c.Country),
	}, true
}

type rawEnrichedCandidate struct {
	rawCandidate
	Tagline          string   `json:"tagline"`
	Headquarters     string   `json:"headquarters"`
	Founders         []string `json:"founders"`
	FoundedYear      int      `json:"founded_year"`
	FundingStage     string   `json:"funding_stage"`
	TotalFunding     string   `json:"total_funding"`
	Investors        []string `json:"investors"`
	Technologies     []string `json:"technologies"`
	LinkedIn         string   `json:"linkedin"`
	Twitter          string   `json:"twitter"`
	Facebook         string   `json:"facebook"`
	Instagram        string   `json:"instagram"`
	BusinessModel    string   `json:"business_model"`
	ValueProposition string   `json:"value_proposition"`
}

func (c rawEnrichedCandidate) toEnriched() (model.EnrichedCompetitor, bool) {
	basic, ok := c.rawCandidate.toBasic()
	if !ok {
		return model.EnrichedCompetitor{}, false
	}
	funding := ParseFundingAmount(c.TotalFunding)
	return model.EnrichedCompetitor{
		BasicCompetitor: basic,
		Tagline:         c.Tagline,
		Headquarters:    c.Headquarters,
		Founders:        c.Founders,
		FoundedYear:     c.FoundedYear,
		FundingStage:    c.FundingStage,
		TotalFunding:    funding,
		Investors:       c.Investors,
		Technologies:    c.Technologies,
		SocialLinks: model.SocialLinks{
			LinkedIn:  normalizeURLIfSet(c.LinkedIn),
			Twitter:   normalizeURLIfSet(c.Twitter),
			Facebook:  normalizeURLIfSet(c.Facebook),
			Instagram: normalizeURLIfSet(c.Instagram),
		},
		BusinessModel: c.BusinessModel,
		ValueProp:     c.ValueProposition,
	}, true
}

// parseArray locates the first '[' and last ']' in text and JSON-decodes the
// substring into dst. Parse failure is the caller's signal to return an
// empty list rather than raise.
func parseArray(text string, dst any) error {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return eris.New("extractor: no JSON array found in response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), dst); err != nil {
		return eris.Wrap(err, "extractor: parse candidate array")
	}
	return nil
}

// logCost attributes the token usage of a single completed call to a phase
// label, for pipeline cost accounting. calc == nil is a no-op. isBatch
// routes the call through the calculator's batch-discount pricing.
func logCost(calc *cost.Calculator, model, phase string, isBatch bool, resp *anthropic.MessageResponse) {
	if calc == nil || resp == nil {
		return
	}
	usage := resp.Usage
	amount := calc.Claude(model, isBatch, int(usage.InputTokens), int(usage.OutputTokens), int(usage.CacheCreationInputTokens), int(usage.CacheReadInputTokens))
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Bool("batch", isBatch),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens),
		zap.Float64("estimated_cost_usd", amount),
	)
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

func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return strings.TrimRight(u, "/")
}

func normalizeURLIfSet(u string) string {
	if strings.TrimSpace(u) == "" {
		return ""
	}
	return normalizeURL(u)
}

// countryNameToISO2 resolves full country names the model sometimes emits
// in place of an ISO-3166 alpha-2 code. Checked before the truncate
// fallback: truncating "Nigeria" blindly to two characters yields "NI"
// (Nicaragua's code), not "NG".
var countryNameToISO2 = map[string]string{
	"nigeria": "NG", "ghana": "GH", "kenya": "KE", "south africa": "ZA",
	"egypt": "EG", "morocco": "MA", "ivory coast": "CI", "cote d'ivoire": "CI",
	"senegal": "SN", "ethiopia": "ET", "tanzania": "TZ", "uganda": "UG",
	"rwanda": "RW", "cameroon": "CM", "algeria": "DZ", "tunisia": "TN",
	"united states": "US", "united states of america": "US", "usa": "US",
	"united kingdom": "GB", "uk": "GB", "canada": "CA", "france": "FR",
	"germany": "DE", "india": "IN", "china": "CN", "brazil": "BR",
	"mexico": "MX", "spain": "ES", "italy": "IT", "netherlands": "NL",
	"singapore": "SG", "australia": "AU", "japan": "JP", "indonesia": "ID",
	"united arab emirates": "AE", "uae": "AE",
}

func normalizeCountry(c string) string {
	c = strings.TrimSpace(c)
	if code, ok := countryNameToISO2[strings.ToLower(c)]; ok {
		return code
	}
	c = strings.ToUpper(c)
	if len(c) > 2 {
		c = c[:2]
	}
	return c
}

func normalizedHost(rawURL string) string {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	u = strings.TrimSuffix(u, "/")
	if slash := strings.Index(u, "/"); slash >= 0 {
		u = u[:slash]
	}
	return u
}

// socialLinkPatterns matches profile URLs while excluding known non-profile
// paths (share/intent widgets, bare home links).
var socialLinkPatterns = []struct {
	re    *regexp.Regexp
	field func(*model.SocialLinks, string)
}{
	{
		re:    regexp.MustCompile(`https?://(?:www\.)?linkedin\.com/company/[A-Za-z0-9_/.-]+`),
		field: func(s *model.SocialLinks, v string) { s.LinkedIn = v },
	},
	{
		re:    regexp.MustCompile(`https?://(?:www\.)?(?:twitter|x)\.com/[A-Za-z0-9_/.-]+`),
		field: func(s *model.SocialLinks, v string) { s.Twitter = v },
	},
	{
		re:    regexp.MustCompile(`https?://(?:www\.)?facebook\.com/[A-Za-z0-9_/.-]+`),
		field: func(s *model.SocialLinks, v string) { s.Facebook = v },
	},
	{
		re:    regexp.MustCompile(`https?://(?:www\.)?instagram\.com/[A-Za-z0-9_/.-]+`),
		field: func(s *model.SocialLinks, v string) { s.Instagram = v },
	},
}

// excludedSocialPaths are non-profile share/intent/home paths that a naive
// URL regex would otherwise mistake for a company profile.
var excludedSocialPaths = []string{"/intent", "/share", "/sharer", "/home"}

// ExtractSocialLinks scans raw page content for profile URLs via regex,
// excluding known non-profile paths. Used both standalone and to override
// model-reported social links, since regex hits are preferred.
func ExtractSocialLinks(content string) model.SocialLinks {
	var links model.SocialLinks
	if content == "" {
		return links
	}
	for _, p := range socialLinkPatterns {
		matches := p.re.FindAllString(content, -1)
		for _, m := range matches {
			m = strings.TrimRight(m, ".")
			if isExcludedSocialPath(m) {
				continue
			}
			p.field(&links, m)
			break
		}
	}
	return links
}

func isExcludedSocialPath(u string) bool {
	lower := strings.ToLower(u)
	for _, path := range excludedSocialPaths {
		if strings.Contains(lower, path) {
			return true
		}
	}
	return false
}

// mergeSocialLinks merges a and b, preferring non-empty fields from a
// (the regex-derived links) over b (the model-reported links).
func mergeSocialLinks(a, b model.SocialLinks) model.SocialLinks {
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

// fundingSuffixMultipliers maps the suffix letter to its numeric multiplier
// for parsing strings like "$1.2M" or "€800K".
var fundingSuffixMultipliers = map[byte]float64{
	'K': 1e3,
	'M': 1e6,
	'B': 1e9,
}

var fundingAmountRe = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*([KMB])?`)

// ParseFundingAmount parses strings like "$1.2M", "€800K", "$3B" into a
// USD-equivalent integer. Unparseable input returns nil.
func ParseFundingAmount(s string) *int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	m := fundingAmountRe.FindStringSubmatch(s)
	if m == nil || m[1] == "" {
		return nil
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	if m[2] != "" {
		val *= fundingSuffixMultipliers[m[2][0]]
	}
	result := int64(val)
	return &result
}

// Package query builds search-engine queries from a project's description,
// keywords, industries, and target regions. Build is pure and deterministic:
// same project in, same ordered query list out.
package query

import (
	"strings"

	"github.com/sells-group/competitor-intel/internal/model"
)

const maxQueries = 5

// vertical is one rung of the prioritized business-category ladder. Phrase
// matching is first-match-wins so a more specific category (neobank) is
// checked before its more general parent (fintech).
type vertical struct {
	phrase   string
	keywords []string
}

// verticalLadder is checked top to bottom; the first vertical whose keyword
// set substring-matches the description wins. Sub-branches of fintech are
// listed ahead of the generic "fintech" entry for the same reason.
var verticalLadder = []vertical{
	{"neobank challenger bank mobile banking", []string{"neobank", "challenger bank", "digital bank"}},
	{"mobile money", []string{"mobile money", "mobile wallet", "ussd payments"}},
	{"lending fintech", []string{"lending", "microloan", "credit scoring", "buy now pay later", "bnpl"}},
	{"remittance fintech", []string{"remittance", "cross-border payments", "money transfer"}},
	{"payment infrastructure fintech", []string{"payment infrastructure", "payment rails", "payment gateway", "acquiring"}},
	{"savings fintech", []string{"savings app", "micro-savings", "investment app"}},
	{"fintech payments", []string{"fintech", "payments", "financial technology"}},
	{"construction materials", []string{"construction materials", "building materials", "cement", "aggregates"}},
	{"logistics delivery", []string{"logistics", "last-mile delivery", "freight", "supply chain"}},
	{"agritech", []string{"agritech", "agtech", "farm inputs", "agricultural technology"}},
	{"healthtech", []string{"healthtech", "telemedicine", "digital health", "health technology"}},
	{"marketplace e-commerce", []string{"marketplace", "e-commerce", "ecommerce", "online retail"}},
	{"edtech", []string{"edtech", "e-learning", "online education"}},
}

// westAfrica and eastAfrica back the region-code-majority fallback when the
// description names no geography explicitly.
var westAfrica = map[string]bool{
	"NG": true, "GH": true, "CI": true, "SN": true, "ML": true, "BF": true,
	"BJ": true, "TG": true, "NE": true, "GN": true, "SL": true, "LR": true,
	"GM": true, "GW": true, "MR": true, "CV": true,
}

var eastAfrica = map[string]bool{
	"KE": true, "TZ": true, "UG": true, "RW": true, "ET": true, "SO": true,
	"BI": true, "SS": true, "DJ": true, "ER": true,
}

var africanRegions = mergedSet(westAfrica, eastAfrica, map[string]bool{
	"ZA": true, "EG": true, "MA": true, "DZ": true, "TN": true, "AO": true,
	"CM": true, "CD": true, "ZM": true, "ZW": true, "MZ": true, "NA": true,
})

var regionNames = map[string]string{
	"NG": "Nigeria", "GH": "Ghana", "CI": "Ivory Coast", "SN": "Senegal",
	"ML": "Mali", "BF": "Burkina Faso", "BJ": "Benin", "TG": "Togo",
	"NE": "Niger", "GN": "Guinea", "SL": "Sierra Leone", "LR": "Liberia",
	"GM": "Gambia", "GW": "Guinea-Bissau", "MR": "Mauritania", "CV": "Cape Verde",
	"KE": "Kenya", "TZ": "Tanzania", "UG": "Uganda", "RW": "Rwanda",
	"ET": "Ethiopia", "SO": "Somalia", "BI": "Burundi", "SS": "South Sudan",
	"DJ": "Djibouti", "ER": "Eritrea", "ZA": "South Africa", "EG": "Egypt",
	"MA": "Morocco", "DZ": "Algeria", "TN": "Tunisia", "AO": "Angola",
	"CM": "Cameroon", "CD": "DR Congo", "ZM": "Zambia", "ZW": "Zimbabwe",
	"MZ": "Mozambique", "NA": "Namibia",
}

// countryByName is ordered so a longer, more specific name (Guinea-Bissau)
// is checked before a shorter name it contains as a substring (Guinea).
var countryByName = []struct{ code, name string }{
	{"GW", "guinea-bissau"}, {"SS", "south sudan"}, {"SL", "sierra leone"},
	{"BF", "burkina faso"}, {"CD", "dr congo"},
	{"CI", "ivory coast"}, {"ZA", "south africa"}, {"CV", "cape verde"},
	{"NG", "nigeria"}, {"GH", "ghana"}, {"SN", "senegal"}, {"ML", "mali"},
	{"BJ", "benin"}, {"TG", "togo"}, {"NE", "niger"}, {"GN", "guinea"},
	{"LR", "liberia"}, {"GM", "gambia"}, {"MR", "mauritania"},
	{"KE", "kenya"}, {"TZ", "tanzania"}, {"UG", "uganda"}, {"RW", "rwanda"},
	{"ET", "ethiopia"}, {"SO", "somalia"}, {"BI", "burundi"},
	{"DJ", "djibouti"}, {"ER", "eritrea"}, {"EG", "egypt"}, {"MA", "morocco"},
	{"DZ", "algeria"}, {"TN", "tunisia"}, {"AO", "angola"}, {"CM", "cameroon"},
	{"ZM", "zambia"}, {"ZW", "zimbabwe"}, {"MZ", "mozambique"}, {"NA", "namibia"},
}

func mergedSet(sets ...map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, s := range sets {
		for k := range s {
			out[k] = true
		}
	}
	return out
}

// RegionName maps an ISO-3166 alpha-2 code to a human-readable name,
// returning the code unchanged when it is unrecognized.
func RegionName(code string) string {
	if name, ok := regionNames[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}

// Build produces 1-5 ordered, non-empty search queries for a project. It
// never errors; an empty project falls back to a single generic query.
func Build(project model.Project) []string {
	if project.Name == "" && project.Description == "" && len(project.Keywords) == 0 && len(project.Regions) == 0 {
		return []string{"startup company"}
	}

	desc := strings.ToLower(project.Description)
	vert := detectVertical(desc)
	geo := detectGeography(desc, project.Regions)
	bizType := detectBusinessType(desc)

	base := buildBaseQuery(project, vert, bizType, geo)

	queries := []string{base}
	industry := firstIndustry(project.Industries)

	for _, kw := range project.Keywords {
		for _, region := range project.Regions {
			if len(queries) >= maxQueries {
				return queries
			}
			regionPhrase := RegionName(region)
			primary := strings.TrimSpace(kw + " " + regionPhrase + " startup")
			queries = append(queries, primary)

			if industry != "" && len(queries) < maxQueries {
				variant := strings.TrimSpace(industry + " " + kw + " " + regionPhrase + " startup")
				queries = append(queries, variant)
			}
		}
	}

	if len(queries) > maxQueries {
		queries = queries[:maxQueries]
	}
	return queries
}

func detectVertical(desc string) string {
	for _, v := range verticalLadder {
		for _, kw := range v.keywords {
			if strings.Contains(desc, kw) {
				return v.phrase
			}
		}
	}
	return ""
}

// detectGeography checks description phrases first, then country names,
// then falls back to a majority vote over the project's region codes.
// "francophone africa" deliberately does not resolve to "West Africa": most
// francophone African countries are West African, but not all (Rwanda,
// Burundi, DR Congo), so the description alone can only support the generic
// "Africa" answer.
func detectGeography(desc string, regions []string) string {
	if strings.Contains(desc, "west africa") {
		return "West Africa"
	}
	if strings.Contains(desc, "east africa") {
		return "East Africa"
	}
	for _, c := range countryByName {
		if strings.Contains(desc, c.name) {
			return RegionName(c.code)
		}
	}
	if strings.Contains(desc, "africa") {
		return "Africa"
	}

	if len(regions) == 0 {
		return ""
	}
	var west, east, africa int
	for _, r := range regions {
		code := strings.ToUpper(r)
		switch {
		case westAfrica[code]:
			west++
			africa++
		case eastAfrica[code]:
			east++
			africa++
		case africanRegions[code]:
			africa++
		}
	}
	switch {
	case west > 0 && west >= east && west*2 > len(regions):
		return "West Africa"
	case east > 0 && east*2 > len(regions):
		return "East Africa"
	case africa > 0:
		return "Africa"
	}
	return ""
}

func detectBusinessType(desc string) string {
	switch {
	case strings.Contains(desc, "b2b"):
		return "B2B"
	case strings.Contains(desc, "b2c"):
		return "B2C"
	case strings.Contains(desc, "wholesale"):
		return "wholesale"
	}
	return ""
}

func buildBaseQuery(project model.Project, vert, bizType, geo string) string {
	if vert == "" {
		name := strings.TrimSpace(project.Name)
		if name == "" {
			return "startup company"
		}
		return name + " competitors"
	}

	parts := []string{vert}
	if bizType != "" {
		parts = append(parts, bizType)
	}
	if len(project.Keywords) > 0 {
		parts = append(parts, strings.Join(project.Keywords, " "))
	}
	if geo != "" {
		parts = append(parts, geo)
	}
	parts = append(parts, "startup")
	return strings.Join(parts, " ")
}

func firstIndustry(industries []string) string {
	if len(industries) == 0 {
		return ""
	}
	return industries[0]
}

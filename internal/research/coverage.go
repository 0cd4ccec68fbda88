package research

import (
	"strings"

	"github.com/draftline-ai/orchestrator/internal/subject"
)

// Required content fields per subject kind. Coverage is the fraction of
// these backed by at least one usable fact; the same computation scores
// funnel output and knowledge records so the short-circuit comparison in the
// workflow is apples to apples.
var requiredFields = map[subject.Kind][]string{
	subject.KindCompany: {"overview", "services", "track_record", "team", "market_position"},
	subject.KindArticle: {"background", "developments", "key_people", "market_context", "outlook"},
}

// Keyword hints used to bucket free-text extracts into a category when the
// crawler had no structured extraction to offer.
var categoryHints = map[string][]string{
	"services":        {"service", "product", "offering", "solution", "platform", "client"},
	"track_record":    {"deal", "transaction", "acquisition", "merger", "funding", "raised", "investment"},
	"team":            {"founder", "ceo", "executive", "leadership", "partner", "director", "appointed"},
	"market_position": {"market", "competitor", "industry", "share", "rival", "leading"},
	"developments":    {"announced", "launch", "release", "report", "unveiled", "expansion"},
	"key_people":      {"ceo", "founder", "executive", "director", "analyst", "chairman"},
	"market_context":  {"market", "industry", "sector", "trend", "competitor", "demand"},
	"outlook":         {"forecast", "outlook", "expects", "guidance", "projected", "plans"},
}

// RequiredFields returns the coverage field list for a kind. Unknown kinds
// get the company list; kind validation happens before any funnel stage.
func RequiredFields(kind subject.Kind) []string {
	if fields, ok := requiredFields[kind]; ok {
		return fields
	}
	return requiredFields[subject.KindCompany]
}

// DefaultCategory is where uncategorizable facts land for a kind.
func DefaultCategory(kind subject.Kind) string {
	if kind == subject.KindArticle {
		return "background"
	}
	return "overview"
}

// CoverageFromCategories scores a set of covered categories against the
// kind's required fields.
func CoverageFromCategories(kind subject.Kind, categories map[string]bool) float64 {
	fields := RequiredFields(kind)
	if len(fields) == 0 {
		return 0
	}
	covered := 0
	for _, f := range fields {
		if categories[f] {
			covered++
		}
	}
	return float64(covered) / float64(len(fields))
}

// CoverageOf computes coverage from the usable findings in a merged set.
// Crawl-failed markers contribute nothing.
func CoverageOf(kind subject.Kind, findings []Finding) float64 {
	categories := make(map[string]bool)
	for _, fact := range UsableFacts(findings) {
		if fact.Category != "" && fact.Category != CategoryCrawlFailed {
			categories[fact.Category] = true
		}
	}
	return CoverageFromCategories(kind, categories)
}

// MissingFields lists required fields not yet backed by a usable fact, in
// the kind's canonical field order. Escalation queries exactly this gap.
func MissingFields(kind subject.Kind, findings []Finding) []string {
	categories := make(map[string]bool)
	for _, fact := range UsableFacts(findings) {
		categories[fact.Category] = true
	}
	var missing []string
	for _, f := range RequiredFields(kind) {
		if !categories[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

// CategorizeText buckets a free-text extract into the best-matching required
// field for the kind, falling back to the kind's default category.
func CategorizeText(kind subject.Kind, text string) string {
	lower := strings.ToLower(text)
	best := DefaultCategory(kind)
	bestHits := 0
	for _, field := range RequiredFields(kind) {
		hits := 0
		for _, hint := range categoryHints[field] {
			hits += strings.Count(lower, hint)
		}
		if hits > bestHits {
			best = field
			bestHits = hits
		}
	}
	return best
}

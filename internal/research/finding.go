// Package research implements the staged research funnel: broad search over a
// paged provider, relevance filtering, bounded crawling through a fallback
// chain, and merge/coverage synthesis. Every stage is cost-aware; spend is
// reported back to the workflow ledger rather than enforced here.
package research

import "sort"

// Tier records how a finding was obtained. Crawled findings supersede the
// snippet findings they were promoted from.
type Tier string

const (
	TierSearchSnippet Tier = "search-snippet"
	TierCrawledFull   Tier = "crawled-full"
)

// CategoryCrawlFailed marks the single fact carried by a finding whose crawl
// was abandoned after its retry budget. Such findings keep their URL visible
// in results but never count toward coverage.
const CategoryCrawlFailed = "crawl-failed"

// Fact is one extracted statement attributed to a named entity and mapped to
// a content category (the categories double as required-field names for
// coverage, see coverage.go).
type Fact struct {
	Entity    string `json:"entity,omitempty"`
	Category  string `json:"category"`
	Statement string `json:"statement"`
}

// Finding is one unit of evidence. Findings are immutable once created; the
// funnel replaces rather than mutates them (a successful crawl yields a new
// crawled-full finding for the same URL).
type Finding struct {
	URL        string  `json:"url"`
	Title      string  `json:"title,omitempty"`
	Tier       Tier    `json:"tier"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
	Facts      []Fact  `json:"facts,omitempty"`
	Crawler    string  `json:"crawler,omitempty"`
	WordCount  int     `json:"word_count,omitempty"`
	Source     string  `json:"source,omitempty"`
	Published  string  `json:"published,omitempty"`
	CostMicros int64   `json:"cost_micros"`
}

// CrawlFailed reports whether this finding is a failed-crawl marker.
func (f Finding) CrawlFailed() bool {
	for _, fact := range f.Facts {
		if fact.Category == CategoryCrawlFailed {
			return true
		}
	}
	return false
}

// Usable reports whether the finding may contribute facts to coverage and
// generation context.
func (f Finding) Usable() bool {
	return !f.CrawlFailed()
}

// FailedCrawl builds the marker finding recorded when a candidate's crawl
// retry budget is exhausted. It inherits the snippet's rank and score so the
// merged set stays deterministic, and carries the abandonment reason.
func FailedCrawl(snippet Finding, reason string, costMicros int64) Finding {
	return Finding{
		URL:   snippet.URL,
		Title: snippet.Title,
		Tier:  TierCrawledFull,
		Score: snippet.Score,
		Rank:  snippet.Rank,
		Facts: []Fact{{
			Category:  CategoryCrawlFailed,
			Statement: reason,
		}},
		Source:     snippet.Source,
		Published:  snippet.Published,
		CostMicros: costMicros,
	}
}

// Merge deduplicates findings by URL keeping the highest-scoring version per
// URL. On equal score the crawled-full version wins over the snippet it was
// promoted from. Output order is deterministic: score descending, then rank
// ascending, then URL ascending.
func Merge(sets ...[]Finding) []Finding {
	best := make(map[string]Finding)
	for _, set := range sets {
		for _, f := range set {
			cur, ok := best[f.URL]
			if !ok || better(f, cur) {
				best[f.URL] = f
			}
		}
	}

	merged := make([]Finding, 0, len(best))
	for _, f := range best {
		merged = append(merged, f)
	}
	SortFindings(merged)
	return merged
}

// better reports whether a should replace b for the same URL.
func better(a, b Finding) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Tier != b.Tier {
		return a.Tier == TierCrawledFull
	}
	return false
}

// SortFindings orders findings score descending, rank ascending, URL
// ascending. The ordering is total, so repeated runs over the same inputs
// produce identical histories.
func SortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.URL < b.URL
	})
}

// UsableFacts flattens the fact sets of all usable findings, preserving the
// merged finding order.
func UsableFacts(findings []Finding) []Fact {
	var facts []Fact
	for _, f := range findings {
		if !f.Usable() {
			continue
		}
		facts = append(facts, f.Facts...)
	}
	return facts
}

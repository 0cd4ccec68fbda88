package research

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Domains excluded from the funnel entirely. Social and discussion hosts
// produce snippets that score well on keywords but crawl into noise.
var excludedDomains = []string{
	"facebook.com",
	"twitter.com",
	"x.com",
	"instagram.com",
	"pinterest.com",
	"tiktok.com",
	"youtube.com",
	"reddit.com",
	"quora.com",
}

// Domains whose coverage is reliable enough to outrank position alone.
var authoritativeDomains = []string{
	"bloomberg.com",
	"reuters.com",
	"ft.com",
	"wsj.com",
	"cnbc.com",
	"forbes.com",
	"techcrunch.com",
	"businessinsider.com",
	"prnewswire.com",
	"businesswire.com",
}

// Scorer assigns relevance to search results. Base score decays with rank
// (rank 1 scores 1.0 before boosts); bounded boosts reward source quality,
// subject keyword hits, deep article paths, https, and recency. Scores are
// clamped to 1.0.
type Scorer struct {
	Decay       float64
	Keywords    []string
	RecentYears []string
}

// NewScorer derives subject keywords from the subject name and treats the
// current and two preceding years as recent.
func NewScorer(decay float64, subjectName string, now time.Time) Scorer {
	if decay <= 0 || decay > 1 {
		decay = 0.90
	}
	year := now.Year()
	return Scorer{
		Decay:    decay,
		Keywords: KeywordsFor(subjectName),
		RecentYears: []string{
			strconv.Itoa(year),
			strconv.Itoa(year - 1),
			strconv.Itoa(year - 2),
		},
	}
}

// Score computes the relevance of one search result.
func (s Scorer) Score(res SearchResult) float64 {
	decay := s.Decay
	if decay <= 0 || decay > 1 {
		decay = 0.90
	}
	rank := res.Rank
	if rank < 1 {
		rank = 1
	}
	score := math.Pow(decay, float64(rank-1))

	text := strings.ToLower(res.Title + " " + res.Snippet)

	if hostMatches(res.URL, authoritativeDomains) {
		score += 0.10
	}

	hits := 0
	for _, kw := range s.Keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	if hits > 0 {
		score += math.Min(0.05*float64(hits), 0.10)
	}

	if pathDepth(res.URL) > 4 {
		score += 0.03
	}
	if strings.HasPrefix(strings.ToLower(res.URL), "https://") {
		score += 0.01
	}
	for _, y := range s.RecentYears {
		if strings.Contains(text, y) || strings.Contains(res.URL, y) {
			score += 0.02
			break
		}
	}

	return math.Min(score, 1.0)
}

// ContentScore estimates relevance from extracted content richness: a floor
// for any successful extraction plus fact-count and length components. A
// crawled finding keeps max(snippet score, content score).
func ContentScore(wordCount, factCount int) float64 {
	score := 0.40
	if factCount > 8 {
		factCount = 8
	}
	score += 0.05 * float64(factCount)
	if wordCount >= 300 {
		score += 0.10
	}
	if wordCount >= 1200 {
		score += 0.10
	}
	return math.Min(score, 1.0)
}

// Excluded reports whether a URL's host is on the exclusion list.
func Excluded(rawURL string) bool {
	return hostMatches(rawURL, excludedDomains)
}

// KeywordsFor extracts lowercase subject keywords, dropping short tokens and
// corporate suffixes that match everything.
func KeywordsFor(subjectName string) []string {
	stop := map[string]bool{
		"the": true, "and": true, "inc": true, "llc": true,
		"ltd": true, "corp": true, "group": true, "company": true,
	}
	fields := strings.FieldsFunc(strings.ToLower(subjectName), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		if len(f) <= 2 || stop[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func hostMatches(rawURL string, domains []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func pathDepth(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	depth := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			depth++
		}
	}
	return depth
}

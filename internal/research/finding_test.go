package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeDeduplicatesByURLKeepingHighestScore(t *testing.T) {
	snippets := []Finding{
		{URL: "https://a.example/1", Tier: TierSearchSnippet, Score: 0.80, Rank: 1},
		{URL: "https://b.example/2", Tier: TierSearchSnippet, Score: 0.70, Rank: 2},
	}
	crawled := []Finding{
		{URL: "https://a.example/1", Tier: TierCrawledFull, Score: 0.95, Rank: 1},
	}

	merged := Merge(snippets, crawled)

	assert.Len(t, merged, 2)
	assert.Equal(t, "https://a.example/1", merged[0].URL)
	assert.Equal(t, TierCrawledFull, merged[0].Tier)
	assert.Equal(t, 0.95, merged[0].Score)
	assert.Equal(t, "https://b.example/2", merged[1].URL)
}

func TestMergePrefersCrawledOnEqualScore(t *testing.T) {
	merged := Merge(
		[]Finding{{URL: "https://a.example", Tier: TierSearchSnippet, Score: 0.80, Rank: 3}},
		[]Finding{{URL: "https://a.example", Tier: TierCrawledFull, Score: 0.80, Rank: 3}},
	)

	assert.Len(t, merged, 1)
	assert.Equal(t, TierCrawledFull, merged[0].Tier)
}

func TestMergeOrderIsDeterministic(t *testing.T) {
	set := []Finding{
		{URL: "https://c.example", Score: 0.5, Rank: 3},
		{URL: "https://a.example", Score: 0.5, Rank: 3},
		{URL: "https://b.example", Score: 0.5, Rank: 2},
		{URL: "https://d.example", Score: 0.9, Rank: 7},
	}

	merged := Merge(set)

	// Score desc, then rank asc, then URL asc.
	assert.Equal(t, "https://d.example", merged[0].URL)
	assert.Equal(t, "https://b.example", merged[1].URL)
	assert.Equal(t, "https://a.example", merged[2].URL)
	assert.Equal(t, "https://c.example", merged[3].URL)

	// Same inputs in a different order merge identically.
	again := Merge([]Finding{set[3], set[1], set[0], set[2]})
	assert.Equal(t, merged, again)
}

func TestFailedCrawlMarker(t *testing.T) {
	snippet := Finding{
		URL:   "https://slow.example/page",
		Title: "Slow page",
		Tier:  TierSearchSnippet,
		Score: 0.62,
		Rank:  4,
		Facts: []Fact{{Category: "team", Statement: "something"}},
	}

	failed := FailedCrawl(snippet, "timeout after 2 attempts", 0)

	assert.True(t, failed.CrawlFailed())
	assert.False(t, failed.Usable())
	assert.Equal(t, snippet.URL, failed.URL)
	assert.Equal(t, snippet.Score, failed.Score)
	assert.Equal(t, snippet.Rank, failed.Rank)
	assert.Len(t, failed.Facts, 1)
	assert.Equal(t, CategoryCrawlFailed, failed.Facts[0].Category)

	assert.False(t, snippet.CrawlFailed())
	assert.True(t, snippet.Usable())
}

func TestUsableFactsSkipsFailedCrawls(t *testing.T) {
	findings := []Finding{
		{URL: "https://a.example", Score: 0.9, Facts: []Fact{{Category: "overview", Statement: "x"}}},
		FailedCrawl(Finding{URL: "https://b.example", Score: 0.8}, "blocked", 0),
		{URL: "https://c.example", Score: 0.7, Facts: []Fact{
			{Category: "team", Statement: "y"},
			{Category: "services", Statement: "z"},
		}},
	}

	facts := UsableFacts(findings)
	assert.Len(t, facts, 3)
	for _, f := range facts {
		assert.NotEqual(t, CategoryCrawlFailed, f.Category)
	}
}

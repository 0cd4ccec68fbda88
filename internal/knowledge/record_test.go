package knowledge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftline-ai/orchestrator/internal/research"
	"github.com/draftline-ai/orchestrator/internal/subject"
)

func testSubject(t *testing.T) subject.Subject {
	t.Helper()
	sub, err := subject.New(subject.KindCompany, "Acme Corp", nil, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return sub
}

func sampleFindings() []research.Finding {
	return []research.Finding{
		{
			URL:   "https://example.com/a",
			Tier:  research.TierCrawledFull,
			Score: 0.9,
			Rank:  1,
			Facts: []research.Fact{
				{Entity: "Acme Corp", Category: "overview", Statement: "Acme builds rockets."},
				{Entity: "Jane Roe", Category: "team", Statement: "Jane Roe is the CEO of Acme."},
			},
		},
		{
			URL:   "https://example.com/b",
			Tier:  research.TierCrawledFull,
			Score: 0.7,
			Rank:  2,
			Facts: []research.Fact{
				{Category: "services", Statement: "Acme sells launch services. Acme builds rockets."},
			},
		},
	}
}

func TestEnrichIdempotent(t *testing.T) {
	sub := testSubject(t)
	findings := sampleFindings()

	once := Enrich(sub, Miss(sub.ID, false), findings)
	twice := Enrich(sub, once, findings)

	assert.Equal(t, once, twice)
}

func TestEnrichIdempotentUnpunctuatedStatements(t *testing.T) {
	sub := testSubject(t)
	// Crawlers frequently return fragments without terminal punctuation;
	// re-enriching with the same facts must not grow the narrative.
	findings := []research.Finding{{
		URL:   "https://example.com/frag",
		Tier:  research.TierCrawledFull,
		Score: 0.9,
		Facts: []research.Fact{
			{Category: "overview", Statement: "Acme builds rockets"},
			{Category: "services", Statement: "Acme sells launch services"},
		},
	}}

	once := Enrich(sub, Miss(sub.ID, false), findings)
	twice := Enrich(sub, once, findings)

	assert.Equal(t, once, twice)
	assert.Len(t, SplitSentences(once.Narrative), 2)
}

func TestEnrichNarrativeDedup(t *testing.T) {
	sub := testSubject(t)
	rec := Enrich(sub, Miss(sub.ID, false), sampleFindings())

	// "Acme builds rockets." appears in two findings but only once in the
	// merged narrative.
	sentences := SplitSentences(rec.Narrative)
	count := 0
	for _, s := range sentences {
		if normalizeSentence(s) == "acme builds rockets" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Contains(t, rec.Narrative, "launch services")
}

func TestEnrichEntityRelevanceRule(t *testing.T) {
	sub := testSubject(t)
	base := Enrich(sub, Miss(sub.ID, false), []research.Finding{{
		URL: "https://example.com/a", Score: 0.8, Tier: research.TierCrawledFull,
		Facts: []research.Fact{{Entity: "Jane Roe", Category: "team", Statement: "Jane Roe is the CEO."}},
	}})

	// A lower-relevance finding must not overwrite the stored entity.
	lower := Enrich(sub, base, []research.Finding{{
		URL: "https://example.com/c", Score: 0.4, Tier: research.TierCrawledFull,
		Facts: []research.Fact{{Entity: "Jane Roe", Category: "team", Statement: "Jane Roe is an advisor."}},
	}})
	assert.Equal(t, "Jane Roe is the CEO.", lower.Entities["Jane Roe"].Attributes["team"])
	assert.Equal(t, 0.8, lower.Entities["Jane Roe"].Relevance)

	// A higher-relevance finding updates it, merging attribute keys.
	higher := Enrich(sub, base, []research.Finding{{
		URL: "https://example.com/d", Score: 0.95, Tier: research.TierCrawledFull,
		Facts: []research.Fact{{Entity: "Jane Roe", Category: "overview", Statement: "Jane Roe co-founded Acme."}},
	}})
	assert.Equal(t, "Jane Roe co-founded Acme.", higher.Entities["Jane Roe"].Attributes["overview"])
	assert.Equal(t, "Jane Roe is the CEO.", higher.Entities["Jane Roe"].Attributes["team"])
	assert.Equal(t, 0.95, higher.Entities["Jane Roe"].Relevance)
}

func TestEnrichCoverageMonotonic(t *testing.T) {
	sub := testSubject(t)
	rec := Miss(sub.ID, false)

	prev := rec.Coverage
	sets := [][]research.Finding{
		sampleFindings(),
		nil,
		{{URL: "https://example.com/x", Score: 0.5, Tier: research.TierCrawledFull,
			Facts: []research.Fact{{Category: "market_position", Statement: "Acme leads its market."}}}},
	}
	for _, set := range sets {
		rec = Enrich(sub, rec, set)
		assert.GreaterOrEqual(t, rec.Coverage, prev)
		prev = rec.Coverage
	}
}

func TestEnrichIgnoresCrawlFailedMarkers(t *testing.T) {
	sub := testSubject(t)
	marker := research.FailedCrawl(research.Finding{URL: "https://example.com/bad", Score: 0.9}, "timeout", 0)

	rec := Enrich(sub, Miss(sub.ID, false), []research.Finding{marker})
	assert.Empty(t, rec.Narrative)
	assert.Empty(t, rec.Entities)
	assert.Zero(t, rec.Coverage)
}

func TestDeriveRelationships(t *testing.T) {
	sub := testSubject(t)
	entities := map[string]Entity{
		"Jane Roe":  {Attributes: map[string]string{"team": "CEO"}},
		"Acme Corp": {Attributes: map[string]string{"overview": "the subject itself"}},
		"Bob Lee":   {Attributes: map[string]string{"key_people": "analyst"}},
	}

	rels := DeriveRelationships(sub, entities)
	assert.Equal(t, []Relationship{
		{From: "Bob Lee", Type: "figures_in", To: "Acme Corp"},
		{From: "Jane Roe", Type: "works_at", To: "Acme Corp"},
	}, rels)
}

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"One.", 1},
		{"One. Two! Three?", 3},
		{"No terminal punctuation", 1},
	}
	for _, tc := range cases {
		assert.Len(t, SplitSentences(tc.in), tc.want, tc.in)
	}
}

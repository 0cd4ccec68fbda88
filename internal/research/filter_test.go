package research

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterDropsBelowThreshold(t *testing.T) {
	findings := []Finding{
		{URL: "https://a.example", Score: 0.90, Rank: 1},
		{URL: "https://b.example", Score: 0.29, Rank: 2},
		{URL: "https://c.example", Score: 0.30, Rank: 3},
	}

	kept := Filter(findings, 0.30, 10)

	assert.Len(t, kept, 2)
	assert.Equal(t, "https://a.example", kept[0].URL)
	assert.Equal(t, "https://c.example", kept[1].URL, "exactly at threshold survives")
}

func TestFilterCapsAtBudget(t *testing.T) {
	var findings []Finding
	for i := 1; i <= 12; i++ {
		findings = append(findings, Finding{
			URL:   fmt.Sprintf("https://site%02d.example", i),
			Score: 1.0 - float64(i)*0.05,
			Rank:  i,
		})
	}

	kept := Filter(findings, 0.0, 10)

	assert.Len(t, kept, 10)
	assert.Equal(t, "https://site01.example", kept[0].URL)
	assert.Equal(t, "https://site10.example", kept[9].URL)
}

func TestFilterTieBreaks(t *testing.T) {
	findings := []Finding{
		{URL: "https://z.example", Score: 0.80, Rank: 5},
		{URL: "https://b.example", Score: 0.80, Rank: 2},
		{URL: "https://a.example", Score: 0.80, Rank: 5},
	}

	kept := Filter(findings, 0.0, 2)

	// Equal score: earlier rank first, then lexicographically smaller URL.
	assert.Equal(t, "https://b.example", kept[0].URL)
	assert.Equal(t, "https://a.example", kept[1].URL)
}

func TestFilterNoBudgetMeansNoCap(t *testing.T) {
	findings := []Finding{
		{URL: "https://a.example", Score: 0.9, Rank: 1},
		{URL: "https://b.example", Score: 0.8, Rank: 2},
	}
	assert.Len(t, Filter(findings, 0.0, 0), 2)
}

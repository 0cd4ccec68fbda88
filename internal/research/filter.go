package research

// Filter selects the snippet findings worth paying crawl costs for: findings
// below minScore are dropped, the rest are ordered score descending with
// rank-then-URL tie-breaks, and at most budget survive. budget <= 0 means
// no cap.
func Filter(findings []Finding, minScore float64, budget int) []Finding {
	kept := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.Score < minScore {
			continue
		}
		kept = append(kept, f)
	}
	SortFindings(kept)
	if budget > 0 && len(kept) > budget {
		kept = kept[:budget]
	}
	return kept
}

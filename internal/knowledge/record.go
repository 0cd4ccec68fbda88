// Package knowledge implements the cache gateway over the external
// knowledge-graph service. Lookups are optimistic and deposits are best
// effort: the store accelerates workflows but never fails them.
package knowledge

import (
	"sort"
	"strings"
	"time"

	"github.com/draftline-ai/orchestrator/internal/research"
	"github.com/draftline-ai/orchestrator/internal/subject"
)

// Entity is one structured node in a subject's record. Attributes are keyed
// by coverage category so records and funnel output score identically.
type Entity struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Relevance  float64           `json:"relevance"`
	Source     string            `json:"source,omitempty"`
}

// Relationship is a hint edge deposited alongside entities (person works_at
// subject, and similar). The graph service resolves or discards them.
type Relationship struct {
	From string `json:"from"`
	Type string `json:"type"`
	To   string `json:"to"`
}

// Record is the stored knowledge for one subject. Coverage is monotonically
// non-decreasing across deposits; Enrich and Deposit both enforce that.
type Record struct {
	SubjectID     string            `json:"subject_id"`
	Coverage      float64           `json:"coverage"`
	Narrative     string            `json:"narrative,omitempty"`
	Entities      map[string]Entity `json:"entities,omitempty"`
	Relationships []Relationship    `json:"relationships,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`

	// Degraded marks a zero record returned because the backend was
	// unreachable, as opposed to a genuine miss.
	Degraded bool `json:"degraded,omitempty"`
}

// Miss returns the empty record served on cache miss or backend outage.
func Miss(subjectID string, degraded bool) Record {
	return Record{SubjectID: subjectID, Degraded: degraded}
}

// Enrich merges funnel findings into a record. The merge is pure,
// deterministic, and idempotent:
//
//   - narrative: finding statements are appended as terminated sentences,
//     skipping any whose normalized form already appears, preserving
//     first-seen order;
//   - entities: new names are added; an existing name is updated only when
//     the contributing finding's relevance exceeds the stored one, and then
//     attribute keys merge rather than replace;
//   - coverage: max(stored, coverage computed from the findings alone).
//
// Crawl-failed marker findings contribute nothing.
func Enrich(sub subject.Subject, rec Record, findings []research.Finding) Record {
	out := Record{
		SubjectID:     rec.SubjectID,
		Coverage:      rec.Coverage,
		Narrative:     rec.Narrative,
		UpdatedAt:     rec.UpdatedAt,
		Degraded:      rec.Degraded,
		Relationships: append([]Relationship(nil), rec.Relationships...),
	}
	if out.SubjectID == "" {
		out.SubjectID = sub.ID
	}
	out.Entities = make(map[string]Entity, len(rec.Entities))
	for name, e := range rec.Entities {
		out.Entities[name] = cloneEntity(e)
	}

	seen := make(map[string]bool)
	for _, s := range SplitSentences(out.Narrative) {
		seen[normalizeSentence(s)] = true
	}

	var added []string
	sorted := append([]research.Finding(nil), findings...)
	research.SortFindings(sorted)
	for _, f := range sorted {
		if !f.Usable() {
			continue
		}
		for _, fact := range f.Facts {
			for _, s := range SplitSentences(fact.Statement) {
				norm := normalizeSentence(s)
				if norm == "" || seen[norm] {
					continue
				}
				seen[norm] = true
				added = append(added, s)
			}
			if fact.Entity == "" {
				continue
			}
			cur, ok := out.Entities[fact.Entity]
			if ok && f.Score <= cur.Relevance {
				continue
			}
			if !ok {
				cur = Entity{Attributes: make(map[string]string)}
			}
			if cur.Attributes == nil {
				cur.Attributes = make(map[string]string)
			}
			cur.Attributes[fact.Category] = fact.Statement
			cur.Relevance = f.Score
			cur.Source = f.URL
			out.Entities[fact.Entity] = cur
		}
	}
	if len(added) > 0 {
		// Terminate every appended unit so a later enrich re-splits the
		// narrative into the same sentences; unpunctuated statements would
		// otherwise fuse on re-split and defeat the dedup set.
		for i, s := range added {
			added[i] = ensureTerminated(s)
		}
		joined := strings.Join(added, " ")
		if out.Narrative == "" {
			out.Narrative = joined
		} else {
			out.Narrative = ensureTerminated(out.Narrative) + " " + joined
		}
	}

	if c := research.CoverageOf(sub.Kind, findings); c > out.Coverage {
		out.Coverage = c
	}

	out.Relationships = mergeRelationships(out.Relationships, DeriveRelationships(sub, out.Entities))
	return out
}

// DeriveRelationships extracts hint edges from entity attributes: any entity
// carrying a team or key_people attribute is assumed to work at / figure in
// the subject.
func DeriveRelationships(sub subject.Subject, entities map[string]Entity) []Relationship {
	names := make([]string, 0, len(entities))
	for name := range entities {
		names = append(names, name)
	}
	sort.Strings(names)

	var rels []Relationship
	for _, name := range names {
		if name == sub.Name {
			continue
		}
		e := entities[name]
		if _, ok := e.Attributes["team"]; ok {
			rels = append(rels, Relationship{From: name, Type: "works_at", To: sub.Name})
			continue
		}
		if _, ok := e.Attributes["key_people"]; ok {
			rels = append(rels, Relationship{From: name, Type: "figures_in", To: sub.Name})
		}
	}
	return rels
}

func mergeRelationships(existing, derived []Relationship) []Relationship {
	seen := make(map[Relationship]bool, len(existing))
	out := append([]Relationship(nil), existing...)
	for _, r := range existing {
		seen[r] = true
	}
	for _, r := range derived {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// SplitSentences breaks a blob into sentence-ish units on terminal
// punctuation. Deliberately simple; it only needs to be stable so dedup is
// deterministic.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// ensureTerminated closes a statement with a period when it lacks terminal
// punctuation, so narrative units survive a round trip through
// SplitSentences.
func ensureTerminated(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}

func normalizeSentence(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!?")
	return strings.Join(strings.Fields(s), " ")
}

func cloneEntity(e Entity) Entity {
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return Entity{Attributes: attrs, Relevance: e.Relevance, Source: e.Source}
}

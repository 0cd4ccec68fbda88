package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/draftline-ai/orchestrator/internal/metrics"
	"github.com/draftline-ai/orchestrator/internal/subject"
)

// Gateway is the workflow-facing view of the knowledge store. Lookup never
// fails the caller and Deposit is best effort; a backend outage degrades both
// to no-ops so an external service incident cannot take workflows down.
type Gateway struct {
	client *Client
	logger *zap.Logger
}

// NewGateway wraps a client. client may be unconfigured.
func NewGateway(client *Client, logger *zap.Logger) *Gateway {
	return &Gateway{client: client, logger: logger}
}

// Lookup returns the stored record for a subject. It never returns an error:
// a miss yields a zero-coverage record, and a backend failure yields the same
// record flagged Degraded.
func (g *Gateway) Lookup(ctx context.Context, sub subject.Subject) Record {
	rec, found, err := g.client.Fetch(ctx, sub.ID)
	if err != nil {
		metrics.KnowledgeLookups.WithLabelValues("degraded").Inc()
		g.logger.Warn("Knowledge lookup degraded, proceeding without cache",
			zap.String("subject", sub.ID),
			zap.Error(err),
		)
		return Miss(sub.ID, true)
	}
	if !found {
		metrics.KnowledgeLookups.WithLabelValues("miss").Inc()
		return Miss(sub.ID, false)
	}
	metrics.KnowledgeLookups.WithLabelValues("hit").Inc()
	metrics.KnowledgeCoverage.Observe(rec.Coverage)
	return rec
}

// Deposit writes a record back, enforcing monotonic coverage against
// whatever the store currently holds. The returned error is for the caller's
// log only; deposits must never fail a workflow.
func (g *Gateway) Deposit(ctx context.Context, sub subject.Subject, rec Record) error {
	if !g.client.Configured() {
		metrics.KnowledgeDeposits.WithLabelValues("skipped").Inc()
		return nil
	}

	// Re-read so a concurrent deposit with higher coverage is never clobbered
	// downward. A failed read falls back to the record we were given.
	if remote, found, err := g.client.Fetch(ctx, sub.ID); err == nil && found {
		if remote.Coverage > rec.Coverage {
			rec.Coverage = remote.Coverage
		}
	}
	rec.SubjectID = sub.ID
	rec.Degraded = false

	if err := g.client.Write(ctx, sub.ID, rec); err != nil {
		metrics.KnowledgeDeposits.WithLabelValues("failed").Inc()
		return fmt.Errorf("knowledge deposit for %s: %w", sub.ID, err)
	}
	metrics.KnowledgeDeposits.WithLabelValues("written").Inc()
	return nil
}

// Maximum entities rendered into a generation context block.
const contextEntityLimit = 12

// BuildContext renders a record into the context block handed to the
// generation service: narrative first, then the strongest entities, then a
// freshness note. Pure and deterministic.
func BuildContext(sub subject.Subject, rec Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s (%s)\n", sub.Name, sub.Kind)

	if rec.Narrative != "" {
		b.WriteString("\nKnown background:\n")
		b.WriteString(rec.Narrative)
		b.WriteString("\n")
	}

	if len(rec.Entities) > 0 {
		names := make([]string, 0, len(rec.Entities))
		for name := range rec.Entities {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			a, bn := rec.Entities[names[i]], rec.Entities[names[j]]
			if a.Relevance != bn.Relevance {
				return a.Relevance > bn.Relevance
			}
			return names[i] < names[j]
		})
		if len(names) > contextEntityLimit {
			names = names[:contextEntityLimit]
		}

		b.WriteString("\nKnown entities:\n")
		for _, name := range names {
			e := rec.Entities[name]
			cats := make([]string, 0, len(e.Attributes))
			for cat := range e.Attributes {
				cats = append(cats, cat)
			}
			sort.Strings(cats)
			for _, cat := range cats {
				fmt.Fprintf(&b, "- %s [%s]: %s\n", name, cat, e.Attributes[cat])
			}
		}
	}

	if !rec.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "\nKnowledge last updated: %s\n", rec.UpdatedAt.UTC().Format("2006-01-02"))
	}
	return b.String()
}

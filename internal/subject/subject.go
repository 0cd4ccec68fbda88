// Package subject defines the entity a workflow instance researches and the
// validation applied before any stage runs. Validation failures are fatal
// with no retry.
package subject

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/draftline-ai/orchestrator/internal/faults"
)

// Kind selects which workflow lifecycle strategy applies.
type Kind string

const (
	KindCompany Kind = "company"
	KindArticle Kind = "article"
)

// ParseKind validates a wire-level kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindCompany:
		return KindCompany, nil
	case KindArticle:
		return KindArticle, nil
	default:
		return "", faults.Validationf("unknown workflow kind %q", s)
	}
}

// Subject is immutable once a workflow instance starts.
type Subject struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Name      string            `json:"name"`
	Slug      string            `json:"slug"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

const maxNameLen = 200

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// New canonicalizes and validates a subject. The slug doubles as the durable
// identifier so repeated submissions of the same subject share persistence
// rows and knowledge records.
func New(kind Kind, name string, metadata map[string]string, now time.Time) (Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Subject{}, faults.Validationf("subject name is empty")
	}
	if len(name) > maxNameLen {
		return Subject{}, faults.Validationf("subject name exceeds %d characters", maxNameLen)
	}
	if !hasLetterOrDigit(name) {
		return Subject{}, faults.Validationf("subject name %q has no usable characters", name)
	}
	switch kind {
	case KindCompany, KindArticle:
	default:
		return Subject{}, faults.Validationf("unknown workflow kind %q", string(kind))
	}

	slug := Slugify(name)
	if slug == "" {
		return Subject{}, faults.Validationf("subject name %q produces an empty slug", name)
	}

	return Subject{
		ID:        string(kind) + "/" + slug,
		Kind:      kind,
		Name:      name,
		Slug:      slug,
		Metadata:  metadata,
		CreatedAt: now.UTC(),
	}, nil
}

// Slugify lowercases, replaces runs of non-alphanumerics with single dashes,
// and trims leading/trailing dashes.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugCleaner.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

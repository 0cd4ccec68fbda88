package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLookupNeverFails(t *testing.T) {
	sub := testSubject(t)

	t.Run("backend down degrades to empty record", func(t *testing.T) {
		client := NewClient(ClientConfig{URL: "http://127.0.0.1:1"}, nil)
		g := NewGateway(client, zaptest.NewLogger(t))

		rec := g.Lookup(context.Background(), sub)
		assert.Zero(t, rec.Coverage)
		assert.True(t, rec.Degraded)
		assert.Equal(t, sub.ID, rec.SubjectID)
	})

	t.Run("unconfigured client reads as degraded miss", func(t *testing.T) {
		g := NewGateway(NewClient(ClientConfig{}, nil), zaptest.NewLogger(t))
		rec := g.Lookup(context.Background(), sub)
		assert.Zero(t, rec.Coverage)
		assert.True(t, rec.Degraded)
	})

	t.Run("miss is not degraded", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		g := NewGateway(NewClient(ClientConfig{URL: srv.URL}, nil), zaptest.NewLogger(t))
		rec := g.Lookup(context.Background(), sub)
		assert.Zero(t, rec.Coverage)
		assert.False(t, rec.Degraded)
	})

	t.Run("hit returns stored record", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			_ = json.NewEncoder(w).Encode(Record{Coverage: 0.8, Narrative: "Acme builds rockets."})
		}))
		defer srv.Close()

		g := NewGateway(NewClient(ClientConfig{URL: srv.URL}, nil), zaptest.NewLogger(t))
		rec := g.Lookup(context.Background(), sub)
		assert.Equal(t, 0.8, rec.Coverage)
		assert.Equal(t, sub.ID, rec.SubjectID)
		assert.False(t, rec.Degraded)
	})
}

func TestDepositMonotonicCoverage(t *testing.T) {
	sub := testSubject(t)

	var written Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			// Remote already holds higher coverage than the deposit.
			_ = json.NewEncoder(w).Encode(Record{Coverage: 0.9})
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&written))
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	g := NewGateway(NewClient(ClientConfig{URL: srv.URL}, nil), zaptest.NewLogger(t))
	err := g.Deposit(context.Background(), sub, Record{Coverage: 0.6, Narrative: "new facts"})
	require.NoError(t, err)

	assert.Equal(t, 0.9, written.Coverage, "deposit must never lower stored coverage")
	assert.Equal(t, "new facts", written.Narrative)
	assert.Equal(t, sub.ID, written.SubjectID)
}

func TestDepositBestEffort(t *testing.T) {
	sub := testSubject(t)

	t.Run("unconfigured store skips silently", func(t *testing.T) {
		g := NewGateway(NewClient(ClientConfig{}, nil), zaptest.NewLogger(t))
		assert.NoError(t, g.Deposit(context.Background(), sub, Record{Coverage: 0.5}))
	})

	t.Run("write failure surfaces as error for logging only", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		g := NewGateway(NewClient(ClientConfig{URL: srv.URL}, nil), zaptest.NewLogger(t))
		assert.Error(t, g.Deposit(context.Background(), sub, Record{Coverage: 0.5}))
	})
}

func TestBuildContext(t *testing.T) {
	sub := testSubject(t)
	rec := Record{
		Narrative: "Acme builds rockets.",
		Entities: map[string]Entity{
			"Jane Roe": {Attributes: map[string]string{"team": "Jane Roe is the CEO."}, Relevance: 0.9},
			"Acme Pad": {Attributes: map[string]string{"services": "Acme Pad is the launch site."}, Relevance: 0.5},
		},
	}

	ctx := BuildContext(sub, rec)
	assert.Contains(t, ctx, "Subject: Acme Corp (company)")
	assert.Contains(t, ctx, "Acme builds rockets.")
	// Entities render strongest first.
	assert.Less(t,
		strings.Index(ctx, "Jane Roe [team]"),
		strings.Index(ctx, "Acme Pad [services]"),
	)

	// Deterministic output.
	assert.Equal(t, ctx, BuildContext(sub, rec))
}

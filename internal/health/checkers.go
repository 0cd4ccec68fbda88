package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// pingChecker wraps a probe function as a Checker.
type pingChecker struct {
	name     string
	critical bool
	timeout  time.Duration
	probe    func(ctx context.Context) error
}

// NewChecker builds a checker around a probe function.
func NewChecker(name string, critical bool, timeout time.Duration, probe func(ctx context.Context) error) Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &pingChecker{name: name, critical: critical, timeout: timeout, probe: probe}
}

func (c *pingChecker) Name() string                    { return c.name }
func (c *pingChecker) Critical() bool                  { return c.critical }
func (c *pingChecker) Timeout() time.Duration          { return c.timeout }
func (c *pingChecker) Check(ctx context.Context) error { return c.probe(ctx) }

// Pinger is anything exposing a Healthy probe with an error, such as the
// database client or the knowledge client.
type Pinger interface {
	Healthy(ctx context.Context) error
}

// NewDatabaseChecker gates readiness on the result store.
func NewDatabaseChecker(db Pinger) Checker {
	return NewChecker("database", true, 5*time.Second, db.Healthy)
}

// BoolPinger is the idempotency ledger's probe shape. The ledger degrades
// rather than fails, so its checker is never critical.
type BoolPinger interface {
	Healthy(ctx context.Context) bool
}

// NewLedgerChecker reports the idempotency ledger's Redis backend.
func NewLedgerChecker(ledger BoolPinger) Checker {
	return NewChecker("idempotency_ledger", false, 3*time.Second, func(ctx context.Context) error {
		if !ledger.Healthy(ctx) {
			return fmt.Errorf("ledger redis unreachable, running on local cache")
		}
		return nil
	})
}

// NewTemporalChecker verifies the Temporal frontend is reachable. TCP only:
// a full workflow-service call from a health loop is more load than signal.
func NewTemporalChecker(hostPort string) Checker {
	return NewChecker("temporal", true, 5*time.Second, func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", hostPort)
		if err != nil {
			return fmt.Errorf("dial temporal %s: %w", hostPort, err)
		}
		return conn.Close()
	})
}

// NewKnowledgeChecker reports the knowledge service. Non-critical: lookups
// degrade to misses when the service is down.
func NewKnowledgeChecker(client Pinger) Checker {
	return NewChecker("knowledge", false, 5*time.Second, client.Healthy)
}

// Package costs tracks research spend for a single workflow instance. The
// ledger is a plain value held in workflow state, so every method is
// deterministic and the type round-trips through JSON for history replay.
//
// Amounts are micro-dollars (1_000_000 µ$ = $1) to keep the arithmetic
// integral; provider rates come from the pricing package.
package costs

import "fmt"

// Ledger accumulates spend against a ceiling. A zero ceiling means unlimited.
type Ledger struct {
	CeilingMicros int64 `json:"ceiling_micros"`
	SpentMicros   int64 `json:"spent_micros"`
}

// NewLedger returns a ledger with the given ceiling in micro-dollars.
func NewLedger(ceilingMicros int64) Ledger {
	if ceilingMicros < 0 {
		ceilingMicros = 0
	}
	return Ledger{CeilingMicros: ceilingMicros}
}

// Add records spend. Negative amounts are ignored so a misbehaving provider
// response can never refund the ledger.
func (l *Ledger) Add(micros int64) {
	if micros <= 0 {
		return
	}
	l.SpentMicros += micros
}

// Remaining returns the budget left before the ceiling, or -1 when the
// ledger is unlimited.
func (l Ledger) Remaining() int64 {
	if l.CeilingMicros == 0 {
		return -1
	}
	if l.SpentMicros >= l.CeilingMicros {
		return 0
	}
	return l.CeilingMicros - l.SpentMicros
}

// Exceeded reports whether spend has reached the ceiling. Reaching the
// ceiling stops further paid calls but never fails the instance; the run
// completes with whatever was gathered and is marked partial.
func (l Ledger) Exceeded() bool {
	return l.CeilingMicros > 0 && l.SpentMicros >= l.CeilingMicros
}

// Dollars renders spend for logs and operator output.
func (l Ledger) Dollars() string {
	return FormatMicros(l.SpentMicros)
}

// FormatMicros renders a micro-dollar amount as a dollar string.
func FormatMicros(micros int64) string {
	sign := ""
	if micros < 0 {
		sign = "-"
		micros = -micros
	}
	return fmt.Sprintf("%s$%d.%06d", sign, micros/1_000_000, micros%1_000_000)
}

package costs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAccumulates(t *testing.T) {
	l := NewLedger(500_000)

	l.Add(1_000)
	l.Add(10_000)
	assert.Equal(t, int64(11_000), l.SpentMicros)
	assert.Equal(t, int64(489_000), l.Remaining())
	assert.False(t, l.Exceeded())
}

func TestLedgerCeiling(t *testing.T) {
	l := NewLedger(5_000)

	l.Add(4_999)
	assert.False(t, l.Exceeded(), "one micro under the ceiling is still within budget")

	l.Add(1)
	assert.True(t, l.Exceeded())
	assert.Equal(t, int64(0), l.Remaining())

	// Spend may overshoot the ceiling by the cost of the call that crossed
	// it; the ledger keeps the true total.
	l.Add(2_000)
	assert.Equal(t, int64(7_000), l.SpentMicros)
	assert.True(t, l.Exceeded())
}

func TestLedgerUnlimited(t *testing.T) {
	l := NewLedger(0)

	l.Add(1_000_000_000)
	assert.False(t, l.Exceeded())
	assert.Equal(t, int64(-1), l.Remaining())
}

func TestLedgerIgnoresNegativeAmounts(t *testing.T) {
	l := NewLedger(100)
	l.Add(-50)
	assert.Equal(t, int64(0), l.SpentMicros)
}

func TestLedgerRoundTripsJSON(t *testing.T) {
	l := NewLedger(500_000)
	l.Add(123_456)

	data, err := json.Marshal(l)
	require.NoError(t, err)

	var got Ledger
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, l, got)
}

func TestFormatMicros(t *testing.T) {
	assert.Equal(t, "$0.001000", FormatMicros(1_000))
	assert.Equal(t, "$0.500000", FormatMicros(500_000))
	assert.Equal(t, "$2.345678", FormatMicros(2_345_678))
	assert.Equal(t, "-$0.000001", FormatMicros(-1))
}

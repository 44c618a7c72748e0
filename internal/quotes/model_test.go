package quotes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from QuoteStatus
		to   QuoteStatus
		want bool
	}{
		{StatusDraft, StatusSent, true},
		{StatusSent, StatusAccepted, true},
		{StatusSent, StatusDeclined, true},
		{StatusDraft, StatusAccepted, false},
		{StatusDraft, StatusDeclined, false},
		{StatusAccepted, StatusSent, false},
		{StatusAccepted, StatusDeclined, false},
		{StatusDeclined, StatusSent, false},
		{StatusSent, StatusDraft, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestRecalculate(t *testing.T) {
	q := &Quote{
		LineItems: []LineItem{
			{Description: "FUE extraction", Quantity: 1, UnitPriceCents: 500000},
			{Description: "PRP session", Quantity: 3, UnitPriceCents: 15000},
		},
		DiscountCents: 45000,
	}
	q.Recalculate()

	assert.Equal(t, int64(545000), q.SubtotalCents)
	assert.Equal(t, int64(500000), q.TotalCents)
}

func TestRecalculateNeverGoesNegative(t *testing.T) {
	q := &Quote{
		LineItems:     []LineItem{{Description: "Consult", Quantity: 1, UnitPriceCents: 10000}},
		DiscountCents: 99999,
	}
	q.Recalculate()

	assert.Equal(t, int64(0), q.TotalCents)
}

func TestCreateQuoteRequestValidate(t *testing.T) {
	req := &CreateQuoteRequest{
		PatientID: "pat-1",
		LineItems: []LineItem{{Description: "Consult", Quantity: 1, UnitPriceCents: 10000}},
	}
	require.NoError(t, req.Validate())
	assert.Equal(t, "USD", req.Currency)

	bad := &CreateQuoteRequest{LineItems: []LineItem{{Description: "x", Quantity: 1, UnitPriceCents: 1}}}
	require.Error(t, bad.Validate())
}

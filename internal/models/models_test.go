package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"whatsapp:+5511999990000":      "5511999990000",
		"+55 (11) 99999-0000":          "5511999990000",
		"5511999990000@c.us":           "5511999990000",
		"5511999990000@s.whatsapp.net": "5511999990000",
		"  5511999990000 ":             "5511999990000",
		"":                             "",
	}
	for raw, want := range tests {
		assert.Equal(t, want, NormalizePhone(raw), "raw %q", raw)
	}
}

func TestChatAddress(t *testing.T) {
	assert.Equal(t, "5511999990000@c.us", ChatAddress("+55 11 99999-0000"))
	assert.Equal(t, "5511999990000@c.us", ChatAddress("5511999990000@c.us"))
}

func TestContactBeforeCreate(t *testing.T) {
	c := &WhatsAppContact{PhoneNumber: "whatsapp:+5511999990000"}
	assert.NoError(t, c.BeforeCreate(nil))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "5511999990000", c.PhoneNumber)
}

func TestSignedAmount(t *testing.T) {
	expense := Transaction{Type: TransactionExpense, Amount: decimal.NewFromInt(50)}
	income := Transaction{Type: TransactionIncome, Amount: decimal.NewFromInt(50)}

	assert.True(t, expense.SignedAmount().Equal(decimal.NewFromInt(-50)))
	assert.True(t, income.SignedAmount().Equal(decimal.NewFromInt(50)))
}

func TestGoalProgress(t *testing.T) {
	tests := []struct {
		target, current int64
		want            float64
	}{
		{1000, 250, 25},
		{1000, 0, 0},
		{1000, 1500, 100},
		{0, 10, 0},
		{100, -5, 0},
	}
	for _, tt := range tests {
		g := Goal{TargetAmount: decimal.NewFromInt(tt.target), CurrentAmount: decimal.NewFromInt(tt.current)}
		assert.InDelta(t, tt.want, g.Progress(), 0.0001, "%d/%d", tt.current, tt.target)
	}
}

func TestSessionStatusIsLive(t *testing.T) {
	for _, s := range LiveStatuses {
		assert.True(t, s.IsLive(), s)
	}
	assert.False(t, SessionDisconnected.IsLive())
	assert.False(t, SessionStatus("").IsLive())
}

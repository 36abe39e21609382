package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Expense(t *testing.T) {
	cmd := Classify("Gastei 50 com alimentação")

	assert.Equal(t, IntentAddExpense, cmd.Intent)
	require.True(t, cmd.HasAmount())
	assert.True(t, cmd.Amount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "Alimentação", cmd.CategoryName)
	assert.Equal(t, "alimentação", cmd.Description)
}

func TestClassify_Income(t *testing.T) {
	cmd := Classify("Recebi 3000 de salário")

	assert.Equal(t, IntentAddIncome, cmd.Intent)
	require.True(t, cmd.HasAmount())
	assert.True(t, cmd.Amount.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, "Salário", cmd.CategoryName)
}

func TestClassify_Help(t *testing.T) {
	for _, input := range []string{"ajuda", "AJUDA", "  Ajuda  ", "\tajuda\n", "menu"} {
		assert.Equal(t, IntentHelp, Classify(input).Intent, "input %q", input)
	}
}

func TestClassify_Intents(t *testing.T) {
	tests := []struct {
		input string
		want  Intent
	}{
		{"qual meu saldo?", IntentCheckBalance},
		{"quanto tenho", IntentCheckBalance},
		{"extrato", IntentListTransactions},
		{"últimas transações", IntentListTransactions},
		{"minhas metas", IntentCheckGoals},
		{"paguei 120 de luz", IntentAddExpense},
		{"ganhei 40 no freela", IntentAddIncome},
		{"bom dia", IntentUnknown},
		{"", IntentUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input).Intent)
		})
	}
}

func TestClassify_PriorityHelpBeforeIncome(t *testing.T) {
	// "ajuda" and "recebi" both match; help is checked first
	assert.Equal(t, IntentHelp, Classify("ajuda, recebi 10").Intent)
}

func TestClassify_NonTransactionIntentsSkipExtraction(t *testing.T) {
	cmd := Classify("saldo 100")

	assert.Equal(t, IntentCheckBalance, cmd.Intent)
	assert.Nil(t, cmd.Amount)
	assert.Empty(t, cmd.Description)
	assert.Empty(t, cmd.CategoryName)
}

func TestClassify_MissingAmount(t *testing.T) {
	cmd := Classify("gastei no mercado")

	assert.Equal(t, IntentAddExpense, cmd.Intent)
	assert.False(t, cmd.HasAmount())
	assert.Equal(t, "Alimentação", cmd.CategoryName)
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"uber para o trabalho", "Transporte"},
		{"conta de energia", "Moradia"},
		{"farmácia", "Saúde"},
		{"netflix", "Lazer"},
		{"curso de inglês", "Educação"},
		{"gastei 10", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, InferCategory(tt.input))
		})
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category string
		want     string
	}{
		{"strips verbs and amounts", "Gastei R$ 45,90 com almoço no centro", "Alimentação", "almoço centro"},
		{"keeps words ending in r", "comprei pizza por 80", "", "pizza por"},
		{"falls back to category", "gastei 30", "Transporte", "Transporte"},
		{"falls back to placeholder", "gastei 30", "", fallbackDescription},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractDescription(tt.text, tt.category))
		})
	}
}

package services

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Intent is the classified purpose of an inbound chat message
type Intent string

const (
	IntentAddIncome        Intent = "add_income"
	IntentAddExpense       Intent = "add_expense"
	IntentCheckBalance     Intent = "check_balance"
	IntentListTransactions Intent = "list_transactions"
	IntentCheckGoals       Intent = "check_goals"
	IntentHelp             Intent = "help"
	IntentUnknown          Intent = "unknown"
)

// ParsedCommand is the result of classifying one message
type ParsedCommand struct {
	Intent       Intent           `json:"intent"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Description  string           `json:"description,omitempty"`
	CategoryName string           `json:"category_name,omitempty"`
}

// HasAmount reports whether a strictly positive amount was found
func (p ParsedCommand) HasAmount() bool {
	return p.Amount != nil && p.Amount.IsPositive()
}

const fallbackDescription = "Transação via WhatsApp"

type keywordGroup struct {
	intent   Intent
	keywords []string
}

// intentGroups are checked in order; the first group with a match wins
var intentGroups = []keywordGroup{
	{IntentHelp, []string{"ajuda", "help", "comandos", "menu", "/start"}},
	{IntentAddIncome, []string{"recebi", "ganhei", "entrada", "receita", "salário", "salario"}},
	{IntentAddExpense, []string{"gastei", "paguei", "comprei", "despesa", "gasto", "saída", "saida"}},
	{IntentCheckBalance, []string{"saldo", "quanto tenho", "balanço", "balanco", "contas"}},
	{IntentListTransactions, []string{"transações", "transacoes", "extrato", "histórico", "historico", "últimas", "ultimas", "movimentações", "movimentacoes"}},
	{IntentCheckGoals, []string{"meta", "metas", "objetivo", "objetivos", "goal", "goals"}},
}

type categoryKeywords struct {
	name     string
	keywords []string
}

// categoryTable is scanned in order. Keywords are substrings of the
// lower-cased message, so none of them may occur inside the intent verbs.
var categoryTable = []categoryKeywords{
	{"Alimentação", []string{"alimentação", "alimentacao", "comida", "almoço", "almoco", "jantar", "café", "cafe", "lanche", "restaurante", "mercado", "supermercado", "padaria", "ifood"}},
	{"Transporte", []string{"transporte", "uber", "táxi", "taxi", "ônibus", "onibus", "metrô", "metro", "gasolina", "combustível", "combustivel", "estacionamento"}},
	{"Moradia", []string{"aluguel", "condomínio", "condominio", "iptu", "luz", "energia", "água", "agua", "gás", "botijão", "botijao", "internet"}},
	{"Saúde", []string{"saúde", "saude", "médico", "medico", "farmácia", "farmacia", "remédio", "remedio", "consulta", "hospital", "dentista"}},
	{"Lazer", []string{"lazer", "cinema", "netflix", "spotify", "diversão", "diversao", "festa", "barzinho", "viagem", "show"}},
	{"Educação", []string{"educação", "educacao", "curso", "escola", "faculdade", "livro", "estudo"}},
	{"Salário", []string{"salário", "salario", "pagamento", "trabalho", "freela", "freelancer"}},
	{"Outros", nil},
}

// stopWords are dropped from the message when building a description
var stopWords = map[string]bool{
	"recebi": true, "ganhei": true, "gastei": true, "paguei": true, "comprei": true,
	"entrada": true, "saída": true, "saida": true, "despesa": true, "receita": true,
	"com": true, "de": true, "do": true, "da": true, "em": true, "para": true,
	"no": true, "na": true, "reais": true, "real": true, "r$": true,
}

var amountTokenPattern = regexp.MustCompile(`(?i)(?:\bR\$|\$)?\s*\d[\d.,]*`)

// Classify maps a free-form Portuguese message to a ParsedCommand
func Classify(text string) ParsedCommand {
	lower := strings.ToLower(strings.TrimSpace(text))

	intent := IntentUnknown
	for _, group := range intentGroups {
		if containsAny(lower, group.keywords) {
			intent = group.intent
			break
		}
	}

	cmd := ParsedCommand{Intent: intent}
	if intent == IntentAddIncome || intent == IntentAddExpense {
		if amount, ok := ExtractAmount(text); ok {
			cmd.Amount = &amount
		}
		cmd.CategoryName = InferCategory(text)
		cmd.Description = extractDescription(text, cmd.CategoryName)
	}
	return cmd
}

// InferCategory returns the first category whose keywords occur in the text
func InferCategory(text string) string {
	lower := strings.ToLower(text)
	for _, category := range categoryTable {
		if containsAny(lower, category.keywords) {
			return category.name
		}
	}
	return ""
}

func extractDescription(text, categoryName string) string {
	stripped := amountTokenPattern.ReplaceAllString(text, " ")

	var kept []string
	for _, word := range strings.Fields(stripped) {
		if stopWords[strings.ToLower(strings.Trim(word, ",.!?;:"))] {
			continue
		}
		kept = append(kept, word)
	}

	description := strings.Trim(strings.Join(kept, " "), " ,.!?;:-")
	if len([]rune(description)) < 3 {
		if categoryName != "" {
			return categoryName
		}
		return fallbackDescription
	}
	return description
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

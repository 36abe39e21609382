package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/models"
	"github.com/Ananth-NQI/finbot-backend/internal/storage"
)

const recentTransactionsLimit = 10

// CommandResult is the reply envelope for an executed command
type CommandResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BalanceSnapshot is the Data payload of a check_balance reply
type BalanceSnapshot struct {
	Accounts []*models.Account `json:"accounts"`
	Total    decimal.Decimal   `json:"total"`
}

// CommandService executes parsed chat commands against the ledger
type CommandService struct {
	ledger storage.LedgerStore
	logger *zap.Logger
	now    func() time.Time
}

// NewCommandService creates a new command executor
func NewCommandService(ledger storage.LedgerStore, logger *zap.Logger) *CommandService {
	return &CommandService{
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

// Execute runs cmd on behalf of userID. User mistakes come back as a result
// with Success=false; only store faults are returned as errors.
func (c *CommandService) Execute(ctx context.Context, userID string, cmd ParsedCommand) (*CommandResult, error) {
	switch cmd.Intent {
	case IntentHelp:
		return c.help(), nil

	case IntentAddIncome:
		return c.addTransaction(ctx, userID, models.TransactionIncome, cmd)

	case IntentAddExpense:
		return c.addTransaction(ctx, userID, models.TransactionExpense, cmd)

	case IntentCheckBalance:
		return c.balance(ctx, userID)

	case IntentListTransactions:
		return c.transactions(ctx, userID)

	case IntentCheckGoals:
		return c.goals(ctx, userID)

	default:
		return &CommandResult{
			Success: false,
			Message: "Não entendi seu comando. Digite *ajuda* para ver os comandos disponíveis.",
		}, nil
	}
}

func (c *CommandService) help() *CommandResult {
	return &CommandResult{Success: true, Message: helpText}
}

func (c *CommandService) addTransaction(ctx context.Context, userID string, txType models.TransactionType, cmd ParsedCommand) (*CommandResult, error) {
	if !cmd.HasAmount() {
		return &CommandResult{
			Success: false,
			Message: "Não consegui identificar o valor. Por favor, inclua o valor na mensagem. Exemplo: \"Gastei 50 com alimentação\"",
		}, nil
	}

	account, err := c.ledger.GetFirstAccount(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return &CommandResult{
			Success: false,
			Message: "Você não tem nenhuma conta cadastrada. Acesse o sistema web para criar uma conta primeiro.",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	var categoryID *string
	if cmd.CategoryName != "" {
		category, err := c.ledger.FindCategoryByName(ctx, userID, cmd.CategoryName)
		switch {
		case err == nil:
			categoryID = &category.ID
		case errors.Is(err, storage.ErrNotFound):
			// uncategorized
		default:
			return nil, fmt.Errorf("find category: %w", err)
		}
	}

	typeText := "Receita"
	emoji := "💰"
	if txType == models.TransactionExpense {
		typeText = "Despesa"
		emoji = "💸"
	}

	description := strings.TrimSpace(cmd.Description)
	if description == "" {
		description = typeText + " via WhatsApp"
	}

	tx := &models.Transaction{
		UserID:      userID,
		AccountID:   account.ID,
		CategoryID:  categoryID,
		Type:        txType,
		Amount:      *cmd.Amount,
		Currency:    account.Currency,
		Description: description,
		Date:        c.now(),
		IsPaid:      true,
	}
	if err := c.ledger.RecordTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	c.logger.Info("💾 Transaction recorded via WhatsApp",
		zap.String("user_id", userID),
		zap.String("transaction_id", tx.ID),
		zap.String("type", string(txType)),
		zap.String("amount", tx.Amount.StringFixed(2)))

	categoryText := ""
	if tx.Category != nil {
		categoryText = fmt.Sprintf(" (%s)", tx.Category.Name)
	}

	return &CommandResult{
		Success: true,
		Message: fmt.Sprintf("%s *%s registrada!*\n\nValor: %s\nDescrição: %s%s\nConta: %s",
			emoji, typeText, formatBRL(tx.Amount), tx.Description, categoryText, account.Name),
		Data: tx,
	}, nil
}

func (c *CommandService) balance(ctx context.Context, userID string) (*CommandResult, error) {
	accounts, err := c.ledger.GetAccountsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	if len(accounts) == 0 {
		return &CommandResult{
			Success: false,
			Message: "Você não tem nenhuma conta cadastrada.",
		}, nil
	}

	total := decimal.Zero
	lines := make([]string, 0, len(accounts))
	for _, account := range accounts {
		total = total.Add(account.Balance)
		lines = append(lines, fmt.Sprintf("• %s: %s", account.Name, formatBRL(account.Balance)))
	}

	return &CommandResult{
		Success: true,
		Message: fmt.Sprintf("💰 *Seu Saldo*\n\n%s\n\n*Total: %s*", strings.Join(lines, "\n"), formatBRL(total)),
		Data:    BalanceSnapshot{Accounts: accounts, Total: total},
	}, nil
}

func (c *CommandService) transactions(ctx context.Context, userID string) (*CommandResult, error) {
	transactions, err := c.ledger.GetRecentTransactions(ctx, userID, recentTransactionsLimit)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	if len(transactions) == 0 {
		return &CommandResult{
			Success: true,
			Message: "📋 Você não tem nenhuma transação registrada.",
		}, nil
	}

	lines := make([]string, 0, len(transactions))
	for _, tx := range transactions {
		emoji, sign := "💸", "-"
		if tx.Type == models.TransactionIncome {
			emoji, sign = "💰", "+"
		}
		category := "Sem categoria"
		if tx.Category != nil {
			category = tx.Category.Name
		}
		lines = append(lines, fmt.Sprintf("%s %s%s - %s (%s) - %s",
			emoji, sign, formatBRL(tx.Amount), tx.Description, category, tx.Date.Format("02/01/2006")))
	}

	return &CommandResult{
		Success: true,
		Message: "📋 *Últimas Transações*\n\n" + strings.Join(lines, "\n"),
		Data:    transactions,
	}, nil
}

func (c *CommandService) goals(ctx context.Context, userID string) (*CommandResult, error) {
	goals, err := c.ledger.GetGoalsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}
	if len(goals) == 0 {
		return &CommandResult{
			Success: true,
			Message: "🎯 Você não tem nenhuma meta cadastrada. Acesse o sistema web para criar suas metas!",
		}, nil
	}

	blocks := make([]string, 0, len(goals))
	for _, goal := range goals {
		pct := goal.Progress()
		targetDate := ""
		if goal.TargetDate != nil {
			targetDate = fmt.Sprintf(" (até %s)", goal.TargetDate.Format("02/01/2006"))
		}
		blocks = append(blocks, fmt.Sprintf("🎯 *%s*%s\n%s %.0f%%\n%s / %s",
			goal.Name, targetDate, ProgressBar(pct), pct, formatBRL(goal.CurrentAmount), formatBRL(goal.TargetAmount)))
	}

	return &CommandResult{
		Success: true,
		Message: "🎯 *Suas Metas*\n\n" + strings.Join(blocks, "\n\n"),
		Data:    goals,
	}, nil
}

// ProgressBar renders a 10-cell bar for a percentage in [0, 100]
func ProgressBar(pct float64) string {
	filled := int(math.Round(pct / 10))
	if filled < 0 {
		filled = 0
	}
	if filled > 10 {
		filled = 10
	}
	return strings.Repeat("▓", filled) + strings.Repeat("░", 10-filled)
}

func formatBRL(amount decimal.Decimal) string {
	return "R$ " + amount.StringFixed(2)
}

const helpText = `🤖 *FinBot - Comandos Disponíveis*

💰 *Adicionar Receita:*
• "Recebi 500 de salário"
• "Ganhei 200 de freelance"

💸 *Adicionar Despesa:*
• "Gastei 50 com alimentação"
• "Paguei 100 de luz"

📊 *Consultar Saldo:*
• "Qual meu saldo"
• "Quanto tenho"

📋 *Ver Transações:*
• "Minhas transações"
• "Mostrar extrato"

🎯 *Ver Metas:*
• "Minhas metas"
• "Como estão meus objetivos"

Dica: Inclua categoria e descrição para organizar melhor!`

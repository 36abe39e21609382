package services

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// amountPatterns are tried in order over the raw message; the first one
// whose capture parses to a positive amount wins.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)R?\$\s*([\d.,]+)`),
	regexp.MustCompile(`(?i)([\d.,]+)\s*(?:reais|real|r\$)`),
	regexp.MustCompile(`([\d.,]*\d[\d.,]*)`),
}

// ParseAmount converts a pt-BR formatted number ("1.234,56", "50,00",
// "1,234.56", "50.5") into a decimal. ok is false when the text is not a
// number under those conventions.
func ParseAmount(text string) (amount decimal.Decimal, ok bool) {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return decimal.Zero, false
	}

	lastComma := strings.LastIndex(normalized, ",")
	lastDot := strings.LastIndex(normalized, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// The separator that comes last is the decimal point
		if lastComma > lastDot {
			normalized = strings.ReplaceAll(normalized, ".", "")
			normalized = strings.Replace(normalized, ",", ".", 1)
		} else {
			normalized = strings.ReplaceAll(normalized, ",", "")
		}

	case lastComma >= 0:
		if len(normalized)-lastComma-1 == 2 {
			normalized = strings.ReplaceAll(normalized[:lastComma], ",", "") + "." + normalized[lastComma+1:]
		} else {
			normalized = strings.ReplaceAll(normalized, ",", "")
		}

	case lastDot >= 0:
		groups := strings.Split(normalized, ".")
		if len(groups) > 2 || len(groups[len(groups)-1]) == 3 {
			normalized = strings.ReplaceAll(normalized, ".", "")
		}
	}

	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// ExtractAmount finds the first positive amount in a free-text message
func ExtractAmount(text string) (decimal.Decimal, bool) {
	for _, pattern := range amountPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		amount, ok := ParseAmount(match[1])
		if ok && amount.IsPositive() {
			return amount, true
		}
	}
	return decimal.Zero, false
}

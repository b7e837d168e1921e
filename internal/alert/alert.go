package alert

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the normalised order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

var (
	// ErrUnknownAction indicates the action field resolved to neither buy nor sell.
	ErrUnknownAction = errors.New("alert: unknown action")
	// ErrInvalidAmount indicates the amount is missing, non-numeric, or not positive.
	ErrInvalidAmount = errors.New("alert: invalid amount")
)

// Alert is a parsed trading signal received over the webhook.
type Alert struct {
	Raw    string
	TVID   string
	Symbol string
	Action string
	Side   Side
	Amount decimal.Decimal
}

// ParseSide resolves a raw action string into a Side. Matching is
// case-insensitive and by prefix so that alert texts like "Buy signal" or
// "SELL_LIMIT" still resolve. Anything that matches neither prefix is
// rejected rather than defaulted.
func ParseSide(action string) (Side, error) {
	normalized := strings.ToLower(strings.TrimSpace(action))
	switch {
	case strings.HasPrefix(normalized, "buy"):
		return SideBuy, nil
	case strings.HasPrefix(normalized, "sell"):
		return SideSell, nil
	default:
		return "", ErrUnknownAction
	}
}

// ParseAmount parses the quote-currency notional as a decimal. Sign and
// upper-bound checks are the pipeline's concern, so that a zero amount is
// reported as out of bounds rather than unparseable.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return amount, nil
}

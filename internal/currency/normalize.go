package currency

import (
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"
)

// baseDecimals is the implied fixed-point scale of chain amounts.
const baseDecimals = 18

var baseScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(baseDecimals), nil)

// Normalizer converts between base-unit integers and decimal display strings.
// It never aborts the pipeline: arithmetic anomalies degrade to a safe value
// and are logged.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer builds a Normalizer. A nil logger is replaced with a no-op.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// ToDecimal converts an 18-decimal fixed-point integer into a decimal string
// with trailing zeros trimmed. Exact for values of any size. A nil input is
// an internal anomaly and yields "0".
func (n *Normalizer) ToDecimal(baseUnits *big.Int) string {
	if baseUnits == nil {
		n.logger.Warn("to decimal called with nil amount")
		return "0"
	}
	rat := new(big.Rat).SetFrac(baseUnits, baseScale)
	return formatRat(rat)
}

// PricePerUnit returns numerator/denominator as a decimal string. A zero or
// nil denominator is an expected edge case (a token with no trades) and
// yields "0".
func (n *Normalizer) PricePerUnit(numerator, denominator *big.Int) string {
	if numerator == nil {
		n.logger.Warn("price per unit called with nil numerator")
		return "0"
	}
	if denominator == nil || denominator.Sign() == 0 {
		return "0"
	}
	rat := new(big.Rat).SetFrac(numerator, denominator)
	return formatRat(rat)
}

// AddDecimal returns a+b for two decimal strings. A malformed operand leaves
// the accumulator unchanged rather than corrupting it.
func (n *Normalizer) AddDecimal(a, b string) string {
	return n.combine(a, b, false)
}

// SubDecimal returns a-b for two decimal strings, with the same degradation
// policy as AddDecimal.
func (n *Normalizer) SubDecimal(a, b string) string {
	return n.combine(a, b, true)
}

func (n *Normalizer) combine(a, b string, negate bool) string {
	left, ok := parseRat(a)
	if !ok {
		n.logger.Warn("invalid decimal accumulator", zap.String("value", a))
		left = new(big.Rat)
	}
	right, ok := parseRat(b)
	if !ok {
		n.logger.Warn("invalid decimal operand", zap.String("value", b))
		return formatRat(left)
	}
	if negate {
		right.Neg(right)
	}
	return formatRat(left.Add(left, right))
}

// ParseBaseUnits converts a decimal string back into base units. It is the
// exact inverse of ToDecimal for representable values and rejects inputs
// with more than 18 fractional digits.
func ParseBaseUnits(value string) (*big.Int, error) {
	rat, ok := parseRat(value)
	if !ok {
		return nil, fmt.Errorf("invalid decimal: %q", value)
	}
	num := new(big.Int).Mul(rat.Num(), baseScale)
	out, rem := new(big.Int).QuoRem(num, rat.Denom(), new(big.Int))
	if rem.Sign() != 0 {
		return nil, fmt.Errorf("decimal %q exceeds %d fractional digits", value, baseDecimals)
	}
	return out, nil
}

func parseRat(value string) (*big.Rat, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, false
	}
	rat, ok := new(big.Rat).SetString(value)
	if !ok {
		return nil, false
	}
	return rat, true
}

func formatRat(rat *big.Rat) string {
	text := rat.FloatString(baseDecimals)
	if !strings.Contains(text, ".") {
		return text
	}
	text = strings.TrimRight(text, "0")
	text = strings.TrimSuffix(text, ".")
	if text == "" || text == "-" {
		return "0"
	}
	return text
}

package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrIncompatibleUnits is returned when a volume cannot be expressed in the
// unit of its rate.
var ErrIncompatibleUnits = errors.New("incompatible units")

type dimension int

const (
	dimTime dimension = iota + 1
	dimSize
	dimCount
)

type unitFactor struct {
	dim dimension
	// factor converts one of the unit into the base unit of its dimension.
	factor decimal.Decimal
}

var (
	kib = decimal.NewFromInt(1024)

	unitFactors = map[string]unitFactor{
		"second": {dimTime, decimal.NewFromInt(1)},
		"minute": {dimTime, decimal.NewFromInt(60)},
		"hour":   {dimTime, decimal.NewFromInt(3600)},
		"day":    {dimTime, decimal.NewFromInt(86400)},

		"byte":     {dimSize, decimal.NewFromInt(1)},
		"kilobyte": {dimSize, kib},
		"megabyte": {dimSize, kib.Pow(decimal.NewFromInt(2))},
		"gigabyte": {dimSize, kib.Pow(decimal.NewFromInt(3))},
		"terabyte": {dimSize, kib.Pow(decimal.NewFromInt(4))},

		"unit":    {dimCount, decimal.NewFromInt(1)},
		"request": {dimCount, decimal.NewFromInt(1)},
	}

	// Short forms reported by metering agents.
	unitAliases = map[string]string{
		"s":  "second",
		"B":  "byte",
		"KB": "kilobyte",
		"MB": "megabyte",
		"GB": "gigabyte",
		"TB": "terabyte",
	}
)

func canonicalUnit(u string) string {
	if c, ok := unitAliases[u]; ok {
		return c
	}
	return u
}

// Convert expresses volume, measured in from, in the unit to. Equal units
// convert to themselves even when unknown to the table.
func Convert(volume decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = canonicalUnit(from), canonicalUnit(to)
	if from == to {
		return volume, nil
	}
	f, okFrom := unitFactors[from]
	t, okTo := unitFactors[to]
	if !okFrom || !okTo || f.dim != t.dim {
		return decimal.Zero, fmt.Errorf("%s to %s: %w", from, to, ErrIncompatibleUnits)
	}
	return volume.Mul(f.factor).Div(t.factor), nil
}

package pricing

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/edvin/metering/internal/model"
)

// CostPlaces is the precision costs are rounded to.
const CostPlaces = 2

// Engine prices statements against a rate schedule.
type Engine struct {
	rates  RateSchedule
	logger zerolog.Logger
}

func NewEngine(rates RateSchedule, logger zerolog.Logger) *Engine {
	return &Engine{rates: rates, logger: logger.With().Str("component", "pricing").Logger()}
}

// LineCost prices a single volume, returning the cost and the volume
// expressed in the rate's unit. ok is false when the service has no rate or
// the volume cannot be converted to the rate's unit.
func (e *Engine) LineCost(service string, volume decimal.Decimal, unit string) (cost, converted decimal.Decimal, rate Rate, ok bool) {
	rate, ok = e.rates.Lookup(service)
	if !ok {
		return decimal.Zero, decimal.Zero, Rate{}, false
	}
	converted, err := Convert(volume, unit, rate.Unit)
	if err != nil {
		e.logger.Warn().Err(err).Str("service", service).Msg("cannot price usage")
		return decimal.Zero, decimal.Zero, Rate{}, false
	}
	return converted.Mul(rate.Rate).RoundBank(CostPlaces), converted, rate, true
}

// Price fills in the cost of every service line of the statement, the
// total of every resource and the statement total. Priced lines are
// restated in the unit of their rate. Totals are sums of the
// already rounded line costs. A line that cannot be priced is marked
// RateMissing, costs nothing and does not stop the rest of the statement.
func (e *Engine) Price(st *model.Statement) {
	total := decimal.Zero
	for _, res := range st.Resources {
		resTotal := decimal.Zero
		for _, svc := range res.Services {
			cost, converted, rate, ok := e.LineCost(svc.Name, svc.Volume, svc.Unit)
			if !ok {
				svc.RateMissing = true
				svc.Cost = model.NewAmount(decimal.Zero)
				svc.Rate = nil
				continue
			}
			r := rate.Rate
			svc.Volume = converted
			svc.Unit = rate.Unit
			svc.Rate = &r
			svc.Cost = model.NewAmount(cost)
			resTotal = resTotal.Add(cost)
		}
		res.TotalCost = model.NewAmount(resTotal)
		total = total.Add(resTotal)
	}
	st.TotalCost = model.NewAmount(total)
}

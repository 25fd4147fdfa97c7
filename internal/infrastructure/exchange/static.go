// Package exchange provides exchange-rate sources for the currency normalizer
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const inversePrecision = 10

// Rate is one configured conversion, effective from a calendar day onwards
type Rate struct {
	From          string          `mapstructure:"from"`
	To            string          `mapstructure:"to"`
	Rate          decimal.Decimal `mapstructure:"rate"`
	EffectiveFrom time.Time       `mapstructure:"effective_from"`
}

type pair struct{ from, to string }

// StaticProvider serves a fixed set of dated rates, typically from configuration
type StaticProvider struct {
	rates map[pair][]Rate
}

// NewStaticProvider validates and indexes rates
func NewStaticProvider(rates []Rate) (*StaticProvider, error) {
	p := &StaticProvider{rates: make(map[pair][]Rate)}
	for _, r := range rates {
		r.From, r.To = strings.ToUpper(r.From), strings.ToUpper(r.To)
		if r.From == "" || r.To == "" {
			return nil, fmt.Errorf("exchange rate needs both currencies")
		}
		if !r.Rate.IsPositive() {
			return nil, fmt.Errorf("exchange rate %s->%s must be positive, got %s", r.From, r.To, r.Rate)
		}
		k := pair{r.From, r.To}
		p.rates[k] = append(p.rates[k], r)
	}
	for _, list := range p.rates {
		sort.Slice(list, func(i, j int) bool {
			return list[i].EffectiveFrom.Before(list[j].EffectiveFrom)
		})
	}
	return p, nil
}

// GetExchangeRate returns the latest rate effective on the given day, falling back to
// the inverse of the opposite direction
func (p *StaticProvider) GetExchangeRate(ctx context.Context, from, to string, on time.Time) (decimal.Decimal, error) {
	r, err := p.DirectRate(ctx, from, to, on)
	if !errors.Is(err, port.ErrNotFound) {
		return r, err
	}
	if r, err := p.DirectRate(ctx, to, from, on); err == nil {
		return invert(r), nil
	}
	return decimal.Zero, err
}

// DirectRate is GetExchangeRate without the inverse fallback
func (p *StaticProvider) DirectRate(ctx context.Context, from, to string, on time.Time) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if r, ok := p.latest(pair{from, to}, on); ok {
		return r, nil
	}
	return decimal.Zero, fmt.Errorf("exchange rate %s->%s on %s: %w", from, to, on.Format(time.DateOnly), port.ErrNotFound)
}

func (p *StaticProvider) latest(k pair, on time.Time) (decimal.Decimal, bool) {
	list := p.rates[k]
	day := rate.Day(on)
	for i := len(list) - 1; i >= 0; i-- {
		if !rate.Day(list[i].EffectiveFrom).After(day) {
			return list[i].Rate, true
		}
	}
	return decimal.Zero, false
}

func invert(r decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).DivRound(r, inversePrecision)
}

// DirectSource is implemented by providers that can answer for exactly one direction
type DirectSource interface {
	DirectRate(ctx context.Context, from, to string, on time.Time) (decimal.Decimal, error)
}

// Chain asks each provider in turn. A provider reporting port.ErrNotFound passes the
// question on; any other error stops the chain. A stored rate for the asked direction
// always beats an inverse, so inverses are only derived once no DirectSource knows the
// direct pair.
type Chain struct {
	providers []port.ExchangeRateProvider
	logger    *zap.Logger
}

// NewChain creates a provider chain
func NewChain(logger *zap.Logger, providers ...port.ExchangeRateProvider) *Chain {
	return &Chain{providers: providers, logger: logger}
}

// GetExchangeRate implements port.ExchangeRateProvider
func (c *Chain) GetExchangeRate(ctx context.Context, from, to string, on time.Time) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	for i, p := range c.providers {
		var (
			r   decimal.Decimal
			err error
		)
		if d, ok := p.(DirectSource); ok {
			r, err = d.DirectRate(ctx, from, to, on)
		} else {
			r, err = p.GetExchangeRate(ctx, from, to, on)
		}
		if found, err := c.check(i, from, to, err); found || err != nil {
			return r, err
		}
	}

	for i, p := range c.providers {
		d, ok := p.(DirectSource)
		if !ok {
			continue
		}
		r, err := d.DirectRate(ctx, to, from, on)
		if found, err := c.check(i, to, from, err); err != nil {
			return decimal.Zero, err
		} else if found {
			return invert(r), nil
		}
	}
	return decimal.Zero, fmt.Errorf("exchange rate %s->%s on %s: %w", from, to, on.Format(time.DateOnly), port.ErrNotFound)
}

// check reports whether a provider answered, and passes on any failure other than a miss
func (c *Chain) check(i int, from, to string, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, port.ErrNotFound):
		return false, nil
	default:
		c.logger.Error("Exchange rate provider failed",
			zap.Int("provider", i),
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err))
		return false, err
	}
}

var (
	_ port.ExchangeRateProvider = (*StaticProvider)(nil)
	_ port.ExchangeRateProvider = (*Chain)(nil)
	_ DirectSource              = (*StaticProvider)(nil)
)

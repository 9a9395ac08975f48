package marketmaker

import (
	"math"

	"github.com/rs/zerolog"
)

// LayeredSymmetricQuoting quotes a symmetric ladder around the external
// price: NumLevels bids below and NumLevels asks above, spaced by
// PriceStepPercent, with BaseSpreadPercent between the innermost pair.
type LayeredSymmetricQuoting struct {
	cfg    *Config
	logger zerolog.Logger
}

// NewLayeredSymmetricQuoting creates the default quoting strategy.
func NewLayeredSymmetricQuoting(cfg *Config, logger zerolog.Logger) Strategy {
	return &LayeredSymmetricQuoting{
		cfg:    cfg,
		logger: logger.With().Str("component", "LayeredSymmetricQuoting").Logger(),
	}
}

// Quotes implements Strategy.
func (s *LayeredSymmetricQuoting) Quotes(currentPrice float64) []Quote {
	baseHalfSpread := currentPrice * (s.cfg.BaseSpreadPercent / 2 / 100)
	priceStep := currentPrice * (s.cfg.PriceStepPercent / 100)

	quotes := make([]Quote, 0, s.cfg.NumLevels*2)
	for i := 1; i <= s.cfg.NumLevels; i++ {
		bidPrice := roundPrice(currentPrice - baseHalfSpread - float64(i-1)*priceStep)
		askPrice := roundPrice(currentPrice + baseHalfSpread + float64(i-1)*priceStep)

		quotes = append(quotes,
			Quote{Side: "buy", Price: bidPrice, Quantity: s.cfg.OrderSize},
			Quote{Side: "sell", Price: askPrice, Quantity: s.cfg.OrderSize},
		)

		s.logger.Debug().
			Int("level", i).
			Float64("bid_price", bidPrice).
			Float64("ask_price", askPrice).
			Int64("quantity", s.cfg.OrderSize).
			Msg("Calculated quote pair")
	}
	return quotes
}

func roundPrice(p float64) float64 {
	return math.Round(p*1e8) / 1e8
}

var _ Strategy = (*LayeredSymmetricQuoting)(nil)

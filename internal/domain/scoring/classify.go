// Package scoring turns price moves into outcomes and outcomes into guesser statistics.
package scoring

import (
	"github.com/okian/bullbear/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Classify maps a price pair to a direction. Only a strict rise is Up;
// an unchanged price counts as Down.
func Classify(priceBefore, priceAfter decimal.Decimal) model.Direction {
	if priceAfter.GreaterThan(priceBefore) {
		return model.Up
	}
	return model.Down
}

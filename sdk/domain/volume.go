package domain

import (
	"github.com/shopspring/decimal"
)

// VolumePrecision decimales de volumen aceptados por los terminales.
const VolumePrecision = 2

// RoundVolume calcula round(volume * factor, 2) en aritmética decimal.
//
// Monótona no decreciente en factor para volume >= 0. El redondeo es half-up
// (decimal.Round), así 0.125 → 0.13 sin depender de la representación binaria.
func RoundVolume(volume, factor float64) float64 {
	v := decimal.NewFromFloat(volume).Mul(decimal.NewFromFloat(factor)).Round(VolumePrecision)
	return v.InexactFloat64()
}

// ScaleVolume aplica el modo de cálculo del link al volumen de origen.
func ScaleVolume(volume float64, link Link) float64 {
	if link.LotCalculationMode == LotModeMarginRatio && link.EquityRatio > 0 {
		return RoundVolume(volume, link.EquityRatio)
	}
	return RoundVolume(volume, link.LotMultiplier)
}

// EquityRatio equity destino / equity origen; 0 si alguna no es positiva.
//
// Un ratio 0 hace que ScaleVolume vuelva al multiplicador del link.
func EquityRatio(destinationEquity, sourceEquity float64) float64 {
	if destinationEquity <= 0 || sourceEquity <= 0 {
		return 0
	}
	return destinationEquity / sourceEquity
}

// IsZeroVolume indica si un volumen redondeado no es ejecutable.
func IsZeroVolume(volume float64) bool {
	return decimal.NewFromFloat(volume).Round(VolumePrecision).IsZero()
}

// RestingOrderType elige el tipo de orden resting para ejecutar al precio original.
//
// Limit si el precio original es mejor que el mercado actual, Stop en caso contrario,
// de modo que la orden sólo se llena cuando el mercado vuelve al nivel buscado.
//
//	Buy:  ask > price → BuyLimit,  si no BuyStop
//	Sell: bid < price → SellLimit, si no SellStop
func RestingOrderType(side Side, price, bid, ask float64) OrderType {
	if side == SideSell {
		if bid < price {
			return OrderSellLimit
		}
		return OrderSellStop
	}
	if ask > price {
		return OrderBuyLimit
	}
	return OrderBuyStop
}

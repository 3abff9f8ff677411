// Package position 实现仓位测算与成本账：纯函数，持久化由编排层负责。
package position

import (
	"errors"

	"tiller/internal/types"
)

// ErrInvalidInput 表示输入不满足前置条件（如 price <= 0）。
var ErrInvalidInput = errors.New("invalid input")

// BuySize 是一次买入的测算结果。
type BuySize struct {
	QuoteToUse float64 `json:"quote_to_use"`
	Quantity   float64 `json:"quantity"`
}

// SellSize 是一次卖出的测算结果。请求量超出可交易量时按可交易量钳制，
// Clamped 置位；编排层视其为"意图部分成交"，不是失败。
type SellSize struct {
	Quantity  float64 `json:"quantity"`
	Requested float64 `json:"requested"`
	Clamped   bool    `json:"clamped"`
}

// CalculateBuy 按稳定币余额与单笔最大占比折算买入数量。
// quote_to_use = balance * maxPositionPct；quantity = quote_to_use / price。
func CalculateBuy(quoteBalance, price, maxPositionPct float64) (BuySize, error) {
	if price <= 0 {
		return BuySize{}, ErrInvalidInput
	}
	if quoteBalance <= 0 || maxPositionPct <= 0 {
		return BuySize{}, nil
	}
	quoteToUse := decFromFloat(quoteBalance).Mul(decFromFloat(maxPositionPct))
	qty := quoteToUse.Div(decFromFloat(price))
	return BuySize{
		QuoteToUse: decToFloat(quoteToUse),
		Quantity:   decToFloat(qty),
	}, nil
}

// CalculateSell 按请求比例折算卖出数量并钳制在可交易量内，core 层永不触碰。
func CalculateSell(pos types.PositionState, requestedPct float64) SellSize {
	if requestedPct < 0 {
		requestedPct = 0
	}
	requested := decFromFloat(pos.TotalQuantity).Mul(decFromFloat(requestedPct))
	tradeable := decFromFloat(pos.TradeableQuantity())

	out := SellSize{Requested: decToFloat(requested)}
	if requested.GreaterThan(tradeable) {
		out.Quantity = decToFloat(tradeable)
		out.Clamped = true
		return out
	}
	out.Quantity = decToFloat(requested)
	return out
}

// ClampSell 将一个已知数量钳制到可交易量（core-protection 的执行侧）。
func ClampSell(pos types.PositionState, quantity float64) SellSize {
	requested := decFromFloat(quantity)
	tradeable := decFromFloat(pos.TradeableQuantity())
	out := SellSize{Requested: quantity}
	if requested.GreaterThan(tradeable) {
		out.Quantity = decToFloat(tradeable)
		out.Clamped = true
		return out
	}
	out.Quantity = quantity
	return out
}

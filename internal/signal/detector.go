// Package signal 实现双均线趋势判定（golden/death cross 的窗口均值形式）。
package signal

import (
	"math"

	"github.com/markcheno/go-talib"
)

type Classification string

const (
	Bullish          Classification = "BULLISH"
	Bearish          Classification = "BEARISH"
	Neutral          Classification = "NEUTRAL"
	InsufficientData Classification = "INSUFFICIENT_DATA"
)

// Result 是一次信号计算的全部输出，随决策计划落入审计记录。
type Result struct {
	MAShort        float64        `json:"ma_short"`
	MALong         float64        `json:"ma_long"`
	Classification Classification `json:"classification"`
	// Strength = abs(ma_short-ma_long)/ma_long*100；ma_long 为 0 时取 0。
	Strength    float64 `json:"strength"`
	ShortWindow int     `json:"short_window"`
	LongWindow  int     `json:"long_window"`
	Points      int     `json:"points"`
}

// Detect 对收盘价序列计算短/长两条简单均线并分类。
// 序列不足 longWindow 时软失败，返回 INSUFFICIENT_DATA，从不报错。
func Detect(closes []float64, shortWindow, longWindow int) Result {
	res := Result{
		Classification: InsufficientData,
		ShortWindow:    shortWindow,
		LongWindow:     longWindow,
		Points:         len(closes),
	}
	if shortWindow <= 0 || longWindow <= 0 || shortWindow > longWindow {
		return res
	}
	if len(closes) < longWindow {
		return res
	}

	res.MAShort = lastSMA(closes, shortWindow)
	res.MALong = lastSMA(closes, longWindow)

	switch {
	case res.MAShort > res.MALong:
		res.Classification = Bullish
	case res.MAShort < res.MALong:
		res.Classification = Bearish
	default:
		res.Classification = Neutral
	}
	if res.MALong != 0 {
		strength := math.Abs(res.MAShort-res.MALong) / res.MALong * 100
		if !math.IsNaN(strength) && !math.IsInf(strength, 0) {
			res.Strength = strength
		}
	}
	return res
}

// lastSMA 取 talib SMA 序列的末值（最近 window 个点的算术平均）。
func lastSMA(closes []float64, window int) float64 {
	if window == 1 {
		return closes[len(closes)-1]
	}
	out := talib.Sma(closes, window)
	if len(out) == 0 {
		return 0
	}
	return out[len(out)-1]
}

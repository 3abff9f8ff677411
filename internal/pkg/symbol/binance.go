package symbol

import "strings"

type BinanceConverter struct{}

// ToExchange 去掉分隔符：BTC/USDT -> BTCUSDT。
func (BinanceConverter) ToExchange(internal string) string {
	s := strings.ToUpper(strings.TrimSpace(internal))
	return strings.ReplaceAll(s, "/", "")
}

func (BinanceConverter) FromExchange(raw string) string {
	return Parse(raw).Internal()
}

var Binance = BinanceConverter{}

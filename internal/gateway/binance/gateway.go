// Package binance 基于 go-binance SDK 实现 exchange 契约（现货）。
package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tiller/internal/gateway/exchange"
	symbolpkg "tiller/internal/pkg/symbol"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

const maxKlineLimit = 1000

// Gateway 同时实现 exchange.MarketData 与 exchange.Account。
type Gateway struct {
	cfg    Config
	client *gobinance.Client
}

func New(cfg Config) (*Gateway, error) {
	final := cfg.withDefaults()
	client := gobinance.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Gateway{cfg: final, client: client}, nil
}

func (g *Gateway) Name() string { return "binance" }

func (g *Gateway) GetPrice(ctx context.Context, symbol string) (float64, error) {
	clean, err := cleanSymbol(symbol)
	if err != nil {
		return 0, err
	}
	prices, err := g.client.NewListPricesService().Symbol(clean).Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 || prices[0] == nil {
		return 0, fmt.Errorf("no price returned for %s", clean)
	}
	price := parseFloat(prices[0].Price)
	if price <= 0 {
		return 0, fmt.Errorf("invalid price %q for %s", prices[0].Price, clean)
	}
	return price, nil
}

func (g *Gateway) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]exchange.Kline, error) {
	clean, err := cleanSymbol(symbol)
	if err != nil {
		return nil, err
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	kls, err := g.client.NewKlinesService().Symbol(clean).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]exchange.Kline, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, exchange.Kline{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func (g *Gateway) GetBalances(ctx context.Context) (map[string]Balance, error) {
	acct, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Balance, len(acct.Balances))
	for _, b := range acct.Balances {
		free := parseFloat(b.Free)
		locked := parseFloat(b.Locked)
		if free == 0 && locked == 0 {
			continue
		}
		out[strings.ToUpper(b.Asset)] = Balance{Asset: strings.ToUpper(b.Asset), Free: free, Locked: locked}
	}
	return out, nil
}

func (g *Gateway) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.OrderSide, quantity float64) (*exchange.OrderResult, error) {
	clean, err := cleanSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %v", quantity)
	}
	qtyStr := formatQuantity(quantity, g.cfg.QuantityPrecision)
	res, err := g.client.NewCreateOrderService().
		Symbol(clean).
		Side(gobinance.SideType(side)).
		Type(gobinance.OrderTypeMarket).
		Quantity(qtyStr).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	filledQty := parseFloat(res.ExecutedQuantity)
	filledPrice := averageFillPrice(res)
	return &exchange.OrderResult{
		OrderID:        strconv.FormatInt(res.OrderID, 10),
		Symbol:         symbol,
		Side:           side,
		FilledQuantity: filledQty,
		FilledPrice:    filledPrice,
		SubmittedAt:    time.Now().UTC(),
	}, nil
}

// Balance 是 exchange.Balance 的别名，避免调用方多引一个包。
type Balance = exchange.Balance

// averageFillPrice 用累计成交额/成交量求平均成交价，回退到首个 fill 价。
func averageFillPrice(res *gobinance.CreateOrderResponse) float64 {
	qty := parseFloat(res.ExecutedQuantity)
	quote := parseFloat(res.CummulativeQuoteQuantity)
	if qty > 0 && quote > 0 {
		return quote / qty
	}
	for _, fill := range res.Fills {
		if fill == nil {
			continue
		}
		if p := parseFloat(fill.Price); p > 0 {
			return p
		}
	}
	return 0
}

// formatQuantity 向下取整到精度位，避免超出交易所 LOT_SIZE 被拒单。
func formatQuantity(qty float64, precision int) string {
	return decimal.NewFromFloat(qty).RoundDown(int32(precision)).String()
}

func cleanSymbol(symbol string) (string, error) {
	// Binance 现货符号不含斜杠（BTC/USDT -> BTCUSDT）。
	clean := symbolpkg.Binance.ToExchange(symbol)
	if clean == "" {
		return "", fmt.Errorf("invalid symbol %q", symbol)
	}
	return clean, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

var (
	_ exchange.MarketData = (*Gateway)(nil)
	_ exchange.Account    = (*Gateway)(nil)
	_ exchange.Exchange   = (*Gateway)(nil)
)

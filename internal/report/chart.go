// Package report 渲染价格与成本基线的 HTML 报表（展示用途，非决策输入）。
package report

import (
	"fmt"
	"io"
	"time"

	"tiller/internal/types"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Input 汇总一次报表渲染所需的数据。
type Input struct {
	Symbol        string
	History       []types.PricePoint
	AverageCost   float64
	RealizedPnL   float64
	UnrealizedPnL float64
}

// RenderPriceChart 输出价格曲线与平均成本水平线。
func RenderPriceChart(w io.Writer, in Input) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s 价格与成本", in.Symbol),
			Subtitle: fmt.Sprintf("realized %+.2f / unrealized %+.2f",
				in.RealizedPnL, in.UnrealizedPnL),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)

	xAxis := make([]string, len(in.History))
	prices := make([]opts.LineData, len(in.History))
	costs := make([]opts.LineData, len(in.History))
	for i, pt := range in.History {
		xAxis[i] = pt.ObservedAt.Format(time.DateTime)
		prices[i] = opts.LineData{Value: pt.Value}
		costs[i] = opts.LineData{Value: in.AverageCost}
	}

	line.SetXAxis(xAxis).
		AddSeries("price", prices).
		AddSeries("average cost", costs)
	return line.Render(w)
}

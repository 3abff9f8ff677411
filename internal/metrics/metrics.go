// Package metrics 暴露 Prometheus 指标（/metrics）。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvocationsTotal 按最终动作与原因码计数每次再平衡调用。
	InvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiller_rebalance_invocations_total",
		Help: "Rebalance invocations by resulting action and reason code.",
	}, []string{"action", "reason"})

	// CollaboratorErrors 按操作计数协作方硬失败（价格、余额、下单）。
	CollaboratorErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiller_collaborator_errors_total",
		Help: "Hard collaborator failures by operation.",
	}, []string{"op"})

	// OrdersExecuted 按方向计数实际提交成功的订单。
	OrdersExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tiller_orders_executed_total",
		Help: "Executed market orders by side.",
	}, []string{"side"})

	// DecisionDuration 记录一次完整调用的耗时分布。
	DecisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tiller_decision_duration_seconds",
		Help:    "Wall time of one rebalance invocation.",
		Buckets: prometheus.DefBuckets,
	})
)

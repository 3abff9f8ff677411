// Package notifier 在产生实际成交时向外推送消息。
package notifier

// Notifier 是推送通道的最小接口；实现必须自行吞掉失败（通知不阻塞决策）。
type Notifier interface {
	SendText(text string) error
}

// Noop 丢弃全部消息，用于未配置通知通道的部署。
type Noop struct{}

func (Noop) SendText(string) error { return nil }

// Package market 提供决策引擎之外的行情辅助数据（当前仅恐惧贪婪指数）。
package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"tiller/internal/logger"

	"github.com/tidwall/gjson"
)

const (
	fearGreedEndpoint     = "https://api.alternative.me/fng/?limit=1"
	fearGreedErrorBackoff = 2 * time.Minute
	fearGreedFallback     = 12 * time.Hour
)

// FearGreedData 是最近一次成功拉取的恐惧贪婪指数。
type FearGreedData struct {
	Value          int
	Classification string
	Timestamp      time.Time
	LastUpdate     time.Time
}

// FearGreedService 懒刷新地缓存指数；拉取失败只降级不报错，
// 指数数据永远不是决策的权威输入。
type FearGreedService struct {
	endpoint string
	client   *http.Client

	mu         sync.RWMutex
	data       FearGreedData
	nextUpdate time.Time
	refreshMu  sync.Mutex
}

func NewFearGreedService() *FearGreedService {
	return &FearGreedService{
		endpoint: fearGreedEndpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Get 返回缓存值；从未成功拉取过时 ok=false。
func (s *FearGreedService) Get() (FearGreedData, bool) {
	if s == nil {
		return FearGreedData{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, !s.data.LastUpdate.IsZero()
}

// RefreshIfStale 在缓存过期时拉取一次，多个调用方并发时只有一个发起请求。
func (s *FearGreedService) RefreshIfStale(ctx context.Context) {
	if s == nil {
		return
	}
	now := time.Now()
	s.mu.RLock()
	next := s.nextUpdate
	last := s.data.LastUpdate
	s.mu.RUnlock()
	if !last.IsZero() && !next.IsZero() && now.Before(next) {
		return
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	next = s.nextUpdate
	last = s.data.LastUpdate
	s.mu.RUnlock()
	if !last.IsZero() && !next.IsZero() && now.Before(next) {
		return
	}
	if err := s.refresh(ctx); err != nil {
		logger.Warnf("Fear & Greed 刷新失败: %v", err)
		s.mu.Lock()
		s.nextUpdate = time.Now().Add(fearGreedErrorBackoff)
		s.mu.Unlock()
	}
}

func (s *FearGreedService) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fear & greed status=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	entry := gjson.GetBytes(body, "data.0")
	if !entry.Exists() {
		return fmt.Errorf("fear & greed response missing data")
	}
	value := int(entry.Get("value").Int())
	classification := strings.TrimSpace(entry.Get("value_classification").String())
	if value <= 0 || classification == "" {
		return fmt.Errorf("fear & greed response malformed: %s", entry.Raw)
	}
	ts := time.Unix(entry.Get("timestamp").Int(), 0).UTC()

	next := fearGreedFallback
	if until := gjson.GetBytes(body, "data.0.time_until_update").Int(); until > 0 {
		next = time.Duration(until) * time.Second
	}

	s.mu.Lock()
	s.data = FearGreedData{
		Value:          value,
		Classification: classification,
		Timestamp:      ts,
		LastUpdate:     time.Now(),
	}
	s.nextUpdate = time.Now().Add(next)
	s.mu.Unlock()
	logger.Infof("Fear & Greed 更新: value=%d (%s)", value, classification)
	return nil
}

// Package tiers 管理分层与风控参数档案：YAML 定义、jsonschema 校验、
// fsnotify 热更新。引擎每次调用时解析当前生效档案。
package tiers

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tiller/internal/logger"
	"tiller/internal/types"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Profile 是一组命名的分层分配与风控阈值。
type Profile struct {
	Name        string  `mapstructure:"-" yaml:"-"`
	Description string  `mapstructure:"description" yaml:"description"`
	CorePct     float64 `mapstructure:"core_pct" yaml:"core_pct"`
	SwingPct    float64 `mapstructure:"swing_pct" yaml:"swing_pct"`
	ActivePct   float64 `mapstructure:"active_pct" yaml:"active_pct"`

	MaxDailyTrades     int     `mapstructure:"max_daily_trades" yaml:"max_daily_trades"`
	MinIntervalSeconds int     `mapstructure:"min_interval_seconds" yaml:"min_interval_seconds"`
	ReservePct         float64 `mapstructure:"reserve_pct" yaml:"reserve_pct"`
	MaxPositionPct     float64 `mapstructure:"max_position_pct" yaml:"max_position_pct"`
	MinProfitPct       float64 `mapstructure:"min_profit_pct" yaml:"min_profit_pct"`
	SellPct            float64 `mapstructure:"sell_pct" yaml:"sell_pct"`
	TargetAllocPct     float64 `mapstructure:"target_allocation_pct" yaml:"target_allocation_pct"`
}

// Tiers 返回档案中的层级分配。
func (p Profile) Tiers() types.TierAllocation {
	return types.TierAllocation{CorePct: p.CorePct, SwingPct: p.SwingPct, ActivePct: p.ActivePct}
}

// MinInterval 返回最小下单间隔。
func (p Profile) MinInterval() time.Duration {
	return time.Duration(p.MinIntervalSeconds) * time.Second
}

func (p Profile) validate() error {
	if err := p.Tiers().Validate(); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	if p.MaxDailyTrades <= 0 {
		return fmt.Errorf("profile %s: max_daily_trades must be > 0", p.Name)
	}
	for name, pct := range map[string]float64{
		"reserve_pct":           p.ReservePct,
		"max_position_pct":      p.MaxPositionPct,
		"sell_pct":              p.SellPct,
		"target_allocation_pct": p.TargetAllocPct,
	} {
		if pct < 0 || pct > 1 {
			return fmt.Errorf("profile %s: %s out of range: %v", p.Name, name, pct)
		}
	}
	if p.MinProfitPct < 0 {
		return fmt.Errorf("profile %s: min_profit_pct must be >= 0", p.Name)
	}
	return nil
}

// profileSchema 先于 Go 侧校验拦截形状错误（未知字段、类型不符）。
const profileSchema = `{
  "type": "object",
  "properties": {
    "description": {"type": "string"},
    "core_pct": {"type": "number", "minimum": 0, "maximum": 1},
    "swing_pct": {"type": "number", "minimum": 0, "maximum": 1},
    "active_pct": {"type": "number", "minimum": 0, "maximum": 1},
    "max_daily_trades": {"type": "integer", "minimum": 1},
    "min_interval_seconds": {"type": "integer", "minimum": 0},
    "reserve_pct": {"type": "number", "minimum": 0, "maximum": 1},
    "max_position_pct": {"type": "number", "minimum": 0, "maximum": 1},
    "min_profit_pct": {"type": "number", "minimum": 0},
    "sell_pct": {"type": "number", "minimum": 0, "maximum": 1},
    "target_allocation_pct": {"type": "number", "minimum": 0, "maximum": 1}
  },
  "required": ["core_pct", "swing_pct", "active_pct"],
  "additionalProperties": false
}`

// Snapshot 是某一时刻的全部档案。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Profiles map[string]Profile
}

type fileConfig struct {
	Profiles map[string]Profile `mapstructure:"profiles" yaml:"profiles"`
}

// Registry 读取档案文件并监听变更。
type Registry struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewRegistry 加载档案文件并开始监听热更新。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("tiers registry requires path")
	}
	schema, err := jsonschema.CompileString("tiers_profile.json", profileSchema)
	if err != nil {
		return nil, fmt.Errorf("compile tiers schema failed: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read tiers config failed: %w", err)
	}
	r := &Registry{path: path, v: v, schema: schema}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("tiers 档案热更新失败，保留旧档案: %v", err)
		}
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot 返回当前档案集副本。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := Snapshot{
		Version:  r.snapshot.Version,
		LoadedAt: r.snapshot.LoadedAt,
		Profiles: make(map[string]Profile, len(r.snapshot.Profiles)),
	}
	for name, p := range r.snapshot.Profiles {
		out.Profiles[name] = p
	}
	return out
}

// Resolve 返回指定名字的档案。
func (r *Registry) Resolve(name string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Profiles[strings.TrimSpace(name)]
	return p, ok
}

func (r *Registry) reload() error {
	if err := r.v.ReadInConfig(); err != nil {
		return err
	}
	raw := r.v.Get("profiles")
	if raw == nil {
		return fmt.Errorf("tiers config %s missing profiles", r.path)
	}
	rawMap, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("tiers profiles must be a mapping")
	}
	var cfg fileConfig
	if err := r.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parse tiers config failed: %w", err)
	}

	profiles := make(map[string]Profile, len(cfg.Profiles))
	for name, p := range cfg.Profiles {
		key := strings.TrimSpace(name)
		if key == "" {
			continue
		}
		if node, ok := rawMap[name]; ok {
			if err := r.schema.Validate(normalizeForSchema(node)); err != nil {
				return fmt.Errorf("profile %s schema: %w", key, err)
			}
		}
		p.Name = key
		if err := p.validate(); err != nil {
			return err
		}
		profiles[key] = p
	}
	if len(profiles) == 0 {
		return fmt.Errorf("tiers config %s defines no profiles", r.path)
	}

	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: profiles,
	}
	r.mu.Unlock()
	logger.Infof("tiers 档案加载完成: %d 个（%s）", len(profiles), filepath.Base(r.path))
	return nil
}

// normalizeForSchema 经 yaml 往返把 viper 的宽松类型归一成 jsonschema 可校验的值。
func normalizeForSchema(node any) any {
	data, err := yaml.Marshal(node)
	if err != nil {
		return node
	}
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return node
	}
	return normalizeValue(out)
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return val
	}
}

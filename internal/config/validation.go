package config

import (
	"fmt"
	"strings"

	symbolpkg "tiller/internal/pkg/symbol"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (e *EngineConfig) validate() error {
	if !symbolpkg.IsValid(e.Symbol) {
		return fmt.Errorf("engine.symbol is invalid: %q", e.Symbol)
	}
	if e.ShortWindow >= e.LongWindow {
		return fmt.Errorf("engine.short_window (%d) must be smaller than engine.long_window (%d)", e.ShortWindow, e.LongWindow)
	}
	if e.HistoryMax < e.LongWindow {
		return fmt.Errorf("engine.history_max (%d) must cover engine.long_window (%d)", e.HistoryMax, e.LongWindow)
	}
	if strings.TrimSpace(e.ProfilesPath) == "" {
		return fmt.Errorf("engine.profiles_path cannot be empty")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if strings.TrimSpace(n.Telegram.BotToken) == "" || strings.TrimSpace(n.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
		}
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shaiso/MarketMind/internal/budget"
	"gopkg.in/yaml.v3"
)

// Ошибки загрузки конфигурации.
var (
	// ErrNoTenants — в конфиге не задан ни один тенант.
	ErrNoTenants = errors.New("no tenants configured")

	// ErrInvalidCeiling — потолок тенанта не положительный.
	ErrInvalidCeiling = errors.New("tenant ceiling must be positive")

	// ErrDuplicateTenant — тенант указан дважды.
	ErrDuplicateTenant = errors.New("duplicate tenant")
)

// Config — конфигурация сервиса из YAML-файла.
//
// Файл задаёт то, что нельзя вывести из кода: тарифы тенантов
// и тонкие настройки движка. Адреса БД/MQ/портов остаются в env.
type Config struct {
	// Engine — настройки движка выполнения.
	Engine EngineConfig `yaml:"engine"`

	// Tenants — список тенантов с бюджетными потолками.
	Tenants []TenantConfig `yaml:"tenants"`
}

// EngineConfig — настройки движка.
type EngineConfig struct {
	// RetryAttempts — число попыток выполнения стадии (default: 3).
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryDelaySec — фиксированная задержка между попытками в секундах
	// (default: 2).
	RetryDelaySec int `yaml:"retry_delay_sec"`

	// RouteBackThreshold — порог оценки, ниже которого decision-стадия
	// требует redo (default: 0.5).
	RouteBackThreshold float64 `yaml:"route_back_threshold"`
}

// TenantConfig — тенант и его бюджетный потолок.
type TenantConfig struct {
	// ID — идентификатор тенанта.
	ID string `yaml:"id"`

	// Tier — тарифный план (справочное поле).
	Tier string `yaml:"tier,omitempty"`

	// CeilingUnits — потолок расходов на биллинговый период
	// в условных единицах.
	CeilingUnits float64 `yaml:"ceiling_units"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			RetryAttempts:      3,
			RetryDelaySec:      2,
			RouteBackThreshold: 0.5,
		},
	}
}

// Load читает конфигурацию из файла.
// Пустой path — конфигурация по умолчанию без тенантов
// (Budget Guard отклонит любой run).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv читает конфигурацию из файла, указанного в CONFIG_PATH.
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv("CONFIG_PATH"))
}

func (c *Config) applyDefaults() {
	if c.Engine.RetryAttempts <= 0 {
		c.Engine.RetryAttempts = 3
	}
	if c.Engine.RetryDelaySec <= 0 {
		c.Engine.RetryDelaySec = 2
	}
	if c.Engine.RouteBackThreshold <= 0 {
		c.Engine.RouteBackThreshold = 0.5
	}
}

// Validate проверяет консистентность конфигурации.
func (c *Config) Validate() error {
	if len(c.Tenants) == 0 {
		return ErrNoTenants
	}

	seen := make(map[string]struct{}, len(c.Tenants))
	for _, t := range c.Tenants {
		if t.ID == "" {
			return errors.New("tenant id must not be empty")
		}
		if _, ok := seen[t.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTenant, t.ID)
		}
		seen[t.ID] = struct{}{}

		if t.CeilingUnits <= 0 {
			return fmt.Errorf("%w: tenant %s has ceiling %.2f",
				ErrInvalidCeiling, t.ID, t.CeilingUnits)
		}
	}
	return nil
}

// Ceilings возвращает потолки тенантов для Budget Guard.
func (c *Config) Ceilings() budget.StaticCeilings {
	ceilings := make(budget.StaticCeilings, len(c.Tenants))
	for _, t := range c.Tenants {
		ceilings[t.ID] = t.CeilingUnits
	}
	return ceilings
}

// RetryDelay возвращает задержку между попытками как Duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Engine.RetryDelaySec) * time.Second
}

package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanLimits describes the feature ceilings attached to a plan tier.
// The seeded catalog rows carry the authoritative values; this config
// supplies operator overrides without a migration.
type PlanLimits struct {
	Slug            string `mapstructure:"slug"`
	MaxMenuItems    int    `mapstructure:"maxMenuItems"`
	MaxCategories   int    `mapstructure:"maxCategories"`
	HasOrdersModule bool   `mapstructure:"hasOrdersModule"`
}

type PlansConfig struct {
	Limits []PlanLimits `mapstructure:"limits"`
}

func DefaultPlansConfig() PlansConfig {
	return PlansConfig{
		Limits: []PlanLimits{
			{Slug: "free", MaxMenuItems: 10, MaxCategories: 3, HasOrdersModule: false},
			{Slug: "basic", MaxMenuItems: 100, MaxCategories: 20, HasOrdersModule: false},
			{Slug: "pro", MaxMenuItems: -1, MaxCategories: -1, HasOrdersModule: true},
		},
	}
}

type PlansConfigHolder struct {
	current atomic.Value // holds PlansConfig
}

func NewPlansConfigHolder() (*PlansConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/menuvia/config") // Volume-mounted config
	v.AddConfigPath("/etc/menuvia")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("MENUVIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, use defaults
		defaults := DefaultPlansConfig()
		v.SetDefault("plans.limits", defaults.Limits)
	}

	var cfg PlansConfig
	if err := v.UnmarshalKey("plans", &cfg); err != nil {
		return nil, err
	}
	if err := validatePlansConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PlansConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlansConfig
		if err := v.UnmarshalKey("plans", &updated); err != nil {
			log.Printf("[plans-config] reload failed: %v", err)
			return
		}
		if err := validatePlansConfig(updated); err != nil {
			log.Printf("[plans-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plans-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PlansConfigHolder) Get() PlansConfig {
	return h.current.Load().(PlansConfig)
}

// LimitsFor returns the configured limits for a plan slug, nil when the
// config carries no override for it.
func (h *PlansConfigHolder) LimitsFor(slug string) *PlanLimits {
	cfg := h.Get()
	for i := range cfg.Limits {
		if cfg.Limits[i].Slug == slug {
			return &cfg.Limits[i]
		}
	}
	return nil
}

func validatePlansConfig(cfg PlansConfig) error {
	if len(cfg.Limits) == 0 {
		return errors.New("plans.limits cannot be empty")
	}
	for _, l := range cfg.Limits {
		if l.Slug == "" {
			return errors.New("plans.limits entries require a slug")
		}
	}
	return nil
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"fpl-optimizer/internal/optimizer"
	"fpl-optimizer/internal/projections"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Redis
	RedisURL string `mapstructure:"REDIS_URL"`

	// Squad rules
	BudgetTenths  int     `mapstructure:"BUDGET_TENTHS"`
	TeamCap       int     `mapstructure:"TEAM_CAP"`
	FreeTransfers int     `mapstructure:"FREE_TRANSFERS"`
	HitCost       float64 `mapstructure:"HIT_COST"`

	// Formation ranges for the starting XI
	DefMin int `mapstructure:"FORMATION_DEF_MIN"`
	DefMax int `mapstructure:"FORMATION_DEF_MAX"`
	MidMin int `mapstructure:"FORMATION_MID_MIN"`
	MidMax int `mapstructure:"FORMATION_MID_MAX"`
	FwdMin int `mapstructure:"FORMATION_FWD_MIN"`
	FwdMax int `mapstructure:"FORMATION_FWD_MAX"`

	// Solver
	SolveTimeLimit time.Duration `mapstructure:"SOLVE_TIME_LIMIT"`

	// Result cache
	CacheTTL time.Duration `mapstructure:"CACHE_TTL"`

	// Projection weights
	PPGWeight    float64 `mapstructure:"PPG_WEIGHT"`
	FormWeight   float64 `mapstructure:"FORM_WEIGHT"`
	MinutesScale float64 `mapstructure:"MINUTES_SCALE"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")

	viper.SetDefault("BUDGET_TENTHS", 1000)
	viper.SetDefault("TEAM_CAP", 3)
	viper.SetDefault("FREE_TRANSFERS", 0)
	viper.SetDefault("HIT_COST", 4.0)

	viper.SetDefault("FORMATION_DEF_MIN", 3)
	viper.SetDefault("FORMATION_DEF_MAX", 5)
	viper.SetDefault("FORMATION_MID_MIN", 2)
	viper.SetDefault("FORMATION_MID_MAX", 5)
	viper.SetDefault("FORMATION_FWD_MIN", 1)
	viper.SetDefault("FORMATION_FWD_MAX", 3)

	viper.SetDefault("SOLVE_TIME_LIMIT", "15s")
	viper.SetDefault("CACHE_TTL", "10m")

	viper.SetDefault("PPG_WEIGHT", 0.7)
	viper.SetDefault("FORM_WEIGHT", 0.3)
	viper.SetDefault("MINUTES_SCALE", 75.0)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No .env file is fine; env vars and defaults apply.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Rules materializes the configured squad rule set for the engine.
func (c *Config) Rules() optimizer.Rules {
	rules := optimizer.DefaultRules()
	rules.BudgetTenths = c.BudgetTenths
	rules.TeamCap = c.TeamCap
	rules.FreeTransfers = c.FreeTransfers
	rules.HitCost = c.HitCost
	rules.Formation = optimizer.FormationRanges{
		DefMin: c.DefMin,
		DefMax: c.DefMax,
		MidMin: c.MidMin,
		MidMax: c.MidMax,
		FwdMin: c.FwdMin,
		FwdMax: c.FwdMax,
	}
	rules.SolveTimeLimit = c.SolveTimeLimit
	return rules
}

// ProjectionWeights materializes the configured projection blend.
func (c *Config) ProjectionWeights() projections.Weights {
	w := projections.DefaultWeights()
	w.PPGWeight = c.PPGWeight
	w.FormWeight = c.FormWeight
	w.MinutesScale = c.MinutesScale
	return w
}

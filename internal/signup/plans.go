package signup

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ChallengePlan describes one funded-account challenge tier.
type ChallengePlan struct {
	Name          string  `yaml:"name" json:"name"`
	Price         int64   `yaml:"price" json:"price"`
	AccountSize   float64 `yaml:"account_size" json:"account_size"`
	ProfitTarget  float64 `yaml:"profit_target" json:"profit_target"`
	MaxDrawdown   float64 `yaml:"max_drawdown" json:"max_drawdown"`
	DailyDrawdown float64 `yaml:"daily_drawdown" json:"daily_drawdown"`
	Duration      string  `yaml:"duration" json:"duration"`
	Description   string  `yaml:"description" json:"description"`
}

// Plans maps plan id (standard, pro, elite, super) to its definition.
type Plans map[string]ChallengePlan

// DefaultPlans returns the built-in challenge tier table.
func DefaultPlans() Plans {
	return Plans{
		"standard": {
			Name:          "Standard Challenge",
			Price:         99,
			AccountSize:   10000,
			ProfitTarget:  8,
			MaxDrawdown:   5,
			DailyDrawdown: 2,
			Duration:      "30 days",
			Description:   "Perfect for beginners starting their prop trading journey",
		},
		"pro": {
			Name:          "Professional Challenge",
			Price:         199,
			AccountSize:   50000,
			ProfitTarget:  10,
			MaxDrawdown:   8,
			DailyDrawdown: 2,
			Duration:      "60 days",
			Description:   "For experienced traders looking for a larger capital allocation",
		},
		"elite": {
			Name:          "Elite Challenge",
			Price:         299,
			AccountSize:   100000,
			ProfitTarget:  12,
			MaxDrawdown:   10,
			DailyDrawdown: 2,
			Duration:      "60 days",
			Description:   "For professional traders with proven track records",
		},
		"super": {
			Name:          "Super Challenge",
			Price:         599,
			AccountSize:   200000,
			ProfitTarget:  15,
			MaxDrawdown:   12,
			DailyDrawdown: 3,
			Duration:      "90 days",
			Description:   "Our highest tier for elite traders seeking maximum capital",
		},
	}
}

// LoadPlansFromPath reads a plan table from a yaml file.
func LoadPlansFromPath(path string) (Plans, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plans file: %w", err)
	}

	var plans Plans
	if err := yaml.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("parse plans file: %w", err)
	}
	for id, plan := range plans {
		if plan.Price <= 0 {
			return nil, fmt.Errorf("plan %s: price is required", id)
		}
		if plan.AccountSize <= 0 {
			return nil, fmt.Errorf("plan %s: account_size is required", id)
		}
	}
	return plans, nil
}

// LoadPlansOrDefault reads the plan table from path, falling back to the
// built-in table when path is empty or unreadable.
func LoadPlansOrDefault(path string) Plans {
	if path == "" {
		return DefaultPlans()
	}
	plans, err := LoadPlansFromPath(path)
	if err != nil {
		return DefaultPlans()
	}
	return plans
}

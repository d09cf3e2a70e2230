package service

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	celeval "github.com/Action-Gate/actiongate/internal/adapter/outbound/cel"
	"github.com/Action-Gate/actiongate/internal/domain/rule"
)

// RuleSetEntry is one rule in a rule-set file.
type RuleSetEntry struct {
	ID     string         `yaml:"id"`
	Kind   string         `yaml:"kind"`
	Config map[string]any `yaml:"config"`
}

// RuleSetFile is the on-disk rule-set document.
type RuleSetFile struct {
	Name  string         `yaml:"name"`
	Rules []RuleSetEntry `yaml:"rules"`
}

// LoadRuleSet reads and validates a YAML rule-set file. Entries without an ID
// get a generated UUID. Expression rules are compiled at load so a bad
// expression fails here, not at the first evaluation.
func LoadRuleSet(path string) ([]rule.Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}
	return ParseRuleSet(raw)
}

// ParseRuleSet parses a YAML rule-set document.
func ParseRuleSet(raw []byte) ([]rule.Rule, error) {
	var file RuleSetFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rule set: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rule set contains no rules")
	}

	var evaluator *celeval.Evaluator
	rules := make([]rule.Rule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		id := entry.ID
		if id == "" {
			id = uuid.NewString()
		}
		r, err := rule.Parse(id, entry.Kind, entry.Config)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, entry.Kind, err)
		}
		if cfg, ok := r.Config.(*rule.ExpressionConfig); ok {
			if evaluator == nil {
				evaluator, err = celeval.NewEvaluator()
				if err != nil {
					return nil, fmt.Errorf("create expression evaluator: %w", err)
				}
			}
			if err := evaluator.ValidateExpression(cfg.Expression); err != nil {
				return nil, fmt.Errorf("rule %d (%s): %w", i, entry.Kind, err)
			}
		}
		rules = append(rules, r)
	}
	return rules, nil
}

package engine

import (
	_ "embed"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/accesslens/sod-risk-engine/pkg/models"
)

// defaultRuleSetYAML is compiled into the binary so the engine always has
// a complete rule-set even when no override file is configured.
//
//go:embed defaults.yaml
var defaultRuleSetYAML []byte

// ruleSetFile is the on-disk / embedded YAML shape of a rule-set.
type ruleSetFile struct {
	Permissions []struct {
		ID        string `yaml:"id"`
		Name      string `yaml:"name"`
		RiskLevel string `yaml:"riskLevel"`
	} `yaml:"permissions"`
	Rules []struct {
		Permission1 string `yaml:"permission1"`
		Permission2 string `yaml:"permission2"`
		RuleName    string `yaml:"ruleName"`
		Severity    string `yaml:"severity"`
	} `yaml:"rules"`
	Keywords map[string][]string `yaml:"keywords"`
}

// DefaultRuleSet builds the embedded rule-set. The embedded data is part
// of the build, so a failure here is a programming error and panics.
func DefaultRuleSet() *RuleSet {
	rs, err := parseRuleSet(defaultRuleSetYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rule-set is invalid: %v", err))
	}
	return rs
}

// LoadRuleSet reads a rule-set from a YAML file. Pass an empty path to get
// the embedded defaults.
func LoadRuleSet(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRuleSet(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule-set file: %w", err)
	}
	rs, err := parseRuleSet(raw)
	if err != nil {
		return nil, fmt.Errorf("rule-set file %s: %w", path, err)
	}
	log.Printf("[RuleSet] Loaded rule-set override from %s", path)
	return rs, nil
}

func parseRuleSet(raw []byte) (*RuleSet, error) {
	var f ruleSetFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	catalog := make([]models.Permission, 0, len(f.Permissions))
	for _, p := range f.Permissions {
		catalog = append(catalog, models.Permission{
			ID:        p.ID,
			Name:      p.Name,
			RiskLevel: models.RiskLevel(p.RiskLevel),
		})
	}

	rules := make([]models.SoDRule, 0, len(f.Rules))
	for _, r := range f.Rules {
		rules = append(rules, models.SoDRule{
			Permission1: r.Permission1,
			Permission2: r.Permission2,
			RuleName:    r.RuleName,
			Severity:    models.Severity(r.Severity),
		})
	}

	return NewRuleSet(catalog, rules, f.Keywords)
}

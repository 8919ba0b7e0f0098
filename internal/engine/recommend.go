package engine

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fleetguard/fleetguard-predict/internal/models"
)

// RuleEngine maps predictions onto operator recommendations from a YAML
// rule pack. A nil engine recommends nothing.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule is a single recommendation rule.
type Rule struct {
	ID              string    `yaml:"id"`
	Match           RuleMatch `yaml:"match"`
	Recommendations []string  `yaml:"recommendations"`
}

// RuleMatch defines optional attributes a prediction must satisfy. Empty
// attributes always match.
type RuleMatch struct {
	FailureType   string `yaml:"failure_type"`
	Metric        string `yaml:"metric"`
	Severity      string `yaml:"severity"`
	MinConfidence string `yaml:"min_confidence"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads rules from the provided path. Missing file or empty
// path yields a nil engine, not an error.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{rules: cfg.Rules, logger: logger}, nil
}

// Recommend returns the deduplicated recommendations of every matching rule.
func (e *RuleEngine) Recommend(p models.Prediction) []string {
	if e == nil {
		return nil
	}

	matched := make([]string, 0)
	for _, rule := range e.rules {
		if rule.Match.FailureType != "" && !strings.EqualFold(rule.Match.FailureType, string(p.FailureType)) {
			continue
		}
		if rule.Match.Metric != "" && !factorsHaveMetric(p.Factors, rule.Match.Metric) {
			continue
		}
		if rule.Match.Severity != "" && !factorsHaveSeverity(p.Factors, rule.Match.Severity) {
			continue
		}
		if rule.Match.MinConfidence != "" && p.Confidence.Rank() < models.Confidence(strings.ToLower(rule.Match.MinConfidence)).Rank() {
			continue
		}
		matched = appendUnique(matched, rule.Recommendations...)
	}
	return matched
}

func factorsHaveMetric(factors []models.PredictionFactor, metric string) bool {
	for _, f := range factors {
		if strings.EqualFold(metric, string(f.Metric)) {
			return true
		}
	}
	return false
}

func factorsHaveSeverity(factors []models.PredictionFactor, severity string) bool {
	for _, f := range factors {
		if strings.EqualFold(severity, string(f.Severity)) {
			return true
		}
	}
	return false
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}

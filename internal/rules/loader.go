package rules

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/signalstack/signal-engine/internal/models"
)

// Pack bundles the operator-supplied classification rules.
type Pack struct {
	Patterns    []models.DiagnosisPattern `yaml:"patterns"`
	KnownIssues []models.KnownIssue       `yaml:"known_issues"`
}

// LoadPack reads a diagnosis rule pack from a YAML file. An empty path or a
// missing file yields an empty pack: the built-in rule families still apply.
func LoadPack(path string) (Pack, error) {
	if path == "" {
		return Pack{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Pack{}, nil
		}
		return Pack{}, fmt.Errorf("read rule pack: %w", err)
	}

	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return Pack{}, fmt.Errorf("parse rule pack: %w", err)
	}
	if err := validatePack(pack); err != nil {
		return Pack{}, err
	}
	return pack, nil
}

func validatePack(pack Pack) error {
	for i, pattern := range pack.Patterns {
		if pattern.Category == "" {
			return fmt.Errorf("pattern %d: category is required", i)
		}
		if len(pattern.Keywords) == 0 {
			return fmt.Errorf("pattern %q: at least one keyword is required", pattern.Category)
		}
	}
	for i, issue := range pack.KnownIssues {
		if issue.ID == "" {
			return fmt.Errorf("known issue %d: id is required", i)
		}
		if len(issue.Keywords) == 0 {
			return fmt.Errorf("known issue %q: at least one keyword is required", issue.ID)
		}
	}
	return nil
}

// topologyFile is the YAML root of the service topology map.
type topologyFile struct {
	Services map[string]models.ServiceInfo `yaml:"services"`
}

// LoadTopology reads the service → repo/runtime/framework map. Missing files
// resolve to a nil map; the diagnoser treats every lookup miss as unknown.
func LoadTopology(path string) (map[string]models.ServiceInfo, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read topology: %w", err)
	}

	var file topologyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	return file.Services, nil
}

// Package sigma loads detection rules from YAML files.
package sigma

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"argus/core"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LoadedRule is a rule together with its file provenance.
type LoadedRule struct {
	Rule        *core.SigmaRule
	FilePath    string
	ContentHash string
}

// Parser loads Sigma YAML rule files.
type Parser struct {
	logger *zap.SugaredLogger
}

// NewParser creates a rule parser.
func NewParser(logger *zap.SugaredLogger) *Parser {
	return &Parser{logger: logger}
}

// ParseDirectory loads every .yml/.yaml file under directory. Files that
// fail to parse are logged and skipped; the walk order is lexical, so the
// returned rule order is deterministic.
func (p *Parser) ParseDirectory(directory string) ([]*LoadedRule, error) {
	var rules []*LoadedRule

	err := filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}

		rule, err := p.ParseFile(path)
		if err != nil {
			p.logger.Warnw("Skipping rule file", "path", path, "error", err)
			return nil
		}
		rules = append(rules, rule)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk rule directory: %w", err)
	}

	return rules, nil
}

// ParseFile loads a single Sigma YAML rule file.
func (p *Parser) ParseFile(filePath string) (*LoadedRule, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	rule, err := p.ParseYAML(data)
	if err != nil {
		return nil, err
	}
	rule.FilePath = filePath
	return rule, nil
}

// ParseYAML parses a Sigma rule from YAML bytes and validates it
// structurally. Condition syntax is checked later at compile time.
func (p *Parser) ParseYAML(data []byte) (*LoadedRule, error) {
	var rule core.SigmaRule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}

	return &LoadedRule{
		Rule:        &rule,
		ContentHash: contentHash(data),
	}, nil
}

// contentHash fingerprints the raw rule document for change detection.
func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

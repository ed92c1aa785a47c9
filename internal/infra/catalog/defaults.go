// Package catalog loads the static default tool set that seeds the registry
// on first initialization.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"toolshelf/internal/domain"
	"toolshelf/internal/infra/validate"
)

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("catalog")}
}

type rawDefaults struct {
	Tools []rawTool `mapstructure:"tools"`
}

type rawTool struct {
	ID          string   `mapstructure:"id"`
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Category    string   `mapstructure:"category"`
	Icon        string   `mapstructure:"icon"`
	Path        string   `mapstructure:"path"`
	Preview     string   `mapstructure:"preview"`
	Tags        []string `mapstructure:"tags"`
	Version     string   `mapstructure:"version"`
	Enabled     *bool    `mapstructure:"enabled"`
}

// LoadDefaults reads the default tool set from a YAML file. Every entry is
// validated; invalid entries are reported together so the file can be fixed
// in one pass. Duplicate ids or paths within the file are rejected.
func (l *Loader) LoadDefaults(ctx context.Context, path string) ([]domain.Tool, error) {
	if path == "" {
		return nil, errors.New("defaults path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewBuffer(data)); err != nil {
		return nil, fmt.Errorf("parse defaults: %w", err)
	}

	var cfg rawDefaults
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tools := make([]domain.Tool, 0, len(cfg.Tools))
	var validationErrors []string
	idSeen := make(map[string]struct{})
	pathSeen := make(map[string]struct{})

	for i, raw := range cfg.Tools {
		tool := domain.Tool{
			ID:          raw.ID,
			Name:        raw.Name,
			Description: raw.Description,
			Category:    domain.Category(raw.Category),
			Icon:        raw.Icon,
			Path:        raw.Path,
			Preview:     raw.Preview,
			Tags:        raw.Tags,
			Version:     raw.Version,
			IsEnabled:   raw.Enabled == nil || *raw.Enabled,
		}

		if _, exists := idSeen[tool.ID]; exists {
			validationErrors = append(validationErrors, fmt.Sprintf("tools[%d]: duplicate id %q", i, tool.ID))
		} else if tool.ID != "" {
			idSeen[tool.ID] = struct{}{}
		}
		if _, exists := pathSeen[tool.Path]; exists {
			validationErrors = append(validationErrors, fmt.Sprintf("tools[%d]: duplicate path %q", i, tool.Path))
		} else if tool.Path != "" {
			pathSeen[tool.Path] = struct{}{}
		}

		if errs := validate.Tool(tool); len(errs) > 0 {
			for _, msg := range errs {
				validationErrors = append(validationErrors, fmt.Sprintf("tools[%d]: %s", i, msg))
			}
			continue
		}

		tools = append(tools, tool)
	}

	if len(validationErrors) > 0 {
		return nil, errors.New(strings.Join(validationErrors, "; "))
	}

	l.logger.Info("loaded default tool set", zap.String("path", path), zap.Int("tools", len(tools)))
	return tools, nil
}

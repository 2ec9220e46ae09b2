package gamify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// BadgesFile is the name of the badge definitions file in the content seed directory.
const BadgesFile = "badges.yaml"

type badgesFile struct {
	Badges []badgeFile `yaml:"badges"`
}

type badgeFile struct {
	Code        string   `yaml:"code"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Criteria    Criteria `yaml:"criteria"`
}

// LoadBadges upserts every badge defined in the YAML file at path. A
// missing file is not an error.
func LoadBadges(ctx context.Context, path string, store Store) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("no badge definitions", "path", path)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read badges: %w", err)
	}

	var f badgesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse badges %s: %w", path, err)
	}

	n := 0
	for _, bf := range f.Badges {
		if bf.Code == "" {
			slog.Warn("skipping badge without code", "path", path, "title", bf.Title)
			continue
		}
		if _, err := store.UpsertBadge(ctx, Badge{
			Code:        bf.Code,
			Title:       bf.Title,
			Description: bf.Description,
			Criteria:    bf.Criteria,
		}); err != nil {
			return n, err
		}
		n++
	}

	slog.Info("badges loaded", "count", n)
	return n, nil
}

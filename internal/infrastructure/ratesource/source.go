// Package ratesource reads allowance rate tables from YAML or Excel files and imports them
// into the rate repository.
package ratesource

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	"go.uber.org/zap"
)

// Load reads entries from path, choosing the format by extension. sheet only applies to
// Excel files; empty means the first sheet.
func Load(path, sheet string) ([]rate.Entry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".xlsx":
		return LoadXLSX(path, sheet)
	default:
		return nil, fmt.Errorf("unsupported rate file %q: want .yaml, .yml or .xlsx", path)
	}
}

// Importer loads a rate file, validates it as a table and replaces the stored table
type Importer struct {
	repo   port.RateRepository
	logger *zap.Logger
}

// NewImporter creates a new importer
func NewImporter(repo port.RateRepository, logger *zap.Logger) *Importer {
	return &Importer{repo: repo, logger: logger}
}

// Import replaces the stored table with the file's entries. Nothing is written when the
// file does not form a valid table.
func (i *Importer) Import(ctx context.Context, path, sheet string) (*rate.Table, error) {
	entries, err := Load(path, sheet)
	if err != nil {
		return nil, err
	}

	table, err := rate.NewTable(entries)
	if err != nil {
		i.logger.Error("Rate file rejected", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("rate file %s: %w", path, err)
	}

	if err := i.repo.ReplaceAll(ctx, table.Entries()); err != nil {
		return nil, fmt.Errorf("failed to store rate table: %w", err)
	}

	i.logger.Info("Rate table imported", zap.String("path", path), zap.Int("entries", table.Len()))
	return table, nil
}

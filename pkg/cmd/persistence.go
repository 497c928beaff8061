// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/goobi/goobi-production/pkg/persistence"
	"github.com/goobi/goobi-production/pkg/persistence/file"
	"github.com/goobi/goobi-production/pkg/persistence/postgresql"
)

// NewPersistence picks the store from the URL scheme: postgres:// and postgresql:// open
// PostgreSQL, anything else is a file store rooted at the path.
//
// nolint:ireturn // the store is selected at runtime
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		logger.InfoContext(ctx, "Using PostgreSQL persistence")

		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return p, nil
	default:
		root := strings.TrimPrefix(databaseURL, "file://")
		logger.InfoContext(ctx, "Using file persistence", "root", root)

		return file.NewPersistence(root), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}

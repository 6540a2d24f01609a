// Package app wires workspace resolution shared by the CLI and the server.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"regimen/internal/config"
	"regimen/internal/repo"
)

// ResolveConfig loads the effective workspace config: an on-disk
// regimen.yml wins, then the copy stored in the database, then the built-in
// defaults (which are seeded into the database so the server and CLI agree
// on subsequent runs).
func ResolveConfig(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	if _, err := os.Stat(config.Path(workspace)); err == nil {
		cfg, err := config.Load(workspace)
		if err != nil {
			return nil, err
		}
		if err := r.UpsertConfig(ctx, cfg); err != nil {
			return nil, fmt.Errorf("store config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := r.GetConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	cfg = config.Default()
	if err := r.UpsertConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}
	return cfg, nil
}

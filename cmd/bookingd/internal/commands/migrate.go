package commands

import (
	"context"
	"fmt"
)

// MigrateCmd applies pending schema migrations and exits.
type MigrateCmd struct{}

func (m *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := loadRuntime(ctx, globals, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := migrate(ctx, rt.store); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	rt.logger.Info("migrations applied", "storage", rt.cfg.Storage.Driver)
	return nil
}

package commands

import (
	"context"
	"fmt"
)

// PurgeSessionsCmd deletes expired refresh sessions once.
type PurgeSessionsCmd struct{}

func (p *PurgeSessionsCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := loadRuntime(ctx, globals, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	svc, err := rt.newAuthService()
	if err != nil {
		return err
	}
	removed, err := svc.PurgeExpiredSessions(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("expired sessions purged", "sessions_removed", removed)
	fmt.Printf("removed %d expired sessions\n", removed)
	return nil
}

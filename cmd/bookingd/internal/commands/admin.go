package commands

import (
	"context"
	"fmt"

	"github.com/example/room-booking/internal/application"
)

// CreateAdminCmd creates an administrator or promotes an existing account.
type CreateAdminCmd struct {
	Email    string `help:"Account email." required:""`
	Password string `help:"Password for a new account." env:"BOOKING_ADMIN_PASSWORD"`
	Name     string `help:"Display name for a new account." default:"Administrator"`
}

func (c *CreateAdminCmd) Run(ctx context.Context, globals *Globals) error {
	rt, err := loadRuntime(ctx, globals, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	svc := application.NewUserService(rt.store, application.CreatePasswordHash, rt.ids.Next, rt.now, rt.logger)
	user, created, err := svc.EnsureAdmin(ctx, application.EnsureAdminParams{
		Email:    c.Email,
		Password: c.Password,
		Name:     c.Name,
	})
	if err != nil {
		return err
	}

	verb := "promoted"
	if created {
		verb = "created"
	}
	fmt.Printf("%s administrator %s (%s)\n", verb, user.Email, user.ID)
	return nil
}

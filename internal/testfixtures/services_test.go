package testfixtures

import (
	"context"
	"testing"

	"github.com/example/room-booking/internal/application"
)

func TestServiceFactoryNewRoomService(t *testing.T) {
	factory := NewServiceFactory()
	harness := NewSQLiteHarness(t)
	admin := harness.SeedUser(WithUserAdmin())

	svc := factory.NewRoomService(harness.Store)
	room, err := svc.CreateRoom(context.Background(), application.CreateRoomParams{
		Principal: admin.Principal(),
		Name:      "Orion",
		Capacity:  6,
	})
	if err != nil {
		t.Fatalf("CreateRoom returned error: %v", err)
	}

	if room.ID != "id-0001" {
		t.Fatalf("expected generated ID id-0001, got %q", room.ID)
	}
	if !room.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), room.CreatedAt)
	}
	if got := harness.AuditActions("Room", room.ID); len(got) != 1 || got[0] != application.ActionRoomCreated {
		t.Fatalf("unexpected audit actions %v", got)
	}
}

func TestFastPasswordHashVerifies(t *testing.T) {
	hash, err := FastPasswordHash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := application.VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

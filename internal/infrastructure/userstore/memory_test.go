package userstore

import (
	"context"
	"errors"
	"testing"

	"github.com/shopagent/backend/internal/domain"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	user := &domain.User{Email: "alice@example.com", PasswordHash: "hash"}
	if err := store.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Error("expected an ID to be assigned")
	}
	if user.CreatedAt.IsZero() {
		t.Error("expected a creation timestamp to be assigned")
	}

	got, err := store.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.Email != "alice@example.com" || got.PasswordHash != "hash" {
		t.Errorf("GetByEmail() = %+v", got)
	}
}

func TestMemoryStore_EmailCaseInsensitive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, &domain.User{Email: "Bob@Example.COM", PasswordHash: "h"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := store.GetByEmail(ctx, "bob@example.com"); err != nil {
		t.Errorf("GetByEmail() with lowered case error = %v", err)
	}

	err := store.Create(ctx, &domain.User{Email: "bob@example.com", PasswordHash: "h2"})
	if !errors.Is(err, domain.ErrUserExists) {
		t.Errorf("expected ErrUserExists for duplicate email, got %v", err)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestMemoryStore_EmptyEmail(t *testing.T) {
	store := NewMemoryStore()

	err := store.Create(context.Background(), &domain.User{Email: "   "})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for blank email, got %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Create(ctx, &domain.User{Email: "carol@example.com", PasswordHash: "h"})

	got, _ := store.GetByEmail(ctx, "carol@example.com")
	got.PasswordHash = "tampered"

	again, _ := store.GetByEmail(ctx, "carol@example.com")
	if again.PasswordHash != "h" {
		t.Error("mutating a returned user must not affect the store")
	}
}

package storage

import (
	"context"
	"testing"

	"github.com/mkondo/datalyst/model"
)

func TestMemoryStorageSaveAndLoad(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	history := []model.Turn{
		model.UserTurn("Hello"),
		model.AssistantTurn("Hi there"),
	}

	if err := storage.Save(ctx, "s", history); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "s")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Content != "Hello" {
		t.Errorf("unexpected history: %+v", loaded)
	}
}

func TestMemoryStorageDefensiveCopies(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	history := []model.Turn{model.UserTurn("original")}
	storage.Save(ctx, "s", history)

	history[0].Content = "mutated"

	loaded, _ := storage.Load(ctx, "s")
	if loaded[0].Content != "original" {
		t.Errorf("expected stored copy to be independent, got %q", loaded[0].Content)
	}

	loaded[0].Content = "mutated again"
	reloaded, _ := storage.Load(ctx, "s")
	if reloaded[0].Content != "original" {
		t.Errorf("expected loaded copy to be independent, got %q", reloaded[0].Content)
	}
}

func TestMemoryStorageDeleteAndExists(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	storage.Save(ctx, "s", []model.Turn{model.UserTurn("x")})

	exists, _ := storage.Exists(ctx, "s")
	if !exists {
		t.Error("expected session to exist")
	}

	storage.Delete(ctx, "s")

	exists, _ = storage.Exists(ctx, "s")
	if exists {
		t.Error("expected session to be gone")
	}
}

func TestMemoryStorageListSessions(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	storage.Save(ctx, "a", []model.Turn{model.UserTurn("x")})
	storage.Save(ctx, "b", []model.Turn{model.UserTurn("y")})

	sessions, err := storage.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(sessions))
	}
}

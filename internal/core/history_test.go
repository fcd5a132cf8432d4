package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JonMunkholm/datacrew/internal/crew"
)

func TestMemoryHistory(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(3)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := RunRecord{
			ID:        fmt.Sprintf("run-%d", i),
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Tasks:     []crew.TaskOutput{{Raw: "x"}},
		}
		if err := h.Save(ctx, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	list, err := h.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3 (oldest evicted)", len(list))
	}
	if list[0].ID != "run-4" || list[2].ID != "run-2" {
		t.Errorf("order = %s..%s, want newest first", list[0].ID, list[2].ID)
	}
	if list[0].Tasks != nil {
		t.Error("task outputs should not be stored in history")
	}

	if list, _ := h.List(ctx, 1); len(list) != 1 {
		t.Errorf("List(1) returned %d runs", len(list))
	}

	if _, err := h.Get(ctx, "run-0"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("evicted run: err = %v, want ErrRunNotFound", err)
	}

	ids, err := h.DeleteBefore(ctx, base.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if len(ids) != 2 || ids[0] != "run-2" || ids[1] != "run-3" {
		t.Errorf("deleted = %v, want [run-2 run-3]", ids)
	}
	if _, err := h.Get(ctx, "run-4"); err != nil {
		t.Errorf("run-4 should remain: %v", err)
	}
}

package memory

import (
	"context"
	"errors"
	"testing"

	"just3sec/core"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Load(ctx, "u"); !errors.Is(err, core.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	best := int64(12)
	if err := s.Save(ctx, "u", core.Snapshot{History: []int64{40, 12}, TotalGames: 2, BestRecord: &best}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveUnlocked(ctx, "u", core.NewUnlockedSet("play_1")); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Load(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if rec.TotalGames != 2 || *rec.BestRecord != 12 || len(rec.History) != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.Unlocked.Has("play_1") {
		t.Fatal("achievement missing")
	}
}

func TestMemoryStoreClearKeepsAchievements(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Save(ctx, "u", core.Snapshot{History: []int64{1}, TotalGames: 1})
	_ = s.SaveUnlocked(ctx, "u", core.NewUnlockedSet("expert_1ms"))
	if err := s.Clear(ctx, "u"); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Load(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if rec.TotalGames != 0 || rec.BestRecord != nil || len(rec.History) != 0 {
		t.Fatalf("history not cleared: %+v", rec)
	}
	if !rec.Unlocked.Has("expert_1ms") {
		t.Fatal("clear must keep achievements")
	}
}

func TestMemoryStoreLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Save(ctx, "u", core.Snapshot{History: []int64{5}, TotalGames: 1})
	rec, _ := s.Load(ctx, "u")
	rec.History[0] = 999
	again, _ := s.Load(ctx, "u")
	if again.History[0] != 5 {
		t.Fatal("store leaked internal state")
	}
}

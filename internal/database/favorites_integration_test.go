package database

import (
	"context"
	"errors"
	"testing"
)

func TestAddFavoriteIdempotentIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	stackID := mustCreateStack(t, db, "Shots", "/mnt/shots")
	listID := mustCreateList(t, db, stackID, "seq010", nil)
	elemID := mustCreateElement(t, db, listID, "plateA", Type2D, ElementFields{})

	for _, user := range []string{"alice", ""} {
		t.Run("user="+user, func(t *testing.T) {
			id1, added, err := db.AddFavorite(ctx, elemID, "ws01", user)
			if err != nil {
				t.Fatalf("AddFavorite failed: %v", err)
			}
			if !added {
				t.Error("first AddFavorite should report added")
			}

			id2, added, err := db.AddFavorite(ctx, elemID, "ws01", user)
			if err != nil {
				t.Fatalf("Adding duplicate favorite failed: %v", err)
			}
			if added {
				t.Error("second AddFavorite should report already present")
			}
			if id1 != id2 {
				t.Errorf("duplicate returned id %d, want existing %d", id2, id1)
			}

			favs, err := db.GetFavorites(ctx, "ws01", user)
			if err != nil {
				t.Fatalf("GetFavorites failed: %v", err)
			}
			if len(favs) != 1 {
				t.Errorf("got %d favorites, want exactly 1", len(favs))
			}
		})
	}

	stats, err := db.CatalogStats(ctx)
	if err != nil {
		t.Fatalf("CatalogStats failed: %v", err)
	}
	if stats.Favorites != 2 {
		t.Errorf("favorite rows = %d, want 2", stats.Favorites)
	}
}

func TestFavoritesScopedByMachineAndUserIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	stackID := mustCreateStack(t, db, "Shots", "/mnt/shots")
	listID := mustCreateList(t, db, stackID, "seq010", nil)
	b := mustCreateElement(t, db, listID, "b", Type2D, ElementFields{})
	a := mustCreateElement(t, db, listID, "a", Type2D, ElementFields{})

	for _, id := range []int64{b, a} {
		if _, _, err := db.AddFavorite(ctx, id, "ws01", "alice"); err != nil {
			t.Fatalf("AddFavorite failed: %v", err)
		}
	}
	if _, _, err := db.AddFavorite(ctx, a, "ws02", "alice"); err != nil {
		t.Fatalf("AddFavorite failed: %v", err)
	}

	favs, err := db.GetFavorites(ctx, "ws01", "alice")
	if err != nil {
		t.Fatalf("GetFavorites failed: %v", err)
	}
	if len(favs) != 2 || favs[0].Name != "a" || favs[1].Name != "b" {
		t.Errorf("favorites = %+v, want a, b ordered by name", favs)
	}

	if ok, _ := db.IsFavorite(ctx, b, "ws02", "alice"); ok {
		t.Error("b should not be a favorite on ws02")
	}
	if ok, _ := db.IsFavorite(ctx, a, "ws01", ""); ok {
		t.Error("a should not be a favorite for the anonymous user")
	}

	removed, err := db.RemoveFavorite(ctx, a, "ws01", "alice")
	if err != nil || !removed {
		t.Fatalf("RemoveFavorite = %v, %v", removed, err)
	}
	removed, err = db.RemoveFavorite(ctx, a, "ws01", "alice")
	if err != nil || removed {
		t.Errorf("second RemoveFavorite = %v, %v; want false, nil", removed, err)
	}
	if ok, _ := db.IsFavorite(ctx, a, "ws02", "alice"); !ok {
		t.Error("favorite on ws02 should be untouched")
	}
}

func TestAddFavoriteMissingElementIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)

	_, _, err := db.AddFavorite(context.Background(), 9999, "ws01", "alice")
	if !errors.Is(err, ErrForeignKeyViolation) {
		t.Errorf("err = %v, want ErrForeignKeyViolation", err)
	}
}

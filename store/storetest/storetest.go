// Package storetest holds the behavioural suite every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/aponysus/smartretry/store"
)

// Factory returns an empty store. Cleanup should be registered on t.
type Factory func(t *testing.T) store.Store

// Record builds a fully populated record whose fields survive a JSON round
// trip unchanged.
func Record(n int) store.FailureRecord {
	status := 500 + n%100
	return store.FailureRecord{
		ID:            store.NewID(),
		URL:           fmt.Sprintf("https://api.example.com/items/%d", n),
		Method:        "POST",
		Headers:       map[string]string{"Content-Type": "application/json"},
		Body:          map[string]any{"n": fmt.Sprint(n)},
		Error:         "Service Unavailable",
		StatusCode:    &status,
		Attempts:      3,
		TotalDuration: time.Duration(1500+n) * time.Millisecond,
		Timestamp:     time.Date(2026, 10, 15, 8, 35, n%60, 123_000_000, time.UTC),
	}
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("empty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		all, err := s.LoadAll(ctx)
		if err != nil {
			t.Fatalf("LoadAll: %v", err)
		}
		if len(all) != 0 {
			t.Fatalf("len=%d, want 0", len(all))
		}
		if n := mustCount(t, s); n != 0 {
			t.Fatalf("count=%d, want 0", n)
		}
	})

	t.Run("save_load_all", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		r := Record(1)
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
		all, err := s.LoadAll(ctx)
		if err != nil {
			t.Fatalf("LoadAll: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("len=%d, want 1", len(all))
		}
		AssertEqual(t, all[0], r)
	})

	t.Run("insertion_order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		var want []store.FailureRecord
		for i := 0; i < 5; i++ {
			r := Record(i)
			want = append(want, r)
			if err := s.Save(ctx, r); err != nil {
				t.Fatalf("Save(%d): %v", i, err)
			}
		}
		all, err := s.LoadAll(ctx)
		if err != nil {
			t.Fatalf("LoadAll: %v", err)
		}
		if len(all) != len(want) {
			t.Fatalf("len=%d, want %d", len(all), len(want))
		}
		for i := range want {
			if all[i].ID != want[i].ID {
				t.Fatalf("order[%d]=%s, want %s", i, all[i].ID, want[i].ID)
			}
		}
	})

	t.Run("load_all_idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			if err := s.Save(ctx, Record(i)); err != nil {
				t.Fatalf("Save: %v", err)
			}
		}
		first, err := s.LoadAll(ctx)
		if err != nil {
			t.Fatalf("LoadAll: %v", err)
		}
		second, err := s.LoadAll(ctx)
		if err != nil {
			t.Fatalf("LoadAll: %v", err)
		}
		if len(first) != len(second) {
			t.Fatalf("len %d != %d", len(first), len(second))
		}
		for i := range first {
			AssertEqual(t, second[i], first[i])
		}
	})

	t.Run("find_by_id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		r := Record(7)
		if err := s.Save(ctx, Record(6)); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, ok, err := s.FindByID(ctx, r.ID)
		if err != nil || !ok {
			t.Fatalf("FindByID: ok=%v err=%v", ok, err)
		}
		AssertEqual(t, got, r)

		if _, ok, err := s.FindByID(ctx, "missing"); err != nil || ok {
			t.Fatalf("FindByID(missing): ok=%v err=%v", ok, err)
		}
	})

	t.Run("remove", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		keep := Record(1)
		r := Record(2)
		for _, rec := range []store.FailureRecord{keep, r} {
			if err := s.Save(ctx, rec); err != nil {
				t.Fatalf("Save: %v", err)
			}
		}

		removed, err := s.Remove(ctx, r.ID)
		if err != nil || !removed {
			t.Fatalf("Remove: removed=%v err=%v", removed, err)
		}
		if _, ok, err := s.FindByID(ctx, r.ID); err != nil || ok {
			t.Fatalf("FindByID after remove: ok=%v err=%v", ok, err)
		}
		if n := mustCount(t, s); n != 1 {
			t.Fatalf("count=%d, want 1", n)
		}
		if _, ok, _ := s.FindByID(ctx, keep.ID); !ok {
			t.Fatalf("unrelated record removed")
		}
	})

	t.Run("remove_unknown", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		r := Record(3)
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
		removed, err := s.Remove(ctx, "does-not-exist")
		if err != nil || removed {
			t.Fatalf("Remove(unknown): removed=%v err=%v", removed, err)
		}
		all, err := s.LoadAll(ctx)
		if err != nil {
			t.Fatalf("LoadAll: %v", err)
		}
		if len(all) != 1 || all[0].ID != r.ID {
			t.Fatalf("sequence changed: %+v", all)
		}
	})

	t.Run("clear", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			if err := s.Save(ctx, Record(i)); err != nil {
				t.Fatalf("Save: %v", err)
			}
		}
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if n := mustCount(t, s); n != 0 {
			t.Fatalf("count=%d, want 0", n)
		}
		if err := s.Save(ctx, Record(9)); err != nil {
			t.Fatalf("Save after clear: %v", err)
		}
		if n := mustCount(t, s); n != 1 {
			t.Fatalf("count=%d, want 1", n)
		}
	})

	t.Run("duplicate_id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		r := Record(4)
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := s.Save(ctx, r); !errors.Is(err, store.ErrDuplicateID) {
			t.Fatalf("Save(dup) err=%v, want ErrDuplicateID", err)
		}
		if n := mustCount(t, s); n != 1 {
			t.Fatalf("count=%d, want 1", n)
		}
	})

	t.Run("missing_id", func(t *testing.T) {
		s := newStore(t)
		r := Record(5)
		r.ID = ""
		if err := s.Save(context.Background(), r); !errors.Is(err, store.ErrInvalidRecord) {
			t.Fatalf("Save(no id) err=%v, want ErrInvalidRecord", err)
		}
	})

	t.Run("optional_fields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		r := store.FailureRecord{
			ID:            store.NewID(),
			URL:           "unknown",
			Method:        "GET",
			Error:         "boom",
			Attempts:      1,
			TotalDuration: 0,
			Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, ok, err := s.FindByID(ctx, r.ID)
		if err != nil || !ok {
			t.Fatalf("FindByID: ok=%v err=%v", ok, err)
		}
		AssertEqual(t, got, r)
	})
}

// AssertEqual fails t unless got and want describe the same record.
func AssertEqual(t *testing.T, got, want store.FailureRecord) {
	t.Helper()
	if got.ID != want.ID || got.URL != want.URL || got.Method != want.Method || got.Error != want.Error {
		t.Fatalf("record mismatch:\n got=%+v\nwant=%+v", got, want)
	}
	if got.Attempts != want.Attempts || got.TotalDuration != want.TotalDuration {
		t.Fatalf("attempts/duration mismatch: got %d/%v, want %d/%v", got.Attempts, got.TotalDuration, want.Attempts, want.TotalDuration)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Fatalf("timestamp=%v, want %v", got.Timestamp, want.Timestamp)
	}
	if (got.StatusCode == nil) != (want.StatusCode == nil) ||
		(got.StatusCode != nil && *got.StatusCode != *want.StatusCode) {
		t.Fatalf("statusCode=%v, want %v", got.StatusCode, want.StatusCode)
	}
	if len(got.Headers) != len(want.Headers) || (len(want.Headers) > 0 && !reflect.DeepEqual(got.Headers, want.Headers)) {
		t.Fatalf("headers=%v, want %v", got.Headers, want.Headers)
	}
	if !reflect.DeepEqual(got.Body, want.Body) {
		t.Fatalf("body=%#v, want %#v", got.Body, want.Body)
	}
}

func mustCount(t *testing.T, s store.Store) int {
	t.Helper()
	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

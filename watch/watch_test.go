package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// counter is a detector whose version the test controls.
type counter struct{ v atomic.Int64 }

func (c *counter) detect(context.Context) (int64, error) { return c.v.Load(), nil }

func TestDirVersion(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	det := DirVersion(dir)

	v0, err := det(ctx)
	if err != nil {
		t.Fatal(err)
	}

	os.WriteFile(filepath.Join(dir, "precios.csv"), []byte("Papa;850\n"), 0o644)
	v1, _ := det(ctx)
	if v1 == v0 {
		t.Fatal("new file did not change the version")
	}

	// Hidden files and subdirectories are ignored.
	os.WriteFile(filepath.Join(dir, ".lock"), []byte("x"), 0o644)
	os.Mkdir(filepath.Join(dir, "uploads"), 0o755)
	if v, _ := det(ctx); v != v1 {
		t.Error("hidden file or subdirectory changed the version")
	}

	os.WriteFile(filepath.Join(dir, "precios.csv"), []byte("Papa;850\nTomate;1200\n"), 0o644)
	if v, _ := det(ctx); v == v1 {
		t.Error("rewritten file did not change the version")
	}

	missing, err := DirVersion(filepath.Join(dir, "nope"))(ctx)
	if err != nil || missing != 0 {
		t.Errorf("missing dir = %d, %v", missing, err)
	}
}

func TestOnChange_FiresOnVersionChange(t *testing.T) {
	var c counter
	var reloadCount atomic.Int32
	w := New(c.detect, Options{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error {
		reloadCount.Add(1)
		return nil
	})

	// Wait for initial version to be read.
	time.Sleep(50 * time.Millisecond)

	c.v.Store(1)
	time.Sleep(80 * time.Millisecond)
	if got := reloadCount.Load(); got != 1 {
		t.Fatalf("expected 1 reload, got %d", got)
	}

	c.v.Store(2)
	time.Sleep(80 * time.Millisecond)
	if got := reloadCount.Load(); got != 2 {
		t.Fatalf("expected 2 reloads, got %d", got)
	}

	// No change, no extra reload.
	time.Sleep(80 * time.Millisecond)
	if got := reloadCount.Load(); got != 2 {
		t.Fatalf("expected still 2, got %d", got)
	}
}

func TestOnChange_Debounce(t *testing.T) {
	// WHAT: A burst of changes fires the action once, after the quiet period.
	// WHY: A file copied into the drop folder is written in several steps.
	var c counter
	var reloadCount atomic.Int32
	w := New(c.detect, Options{
		Interval: 20 * time.Millisecond,
		Debounce: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error {
		reloadCount.Add(1)
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	for i := int64(1); i <= 5; i++ {
		c.v.Store(i)
		time.Sleep(15 * time.Millisecond)
	}

	if got := reloadCount.Load(); got != 0 {
		t.Fatalf("expected 0 reloads during debounce, got %d", got)
	}

	time.Sleep(200 * time.Millisecond)
	if got := reloadCount.Load(); got != 1 {
		t.Fatalf("expected exactly 1 debounced reload, got %d", got)
	}
	if w.Version() != 5 {
		t.Errorf("version = %d", w.Version())
	}
}

func TestOnChange_ErrorDoesNotAdvanceVersion(t *testing.T) {
	var c counter
	var callCount atomic.Int32
	w := New(c.detect, Options{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error {
		if callCount.Add(1) == 1 {
			return errors.New("disk busy")
		}
		return nil
	})

	time.Sleep(50 * time.Millisecond)
	c.v.Store(1)

	// First attempt fails, the next poll retries.
	time.Sleep(120 * time.Millisecond)

	if got := callCount.Load(); got < 2 {
		t.Fatalf("expected at least 2 calls, got %d", got)
	}
	if v := w.Version(); v != 1 {
		t.Fatalf("expected version 1, got %d", v)
	}
	if w.Stats().Errors == 0 {
		t.Error("failed action not counted")
	}
}

func TestStats(t *testing.T) {
	var c counter
	w := New(c.detect, Options{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.OnChange(ctx, func() error { return nil })
	time.Sleep(50 * time.Millisecond)

	c.v.Store(1)
	time.Sleep(80 * time.Millisecond)

	s := w.Stats()
	if s.Checks == 0 || s.ChangesDetected == 0 || s.Reloads == 0 {
		t.Fatalf("stats = %+v", s)
	}
}

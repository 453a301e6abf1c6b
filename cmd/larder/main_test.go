package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/larder/journal"
	"github.com/hazyhaar/larder/warehouse"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_FILE", filepath.Join(dir, "data_warehouse.json"))
	t.Setenv("INPUT_DIR", filepath.Join(dir, "inputs"))
	t.Setenv("JOURNAL_DB", filepath.Join(dir, "db", "journal.db"))
	t.Setenv("KEEP_UPLOADS", "false")
	t.Setenv("LOG_LEVEL", "error")
	os.MkdirAll(filepath.Join(dir, "inputs"), 0o755)
	return dir
}

func TestETLCommand(t *testing.T) {
	// WHAT: `larder etl` ingests INPUT_DIR and prints a per-file summary.
	// WHY: The batch path is how a fresh deployment is seeded.
	dir := setupEnv(t)
	in := filepath.Join(dir, "inputs")
	os.WriteFile(filepath.Join(in, "precios.csv"), []byte("Producto;Precio\nTomate;1200\n"), 0o644)
	os.WriteFile(filepath.Join(in, "recetas.md"), []byte("# Ensalada\n\n- 300 g de tomate\n"), 0o644)
	os.WriteFile(filepath.Join(in, "roto.pdf"), []byte("%PDF-1.4 broken"), 0o644)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"etl"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("etl: %v", err)
	}
	if !strings.Contains(out.String(), "2 accepted, 1 failed") {
		t.Errorf("summary = %q", out.String())
	}

	store, err := warehouse.Open(filepath.Join(dir, "data_warehouse.json"))
	if err != nil {
		t.Fatal(err)
	}
	if st := store.Stats(); st.Imports != 2 || st.Recipes != 1 || st.Prices != 1 {
		t.Errorf("stats = %+v", st)
	}
	if _, err := os.Stat(filepath.Join(dir, "db", "journal.db")); err != nil {
		t.Errorf("journal db not created: %v", err)
	}
}

func TestETLCommand_Strict(t *testing.T) {
	dir := setupEnv(t)
	other := filepath.Join(dir, "lote")
	os.MkdirAll(other, 0o755)
	os.WriteFile(filepath.Join(other, "roto.pdf"), []byte("%PDF-1.4 broken"), 0o644)

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"etl", "--strict", other})
	err := rootCmd.Execute()
	etlStrict = false
	if err == nil {
		t.Fatal("expected failure in strict mode")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	setupEnv(t)
	t.Setenv("MAX_UPLOAD_MB", "0")
	if _, _, err := loadConfig(&bytes.Buffer{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNewApp_PrunesJournal(t *testing.T) {
	// WHAT: Opening the app trims the journal to JOURNAL_KEEP entries.
	// WHY: The journal records every attempt and would otherwise grow forever.
	dir := setupEnv(t)
	t.Setenv("JOURNAL_KEEP", "2")
	ctx := context.Background()

	j, err := journal.Open(filepath.Join(dir, "db", "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	for range 5 {
		if _, err := j.Record(ctx, journal.Entry{File: "a.md", Status: journal.StatusAccepted}); err != nil {
			t.Fatal(err)
		}
	}
	j.Close()

	cfg, logger, err := loadConfig(&bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	entries, err := a.journal.Recent(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].ID != 5 {
		t.Errorf("entries = %+v, want the 2 newest", entries)
	}
}

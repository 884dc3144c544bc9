package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 migrations, got %v", files)
	}
	for _, name := range files {
		raw, err := fs.ReadFile(FS, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		body := string(raw)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s is missing goose annotations", name)
		}
	}
}

func TestSlotOrderingColumn(t *testing.T) {
	raw, err := fs.ReadFile(FS, "00003_availability_slots_seq.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	up := strings.SplitN(string(raw), "-- +goose Down", 2)[0]
	if !strings.Contains(up, "seq BIGSERIAL") {
		t.Fatal("expected seq BIGSERIAL in up migration")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8084")
	p, err := Port("TEST_PORT", "1")
	if err != nil || p != "8084" {
		t.Fatalf("expected 8084, got %q (%v)", p, err)
	}

	t.Setenv("TEST_PORT", "70000")
	if _, err := Port("TEST_PORT", "1"); err == nil {
		t.Fatal("expected error for out of range port")
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "  ")
	if _, err := RequiredString("TEST_REQUIRED"); err == nil {
		t.Fatal("expected error for blank value")
	}
	t.Setenv("TEST_REQUIRED", "postgres://x")
	v, err := RequiredString("TEST_REQUIRED")
	if err != nil || v != "postgres://x" {
		t.Fatalf("unexpected result %q (%v)", v, err)
	}
}

func TestIntBoolDuration(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	if got := Int("TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	t.Setenv("TEST_INT", "12")
	if got := Int("TEST_INT", 7); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}

	t.Setenv("TEST_BOOL", "off")
	if Bool("TEST_BOOL", true) {
		t.Fatal("expected false")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if !Bool("TEST_BOOL", true) {
		t.Fatal("expected fallback true")
	}

	t.Setenv("TEST_DURATION", "30")
	if got := Duration("TEST_DURATION", time.Minute); got != 30*time.Second {
		t.Fatalf("expected 30s, got %s", got)
	}
	t.Setenv("TEST_DURATION", "2m")
	if got := Duration("TEST_DURATION", time.Minute); got != 2*time.Minute {
		t.Fatalf("expected 2m, got %s", got)
	}
	t.Setenv("TEST_DURATION", "-5s")
	if got := Duration("TEST_DURATION", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ,c")
	got := List("TEST_LIST", "")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("DOTENV_ONLY_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("DOTENV_ONLY_KEY") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("DOTENV_ONLY_KEY"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
}

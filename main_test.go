package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunReturnsStartupErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "database:\n  type: oracle\nlogger:\n  mode: development\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PETSHOP_CONFIG", path)

	err := run()
	if err == nil || !strings.Contains(err.Error(), "connect database") {
		t.Fatalf("run() = %v, want a database error", err)
	}
}

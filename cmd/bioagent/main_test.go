package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dizzy12138/bio-agent/internal/config"
)

func TestRunHelpAndVersion(t *testing.T) {
	for _, args := range [][]string{nil, {"help"}} {
		var out bytes.Buffer
		if err := run(context.Background(), &out, &out, args); err != nil {
			t.Fatalf("run(%v): %v", args, err)
		}
		if !strings.Contains(out.String(), "Usage:") {
			t.Errorf("run(%v) printed no usage:\n%s", args, out.String())
		}
	}

	var out bytes.Buffer
	if err := run(context.Background(), &out, &out, []string{"version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "bioagent") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), &out, &out, []string{"frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "frobnicate") {
		t.Errorf("err = %v", err)
	}
}

func TestRunConfigFlagRequiresPath(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), &out, &out, []string{"-config"}); err == nil {
		t.Fatal("dangling -config accepted")
	}
}

func TestRunMissingExplicitConfig(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), &out, &out, []string{"-config", "/nonexistent.yaml", "ask", "q"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestInitConfig(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	if err := initConfig(&out, dir); err != nil {
		t.Fatalf("initConfig: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config.yaml not created: %v", err)
	}

	// The written example must itself load cleanly.
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Listen.Port != 8080 || cfg.LLM.Model == "" {
		t.Errorf("example config = %+v", cfg)
	}

	// A second init must not clobber the file.
	if err := initConfig(&out, dir); err == nil {
		t.Fatal("existing config.yaml overwritten")
	}
}

func TestLoadConfigDefaultsWhenNoFile(t *testing.T) {
	// Run from an empty directory and home so no config.yaml is found.
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen.Port != 8080 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bianoble/repo-mirror/internal/config"
)

func TestInitTemplateIsValid(t *testing.T) {
	cfg, err := config.Parse([]byte(initTemplate), false)
	if err != nil {
		t.Fatalf("init template does not parse: %v", err)
	}
	if len(cfg.Remotes) != 1 || cfg.Remotes[0].Name != "flathub" {
		t.Errorf("Remotes = %+v, want one flathub remote", cfg.Remotes)
	}
	if cfg.Repository.StateFile != config.Default().Repository.StateFile {
		t.Errorf("StateFile = %q", cfg.Repository.StateFile)
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	oldPath, oldForce, oldQuiet := configPath, initForce, quiet
	t.Cleanup(func() { configPath, initForce, quiet = oldPath, oldForce, oldQuiet })

	configPath = filepath.Join(dir, config.DefaultFileName)
	quiet = true
	initForce = false

	if err := initCmd.RunE(initCmd, nil); err != nil {
		t.Fatalf("first init: %v", err)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != initTemplate {
		t.Error("written config does not match template")
	}

	err = initCmd.RunE(initCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("second init error = %v, want 'already exists'", err)
	}

	initForce = true
	if err := initCmd.RunE(initCmd, nil); err != nil {
		t.Fatalf("forced init: %v", err)
	}
}

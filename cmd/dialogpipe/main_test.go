package main

import (
	"os"
	"testing"

	"github.com/dialogpipe/dialogpipe/internal/dialog"
)

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("DIALOGPIPE_STATE_DIR")
	os.Unsetenv("RECOGNIZER_THRESHOLD")
	os.Unsetenv("BOT_VERSION")

	config := loadEnvironmentConfig()

	if config.StateDir != DefaultStateDir {
		t.Errorf("Expected default state dir %q, got %q", DefaultStateDir, config.StateDir)
	}
	if config.Threshold != DefaultThreshold {
		t.Errorf("Expected default threshold %v, got %v", DefaultThreshold, config.Threshold)
	}
	if config.BotVersion != dialog.DefaultBotVersion {
		t.Errorf("Expected default bot version %v, got %v", dialog.DefaultBotVersion, config.BotVersion)
	}
}

func TestLoadEnvironmentConfigOverrides(t *testing.T) {
	os.Setenv("DIALOGPIPE_STATE_DIR", "/tmp/dialogpipe-test")
	os.Setenv("RECOGNIZER_THRESHOLD", "0.5")
	os.Setenv("BOT_VERSION", "1.1")
	defer func() {
		os.Unsetenv("DIALOGPIPE_STATE_DIR")
		os.Unsetenv("RECOGNIZER_THRESHOLD")
		os.Unsetenv("BOT_VERSION")
	}()

	config := loadEnvironmentConfig()

	if config.StateDir != "/tmp/dialogpipe-test" {
		t.Errorf("Expected state dir override, got %q", config.StateDir)
	}
	if config.Threshold != 0.5 {
		t.Errorf("Expected threshold 0.5, got %v", config.Threshold)
	}
	if config.BotVersion != 1.1 {
		t.Errorf("Expected bot version 1.1, got %v", config.BotVersion)
	}
}

func TestLoadEnvironmentConfigRejectsInvalidNumbers(t *testing.T) {
	os.Setenv("RECOGNIZER_THRESHOLD", "not-a-number")
	os.Setenv("BOT_VERSION", "also-not")
	defer func() {
		os.Unsetenv("RECOGNIZER_THRESHOLD")
		os.Unsetenv("BOT_VERSION")
	}()

	config := loadEnvironmentConfig()

	if config.Threshold != DefaultThreshold {
		t.Errorf("Expected default threshold on parse failure, got %v", config.Threshold)
	}
	if config.BotVersion != dialog.DefaultBotVersion {
		t.Errorf("Expected default bot version on parse failure, got %v", config.BotVersion)
	}
}

package util

import (
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestGetEnvWithDefault(t *testing.T) {
	// Test with existing env var
	os.Setenv("TEST_STRING", "test-value")
	if GetEnvWithDefault("TEST_STRING", "default") != "test-value" {
		t.Errorf("Expected GetEnvWithDefault to return 'test-value', got '%s'", GetEnvWithDefault("TEST_STRING", "default"))
	}

	// Test with missing env var
	os.Unsetenv("MISSING_VAR")
	if GetEnvWithDefault("MISSING_VAR", "default") != "default" {
		t.Errorf("Expected GetEnvWithDefault to return 'default', got '%s'", GetEnvWithDefault("MISSING_VAR", "default"))
	}

	// Test with empty env var (should return default)
	os.Setenv("EMPTY_VAR", "")
	if GetEnvWithDefault("EMPTY_VAR", "default") != "default" {
		t.Errorf("Expected GetEnvWithDefault to return 'default' for empty var, got '%s'", GetEnvWithDefault("EMPTY_VAR", "default"))
	}

	// Cleanup
	os.Unsetenv("TEST_STRING")
	os.Unsetenv("EMPTY_VAR")
}

func TestGetEnvIntWithDefault(t *testing.T) {
	// Test with valid int env var
	os.Setenv("TEST_INT", "12345")
	if GetEnvIntWithDefault("TEST_INT", 0) != 12345 {
		t.Errorf("Expected GetEnvIntWithDefault to return 12345, got %d", GetEnvIntWithDefault("TEST_INT", 0))
	}

	// Test with invalid int value (should return default)
	os.Setenv("TEST_INVALID_INT", "not-a-number")
	if GetEnvIntWithDefault("TEST_INVALID_INT", 999) != 999 {
		t.Errorf("Expected GetEnvIntWithDefault to return default 999, got %d", GetEnvIntWithDefault("TEST_INVALID_INT", 999))
	}

	// Test with missing env var
	os.Unsetenv("MISSING_INT_VAR")
	if GetEnvIntWithDefault("MISSING_INT_VAR", 777) != 777 {
		t.Errorf("Expected GetEnvIntWithDefault to return default 777, got %d", GetEnvIntWithDefault("MISSING_INT_VAR", 777))
	}

	// Test with empty env var (should return default)
	os.Setenv("EMPTY_INT_VAR", "")
	if GetEnvIntWithDefault("EMPTY_INT_VAR", 888) != 888 {
		t.Errorf("Expected GetEnvIntWithDefault to return default 888 for empty var, got %d", GetEnvIntWithDefault("EMPTY_INT_VAR", 888))
	}

	// Cleanup
	os.Unsetenv("TEST_INT")
	os.Unsetenv("TEST_INVALID_INT")
	os.Unsetenv("EMPTY_INT_VAR")
}

func TestPreRunEWithEnvVars(t *testing.T) {
	t.Setenv("PGDATABASE", "test-db")
	t.Setenv("PGUSER", "test-user")
	t.Setenv("PGHOST", "test-host")
	t.Setenv("PGPORT", "1234")
	t.Setenv("PGPASSWORD", "")
	t.Setenv("PGAPPNAME", "test-app")

	var flags ConnectionFlags
	cmd := &cobra.Command{Use: "test"}
	AddConnectionFlags(cmd, &flags)
	if err := cmd.Flags().Set("host", "flag-host"); err != nil {
		t.Fatalf("Set(host) error = %v", err)
	}

	if err := PreRunEWithEnvVars(&flags)(cmd, nil); err != nil {
		t.Fatalf("PreRunE() error = %v", err)
	}

	want := ConnectionFlags{
		Host:            "flag-host",
		Port:            1234,
		DB:              "test-db",
		User:            "test-user",
		SSLMode:         "prefer",
		ApplicationName: "test-app",
	}
	if flags != want {
		t.Errorf("flags = %+v; want %+v", flags, want)
	}
}

func TestPreRunEWithEnvVarsRequiresUser(t *testing.T) {
	t.Setenv("PGDATABASE", "test-db")
	t.Setenv("PGUSER", "")

	var flags ConnectionFlags
	cmd := &cobra.Command{Use: "test"}
	AddConnectionFlags(cmd, &flags)

	err := PreRunEWithEnvVars(&flags)(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "database user is required") {
		t.Errorf("PreRunE() error = %v; want missing user error", err)
	}
}

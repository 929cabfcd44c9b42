package cmd

import (
	"os"
	"testing"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pgschema/pgdiff/cmd/util"
)

func TestDotenvLoading(t *testing.T) {
	tmpDir := t.TempDir()
	originalDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}
	defer os.Chdir(originalDir)

	t.Run("LoadEnvFile", func(t *testing.T) {
		os.Unsetenv("PGPASSWORD")
		defer os.Unsetenv("PGPASSWORD")

		if err := os.WriteFile(".env", []byte("PGPASSWORD=test_password_123\n"), 0644); err != nil {
			t.Fatalf("Failed to create .env file: %v", err)
		}
		defer os.Remove(".env")

		if err := godotenv.Load(); err != nil {
			t.Fatalf("Failed to load .env file: %v", err)
		}
		if password := os.Getenv("PGPASSWORD"); password != "test_password_123" {
			t.Errorf("Expected PGPASSWORD='test_password_123', got '%s'", password)
		}
	})

	t.Run("MissingEnvFile", func(t *testing.T) {
		os.Unsetenv("PGPASSWORD")
		os.Remove(".env")

		if err := godotenv.Load(); err == nil {
			t.Error("Expected error when loading non-existent .env file, but got nil")
		}
		if password := os.Getenv("PGPASSWORD"); password != "" {
			t.Errorf("Expected PGPASSWORD to be empty, got '%s'", password)
		}
	})

	t.Run("EnvVarPriority", func(t *testing.T) {
		os.Setenv("PGPASSWORD", "env_password")
		defer os.Unsetenv("PGPASSWORD")

		if err := os.WriteFile(".env", []byte("PGPASSWORD=dotenv_password\n"), 0644); err != nil {
			t.Fatalf("Failed to create .env file: %v", err)
		}
		defer os.Remove(".env")

		if err := godotenv.Load(); err != nil {
			t.Fatalf("Failed to load .env file: %v", err)
		}
		if password := os.Getenv("PGPASSWORD"); password != "env_password" {
			t.Errorf("Expected PGPASSWORD='env_password' (existing env var should take precedence), got '%s'", password)
		}
	})

	t.Run("ConnectionFlagsFromDotenv", func(t *testing.T) {
		envVars := []string{"PGHOST", "PGPORT", "PGDATABASE", "PGUSER", "PGPASSWORD"}
		for _, envVar := range envVars {
			os.Unsetenv(envVar)
		}
		defer func() {
			for _, envVar := range envVars {
				os.Unsetenv(envVar)
			}
		}()

		envContent := `PGHOST=test.example.com
PGPORT=5433
PGDATABASE=testdb
PGUSER=testuser
PGPASSWORD=testpass
`
		if err := os.WriteFile(".env", []byte(envContent), 0644); err != nil {
			t.Fatalf("Failed to create .env file: %v", err)
		}
		defer os.Remove(".env")

		if err := godotenv.Load(); err != nil {
			t.Fatalf("Failed to load .env file: %v", err)
		}

		opts := &options{server: "localhost", port: 5432, database: "postgres"}
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().StringVar(&opts.server, "server", "localhost", "")
		cmd.Flags().IntVar(&opts.port, "port", 5432, "")
		cmd.Flags().StringVar(&opts.database, "database", "postgres", "")
		cmd.Flags().StringVar(&opts.user, "user", "", "")
		cmd.Flags().StringVar(&opts.password, "password", "", "")

		util.ApplyConnectionEnv(cmd, util.ConnectionFlags{
			Host:     &opts.server,
			Port:     &opts.port,
			Database: &opts.database,
			User:     &opts.user,
			Password: &opts.password,
		})

		conn := opts.connection()
		if conn.Host != "test.example.com" || conn.Port != 5433 || conn.Database != "testdb" ||
			conn.User != "testuser" || conn.Password != "testpass" {
			t.Errorf("Expected connection from .env values, got %+v", conn)
		}
	})
}

package util

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// GetEnvWithDefault returns the value of an environment variable or a default value if not set
func GetEnvWithDefault(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvIntWithDefault returns the value of an environment variable as int or a default value if not set
func GetEnvIntWithDefault(envVar string, defaultValue int) int {
	if value := os.Getenv(envVar); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// ConnectionFlags points at the connection flag variables of a command.
type ConnectionFlags struct {
	Host     *string
	Port     *int
	Database *string
	User     *string
	Password *string
}

// ApplyConnectionEnv fills connection flags the user did not set from the
// libpq environment variables (PGHOST, PGPORT, PGDATABASE, PGUSER,
// PGPASSWORD). An explicit flag always wins.
func ApplyConnectionEnv(cmd *cobra.Command, flags ConnectionFlags) {
	setString := func(flag, env string, target *string) {
		if target == nil || cmd.Flags().Changed(flag) {
			return
		}
		if v := GetEnvWithDefault(env, ""); v != "" {
			*target = v
		}
	}

	setString("server", "PGHOST", flags.Host)
	setString("database", "PGDATABASE", flags.Database)
	setString("user", "PGUSER", flags.User)
	setString("password", "PGPASSWORD", flags.Password)
	if flags.Port != nil && !cmd.Flags().Changed("port") {
		if port := GetEnvIntWithDefault("PGPORT", 0); port != 0 {
			*flags.Port = port
		}
	}
}

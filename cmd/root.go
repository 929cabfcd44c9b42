package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgschema/pgdiff/cmd/util"
	"github.com/pgschema/pgdiff/internal/config"
	"github.com/pgschema/pgdiff/internal/ddl"
	"github.com/pgschema/pgdiff/internal/inspect"
	"github.com/pgschema/pgdiff/internal/logger"
	"github.com/pgschema/pgdiff/internal/version"
)

// options holds the flag values of one root command instance
type options struct {
	debug   bool
	command string

	server   string
	port     int
	user     string
	password string
	database string
	scheme   string
	useSSL   bool

	output     string
	from       string
	to         string
	configFile string
	useDrop    bool
	noColor    bool
}

// RootCmd is the pgdiff command line
var RootCmd = NewRootCmd()

// NewRootCmd builds the root command with its own flag storage
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "pgdiff",
		Short: "PostgreSQL schema dump and compare tool",
		Long: fmt.Sprintf(`pgdiff dumps PostgreSQL schemas and generates the SQL script that migrates one schema into another.

Version: %s

Usage:
  pgdiff --command dump     Dump a database schema into the --output file
  pgdiff --command compare  Compare the --from and --to dumps and write a migration script to --output
  pgdiff --config FILE      Dump both databases described in FILE, then compare them

Use "pgdiff --help" for the list of flags.`, version.String()),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(opts.debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd)
		},
	}

	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	flags := root.Flags()
	flags.StringVar(&opts.command, "command", "", "Command to execute: dump or compare")
	flags.StringVar(&opts.server, "server", "localhost", "Database server host (env: PGHOST)")
	flags.IntVar(&opts.port, "port", config.DefaultPort, "Database server port (env: PGPORT)")
	flags.StringVar(&opts.user, "user", "", "Database user name (env: PGUSER)")
	flags.StringVar(&opts.password, "password", "", "Database password (env: PGPASSWORD)")
	flags.StringVar(&opts.database, "database", "postgres", "Database name (env: PGDATABASE)")
	flags.StringVar(&opts.scheme, "scheme", "public", "Schema to dump; * matches any characters")
	flags.BoolVar(&opts.useSSL, "use_ssl", false, "Require SSL for the database connection")
	flags.StringVar(&opts.output, "output", config.DefaultOutput, "Output file for the dump or the migration script; - writes the script to stdout")
	flags.StringVar(&opts.from, "from", config.DefaultFromDump, "Dump file describing the current schema")
	flags.StringVar(&opts.to, "to", config.DefaultToDump, "Dump file describing the desired schema")
	flags.StringVar(&opts.configFile, "config", "", "Configuration file for a dump-and-compare run")
	flags.BoolVar(&opts.useDrop, "use_drop", false, "Emit DROP statements instead of commenting them out")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newVersionCmd())
	return root
}

func (o *options) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if o.configFile != "" {
		return o.runWithConfig(ctx, out)
	}

	switch o.command {
	case "":
		return cmd.Help()
	case "dump":
		util.ApplyConnectionEnv(cmd, util.ConnectionFlags{
			Host:     &o.server,
			Port:     &o.port,
			Database: &o.database,
			User:     &o.user,
			Password: &o.password,
		})
		return runDump(ctx, out, o.connection(), o.output)
	case "compare":
		return runCompare(out, o.from, o.to, o.output, o.compareOptions())
	default:
		return fmt.Errorf("unknown command %q: expected dump or compare", o.command)
	}
}

func (o *options) connection() inspect.Config {
	return inspect.Config{
		Host:     o.server,
		Port:     o.port,
		Database: o.database,
		User:     o.user,
		Password: o.password,
		SSL:      o.useSSL,
		Schema:   o.scheme,
	}
}

func (o *options) compareOptions() compareOptions {
	return compareOptions{
		ddl:     ddl.Options{UseDrop: o.useDrop},
		noColor: o.noColor,
	}
}

func setupLogger(debug bool) {
	logger.SetGlobal(logger.New(os.Stderr, debug), debug)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command yojana runs the timesheet and project-tracking API and its
// maintenance tasks.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"yojana/internal/config"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "yojana",
		Short:         "Timesheet and project tracking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "yojana.toml", "path to the TOML configuration file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before configuration")

	root.AddCommand(
		newServeCmd(flags),
		newMigrateCmd(flags),
		newBootstrapAdminCmd(flags),
	)
	return root
}

// load applies the dotenv file, when present, then reads the configuration.
// Variables already set in the environment win over the dotenv file.
func (f *globalFlags) load() (config.Config, error) {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, fmt.Errorf("load %s: %w", f.envFile, err)
		}
	}
	return config.Load(f.configPath)
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/srt/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a new srt project",
	Long: `Initialize a new srt project in the given directory, or the current one.

This creates:
  - srt.yaml                 - Configuration file
  - tests/login.json         - Logs in and captures the token
  - tests/get_profile.json   - Uses ${login}.token
  - tests/delete_session.json - Runs last as a destructive request

Examples:
  srt init
  srt init ./api --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleLogin = `{
  "testname": "login",
  "description": "Log in with the credentials given as macros",
  "expectation": "returns a session token",
  "options": {
    "host": "${host}",
    "port": 3000,
    "path": "/login",
    "method": "POST",
    "headers": {"Content-Type": "application/json"}
  },
  "payload": {"user": "${user}", "password": "${password}"},
  "status": 200,
  "saveResponse": true
}
`

const exampleProfile = `{
  "testname": "get_profile",
  "description": "Fetch the profile of the logged in user",
  "expectation": "returns the user",
  "options": {
    "host": "${host}",
    "port": 3000,
    "path": "/profile",
    "headers": {"Authorization": "Bearer ${login}.token"}
  },
  "status": 200,
  "responseRegexp": "${user}"
}
`

const exampleLogout = `{
  "testname": "delete_session",
  "description": "Log out",
  "expectation": "the session is gone",
  "options": {
    "host": "${host}",
    "port": 3000,
    "path": "/session",
    "method": "DELETE",
    "headers": {"Authorization": "Bearer ${login}.token"}
  },
  "status": 204
}
`

func initCommand(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	configFile := filepath.Join(dir, "srt.yaml")
	testDir := filepath.Join(dir, "tests")
	examples := map[string]string{
		filepath.Join(testDir, "login.json"):          exampleLogin,
		filepath.Join(testDir, "get_profile.json"):    exampleProfile,
		filepath.Join(testDir, "delete_session.json"): exampleLogout,
	}

	if !forceInit {
		paths := []string{configFile}
		for p := range examples {
			paths = append(paths, p)
		}
		for _, f := range paths {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	if err := os.MkdirAll(testDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{"User-Agent": "srt/" + version}
	cfg.Macros = map[string]string{"host": "localhost", "user": "alice"}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	for _, name := range []string{"login.json", "get_profile.json", "delete_session.json"} {
		path := filepath.Join(testDir, name)
		if err := os.WriteFile(path, []byte(examples[path]), 0644); err != nil {
			return fmt.Errorf("failed to create example file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nsrt project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'srt run %s -D password=...' to execute the example tests.\n", testDir)

	return nil
}

// Package cli implements the divviup command line tool on top of the API
// client.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/divviup/divviup-console/internal/client"
	"github.com/divviup/divviup-console/internal/config"
	apierrors "github.com/divviup/divviup-console/internal/errors"
	"github.com/divviup/divviup-console/internal/logging"
	"github.com/divviup/divviup-console/internal/metrics"
	"github.com/divviup/divviup-console/internal/store"
	"github.com/divviup/divviup-console/internal/validation"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "0.1.0"

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config    string
	APIURL    string
	Origin    string
	Token     string
	AccountID string
	Output    string
	Verbose   bool
}

// app is the state shared by one command invocation.
type app struct {
	flags  GlobalFlags
	out    io.Writer
	errOut io.Writer

	cfg    *config.Config
	logger *logging.Logger
	api    *client.Client
	keys   store.Store
	// metrics, when set before the client is created, instruments it
	metrics *metrics.Metrics

	// newKeystore opens the local key store; replaced in tests.
	newKeystore func(path string) (store.Store, error)
}

func newApp() *app {
	return &app{
		out:    os.Stdout,
		errOut: os.Stderr,
		newKeystore: func(path string) (store.Store, error) {
			return store.NewSQLiteStore(path)
		},
	}
}

// NewRootCmd builds the divviup command tree.
func NewRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "divviup",
		Short: "Divvi Up - manage accounts, tasks and aggregators",
		Long: `divviup manages a Divvi Up account from the command line: accounts,
memberships, tasks, aggregators, API tokens, collector credentials and,
for administrators, the background job queue.

Authenticate with an API token (--token or DIVVIUP_TOKEN). The API URL
defaults to https://api.divviup.org/ and may instead be discovered from
a console origin with --origin.

Use "divviup [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			a.errOut = cmd.ErrOrStderr()
			// one correlation id for every API request of this invocation
			ctx, _ := logging.EnsureCorrelationID(cmd.Context())
			cmd.SetContext(ctx)
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.flags.Config, "config", "", "Path to configuration file (default $DIVVIUP_CONFIG_PATH or the user config dir)")
	flags.StringVarP(&a.flags.APIURL, "url", "u", "", "API base URL (overrides DIVVIUP_API_URL and config)")
	flags.StringVar(&a.flags.Origin, "origin", "", "Console origin to discover the API URL from")
	flags.StringVar(&a.flags.Token, "token", "", "API token (overrides DIVVIUP_TOKEN)")
	flags.StringVar(&a.flags.AccountID, "account-id", "", "Account to operate on (overrides config)")
	flags.StringVarP(&a.flags.Output, "output", "o", "", "Output format: json, yaml or text")
	flags.BoolVarP(&a.flags.Verbose, "verbose", "v", false, "Log requests to stderr")

	cmd.AddCommand(
		a.versionCmd(),
		a.whoamiCmd(),
		a.checkCmd(),
		a.accountCmd(),
		a.membershipCmd(),
		a.taskCmd(),
		a.aggregatorCmd(),
		a.apiTokenCmd(),
		a.collectorCredentialCmd(),
		a.queueCmd(),
		a.consoleCmd(),
	)
	return cmd
}

// setup loads configuration and applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadFromEnv(a.flags.Config)
	if err != nil {
		return err
	}

	if a.flags.APIURL != "" {
		cfg.API.URL = a.flags.APIURL
	}
	if a.flags.Origin != "" {
		cfg.API.Origin = a.flags.Origin
		if a.flags.APIURL == "" {
			cfg.API.URL = ""
		}
	}
	if a.flags.Token != "" {
		cfg.API.Token = a.flags.Token
	}
	if a.flags.AccountID != "" {
		cfg.AccountID = a.flags.AccountID
	}
	if a.flags.Output != "" {
		cfg.Output = a.flags.Output
	}
	if a.flags.Verbose {
		cfg.LogLevel = string(logging.LevelDebug)
	}
	if err := cfg.Validate(); err != nil {
		return &apierrors.ErrConfigValidation{Err: err}
	}

	level, _ := logging.ParseLevel(cfg.LogLevel)
	a.cfg = cfg
	a.logger = logging.NewLogger(
		logging.WithOutput(a.errOut),
		logging.WithLevel(level),
		logging.WithService("divviup-cli"),
	)
	return nil
}

func (a *app) close() error {
	if a.keys == nil {
		return nil
	}
	err := a.keys.Close()
	a.keys = nil
	return err
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of divviup",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := GetVersionInfo()
			return a.print(info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "divviup %s (%s %s/%s)\n", info.Version, info.GoVersion, info.OS, info.Arch)
				return err
			})
		},
	}
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	a := newApp()
	// PersistentPostRunE is skipped when a command fails
	defer a.close()

	cmd := a.rootCmd()
	cmd.SetArgs(args)
	return exitCode(cmd.ErrOrStderr(), cmd.ExecuteContext(ctx))
}

// exitCode reports err on w. Validation failures are printed as one
// normalized message per field.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var failed *apierrors.ValidationFailed
	if stderrors.As(err, &failed) {
		if node, ok := failed.Errors.(validation.Node); ok {
			_ = printFormErrors(w, validation.Normalize(node))
			return 1
		}
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	if apierrors.IsForbidden(err) {
		fmt.Fprintln(w, "The API refused the request. Check the API token (--token or DIVVIUP_TOKEN).")
	}
	return 1
}

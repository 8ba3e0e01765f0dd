package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/divviup/divviup-console/internal/config"
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

const (
	checkOK   = "OK"
	checkWarn = "WARN"
	checkFail = "FAIL"
)

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "check",
		Aliases: []string{"doctor", "status"},
		Short:   "Check configuration, API reachability and credentials",
		Long: `Check that divviup is usable from here.

This command checks:
- the configuration file
- the local collector key store
- API URL discovery
- the configured credentials`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := []CheckResult{
				a.checkConfig(),
				a.checkKeystore(),
			}
			discovery := a.checkDiscovery(cmd)
			results = append(results, discovery)
			if discovery.Status == checkOK {
				results = append(results, a.checkCredentials(cmd))
			}

			if err := a.print(results, func(w io.Writer) error {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{r.Name, r.Status, r.Message})
				}
				return table(w, []string{"CHECK", "STATUS", "MESSAGE"}, rows)
			}); err != nil {
				return err
			}

			var failed int
			for _, r := range results {
				if r.Status == checkFail {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results))
			}
			return nil
		},
	}
}

// configPath is the file setup read configuration from, if any.
func (a *app) configPath() string {
	if a.flags.Config != "" {
		return a.flags.Config
	}
	if path := os.Getenv(config.EnvConfigPath); path != "" {
		return path
	}
	return config.DefaultPath()
}

func (a *app) checkConfig() CheckResult {
	result := CheckResult{Name: "Configuration", Status: checkOK}
	path := a.configPath()
	if _, err := os.Stat(path); err != nil {
		result.Message = "No configuration file, using defaults and environment"
		result.Details = path
		return result
	}
	result.Message = "Configuration valid: " + path
	if a.cfg.API.URL != "" {
		result.Details = "API: " + a.cfg.API.URL
	} else {
		result.Details = "Origin: " + a.cfg.API.Origin
	}
	return result
}

func (a *app) checkKeystore() CheckResult {
	result := CheckResult{Name: "Key store", Status: checkOK}
	if _, err := a.keystore(); err != nil {
		result.Status = checkWarn
		result.Message = fmt.Sprintf("Key store unavailable: %v", err)
		return result
	}
	result.Message = "Key store opened: " + a.cfg.Keystore.Path
	return result
}

func (a *app) checkDiscovery(cmd *cobra.Command) CheckResult {
	result := CheckResult{Name: "API", Status: checkOK}
	c, err := a.client()
	if err != nil {
		result.Status = checkFail
		result.Message = err.Error()
		return result
	}
	base, err := c.BaseURL(cmd.Context())
	if err != nil {
		result.Status = checkFail
		result.Message = fmt.Sprintf("API URL discovery failed: %v", err)
		return result
	}
	result.Message = "API URL: " + base
	return result
}

func (a *app) checkCredentials(cmd *cobra.Command) CheckResult {
	result := CheckResult{Name: "Credentials", Status: checkOK}
	c, err := a.client()
	if err != nil {
		result.Status = checkFail
		result.Message = err.Error()
		return result
	}
	if a.cfg.API.Token == "" {
		result.Status = checkWarn
		result.Message = "No API token configured (set DIVVIUP_TOKEN)"
		return result
	}
	accounts, err := c.Accounts(cmd.Context())
	if err != nil {
		result.Status = checkFail
		result.Message = fmt.Sprintf("API token rejected: %v", err)
		return result
	}
	result.Message = fmt.Sprintf("API token accepted, %d account(s) visible", len(accounts))
	return result
}

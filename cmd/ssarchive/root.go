package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"ssarchive/pkg/auth"
	"ssarchive/pkg/config"
	"ssarchive/pkg/fetch"
	"ssarchive/pkg/logger"
	"ssarchive/pkg/records"
	"ssarchive/pkg/run"
	"ssarchive/pkg/storage"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	profile    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ssarchive",
	Short: "Archive feed posts as self-contained offline HTML",
	Long: `ssarchive discovers posts from a paginated feed and exports each one as a
self-contained HTML document with its images saved alongside.

Features:
  - Infinite-scroll discovery with bounded load attempts
  - Inclusive date-range filtering on publication dates
  - Content fingerprinting so unchanged posts are skipped on re-runs
  - Secure session storage using the system keychain
  - Automatic retry with backoff on transient network failures`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.ssarchive.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "a", "", "use a specific stored session profile")

	rootCmd.SetVersionTemplate(`ssarchive {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig assembles configuration from all sources and initializes the
// logger from it.
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	logger.Initialize(&cfg.Logging)
	return cfg, nil
}

// attachSession resolves the stored session cookie into the configuration.
// Missing sessions are not fatal: public posts fetch fine without one.
func attachSession(cfg *config.Config) {
	log := logger.GetLogger()

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("session store unavailable, continuing unauthenticated")
		return
	}

	var session *auth.Session
	if profile != "" {
		session, err = manager.Retrieve(profile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Session profile not found: %s\n", profile)
			fmt.Fprintln(os.Stderr, "Use 'ssarchive auth list' to see stored profiles.")
			os.Exit(1)
		}
	} else {
		session, err = manager.RetrieveDefault()
		if err != nil {
			if cfg.Site.Session == "" {
				log.Warn("no session found; gated posts will be unavailable")
				fmt.Fprintln(os.Stderr, "No session stored. Run 'ssarchive auth login' to add one,")
				fmt.Fprintln(os.Stderr, "or set SSARCHIVE_SESSION in the environment.")
			}
			return
		}
	}

	cfg.Site.Session = session.Cookie
	if session.UserAgent != "" {
		cfg.Site.UserAgent = session.UserAgent
	}
	log.WithField("profile", session.Profile).Info("using stored session")
}

// recordsPath keeps the record database next to the archive so records
// travel with it.
func recordsPath(cfg *config.Config) string {
	return filepath.Join(cfg.Export.OutputDir, ".ssarchive.db")
}

// newSession wires the run session and its collaborators from configuration.
// The caller closes the returned store.
func newSession(cfg *config.Config) (*run.Session, *records.Store, error) {
	log := logger.GetLogger()

	client, err := fetch.NewClient(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	store, err := records.Open(recordsPath(cfg))
	if err != nil {
		return nil, nil, err
	}

	files := storage.NewManager(cfg.Export.OutputDir, cfg.Export.FallbackDir, log)

	return run.New(cfg, client, store, files, log), store, nil
}

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/julianfbeck/panopto-relink-cli/internal/config"
	"github.com/julianfbeck/panopto-relink-cli/internal/panopto"
	"github.com/julianfbeck/panopto-relink-cli/internal/relink"
	"github.com/julianfbeck/panopto-relink-cli/internal/store"
)

const (
	exitGeneric       = 1
	exitUsage         = 2
	exitConfigMissing = 3
	exitUnavailable   = 4
	exitMalformed     = 5
	exitNotFound      = 6
)

var (
	jsonOutput  bool
	plainOutput bool
	quietMode   bool
	verbose     bool
	noColor     bool
	noInput     bool
	storeDir    string
	serverFlag  string
	timeout     time.Duration
	version     = "dev"
	ctx         = context.Background()
	logger      = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:           "panopto-relink",
	Short:         "Find replacement Panopto sessions for broken course video links",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		handleError(err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false, "Output as plain text")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
	rootCmd.PersistentFlags().BoolVar(&noInput, "no-input", false, "Disable interactive prompts")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "", "Store directory (default: ~/.panopto-relink)")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Use only this Panopto server (host or URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Panopto request timeout")

	cobra.OnInitialize(func() {
		if jsonOutput && plainOutput {
			plainOutput = false
		}
		logger = newLogger(os.Stderr)
	})
}

func newLogger(w io.Writer) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: noColor || plainOutput}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	return e.Err.Error()
}

func (e ExitError) Unwrap() error {
	return e.Err
}

func exitError(code int, err error) error {
	return ExitError{Code: code, Err: err}
}

// exitForLookup maps a failed lookup onto its process exit code.
func exitForLookup(err error) error {
	if errors.Is(err, relink.ErrEmptyGroupName) {
		return exitError(exitUsage, err)
	}
	switch relink.KindOf(err) {
	case relink.KindConfigurationMissing:
		return exitError(exitConfigMissing, err)
	case relink.KindMalformedResponse:
		return exitError(exitMalformed, err)
	default:
		return exitError(exitUnavailable, err)
	}
}

func handleError(err error) {
	var exit ExitError
	if errors.As(err, &exit) {
		printError("%v\n", exit.Err)
		os.Exit(exit.Code)
	}
	printError("%v\n", err)
	os.Exit(exitGeneric)
}

func outputJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printInfo(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func resolveStoreDir() (string, error) {
	return config.ResolveStoreDir(storeDir)
}

// loadFileConfig reads config.json as stored, without env overlays. Commands
// that write the config back use it.
func loadFileConfig() (*config.Config, string, error) {
	store, err := resolveStoreDir()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(store)
	if err != nil {
		return nil, "", err
	}
	return cfg, store, nil
}

// loadConfig returns the effective config: file, then .env, then the
// environment, then --server.
func loadConfig() (*config.Config, string, error) {
	cfg, store, err := loadFileConfig()
	if err != nil {
		return nil, "", err
	}
	if err := config.LoadDotEnv(store); err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg)
	cfg.ApplyDefaults()

	if serverFlag != "" {
		override, err := serverOverride(cfg.Instances, serverFlag)
		if err != nil {
			return nil, "", exitError(exitConfigMissing, err)
		}
		cfg.Instances = []config.Instance{override}
	}
	return cfg, store, nil
}

func serverOverride(instances []config.Instance, server string) (config.Instance, error) {
	host := config.ServerHost(server)
	for _, inst := range instances {
		if config.ServerHost(inst.ServerName) == host {
			return inst, nil
		}
	}
	if key := os.Getenv("PANOPTO_APPLICATION_KEY"); key != "" {
		return config.Instance{ServerName: server, ApplicationKey: key, Slot: 1}, nil
	}
	return config.Instance{}, fmt.Errorf("no application key configured for %s", host)
}

func newClient(inst config.Instance) *panopto.Client {
	return panopto.NewClient(config.NormalizeServerURL(inst.ServerName), timeout, logger)
}

// getResolver builds a resolver from the effective config. Outcomes are
// recorded to the lookup history when the store can be opened.
func getResolver() (*relink.Resolver, *config.Config, *store.Store, error) {
	cfg, storeDir, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.ValidateIdentity(); err != nil {
		return nil, nil, nil, exitError(exitConfigMissing, err)
	}

	resolver := relink.NewResolver(cfg.Instances, cfg.UserKey(), func(inst config.Instance) relink.SessionService {
		return newClient(inst)
	}, logger)

	history, err := store.Open(storeDir)
	if err != nil {
		logger.Warn().Err(err).Msg("lookup history disabled")
		return resolver, cfg, nil, nil
	}
	resolver.OnOutcome = func(out relink.Outcome) {
		if _, err := history.RecordLookup(lookupRecord(out)); err != nil {
			logger.Warn().Err(err).Str("request_id", out.RequestID).Msg("recording lookup")
		}
	}
	return resolver, cfg, history, nil
}

func lookupRecord(out relink.Outcome) *store.Lookup {
	rec := &store.Lookup{
		RequestID:  out.RequestID,
		GroupName:  out.Group,
		ServerName: store.NullString(out.Instance.ServerName),
		Outcome:    store.OutcomeNotFound,
	}
	switch {
	case out.Err != nil:
		rec.Outcome = relink.KindOf(out.Err).String()
		rec.Error = store.NullString(out.Err.Error())
	case out.Session != nil:
		rec.Outcome = store.OutcomeFound
		rec.SessionID = store.NullString(out.Session.ID)
		rec.SessionName = store.NullString(out.Session.Name)
		rec.FolderName = store.NullString(out.Session.FolderName)
		rec.ThumbURL = store.NullString(out.Session.ThumbnailURL)
	}
	return rec
}

func closeHistory(st *store.Store) {
	if st != nil {
		_ = st.Close()
	}
}

// Package main provides the entry point for the subvoice CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/audio"
	"github.com/dgnsrekt/subvoice/internal/bridge"
	"github.com/dgnsrekt/subvoice/internal/cache"
	"github.com/dgnsrekt/subvoice/internal/caption"
	"github.com/dgnsrekt/subvoice/internal/queue"
	"github.com/dgnsrekt/subvoice/internal/remote"
	"github.com/dgnsrekt/subvoice/internal/retry"
	"github.com/dgnsrekt/subvoice/internal/service"
	"github.com/dgnsrekt/subvoice/internal/session"
	"github.com/dgnsrekt/subvoice/internal/settings"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool
	width      int

	rootCmd = &cobra.Command{
		Use:   "subvoice",
		Short: "Hear video captions in your language",
		Long: paragraph(
			fmt.Sprintf("\nWatch the captions of the video you are playing, %s and speak them aloud.", keyword("translate them")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

func validateOptions(cmd *cobra.Command) error {
	if configFile != "" {
		path, err := homedir.Expand(configFile)
		if err != nil {
			return fmt.Errorf("unable to expand config path: %w", err)
		}
		configFile = path
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	debug = viper.GetBool("debug")
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	if n := viper.GetInt("cache.capacity"); n < 1 {
		return fmt.Errorf("cache capacity must be positive, got %d", n)
	}
	if d := viper.GetDuration("youtube.flush_interval"); d <= 0 {
		return fmt.Errorf("youtube flush interval must be positive, got %s", d)
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") { //nolint:nestif
		width = 0
		if term.IsTerminal(int(os.Stdout.Fd())) {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = w
			}
			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

// loadSettings returns the user settings store backed by the config file.
func loadSettings() (*settings.Store, error) {
	store := settings.NewStore(viper.GetViper())
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("unable to load settings: %w", err)
	}
	return store, nil
}

func newService() *service.Service {
	cfg := remote.DefaultConfig()
	cfg.RequestInterval = viper.GetDuration("remote.request_interval")
	cfg.Timeout = viper.GetDuration("remote.timeout")
	return service.NewRemote(cfg, viper.GetInt("cache.capacity"))
}

func newPlayer() (*audio.OtoPlayer, error) {
	p, err := audio.NewOtoPlayer(audio.PlayerConfig{
		SampleRate: viper.GetInt("audio.sample_rate"),
		BufferSize: viper.GetDuration("audio.buffer"),
		Quality:    viper.GetInt("audio.quality"),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open audio device: %w", err)
	}
	return p, nil
}

func queueConfig() queue.Config {
	return queue.Config{
		Gap:     viper.GetDuration("playback.gap"),
		Retry:   retry.LinearBackoff(viper.GetInt("playback.retries"), viper.GetDuration("playback.backoff")),
		Timeout: viper.GetDuration("playback.timeout"),
	}
}

func sessionDeps(backend session.Backend, player audio.Player, store *settings.Store) session.Deps {
	return session.Deps{
		Backend:       backend,
		Player:        player,
		Settings:      store,
		Events:        session.NewHub(),
		Queue:         queueConfig(),
		FlushInterval: viper.GetDuration("youtube.flush_interval"),
		ReinitDelay:   viper.GetDuration("session.reinit_delay"),
	}
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVarP(&width, "width", "w", 0, "word-wrap at width")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	setDefaults(viper.GetViper())

	rootCmd.AddCommand(
		serveCmd,
		translateCmd,
		speakCmd,
		vttCmd,
		languagesCmd,
		statusCmd,
		configCmd,
		manCmd,
	)
}

func setDefaults(v *viper.Viper) {
	settings.SetDefaults(v)

	v.SetDefault("debug", false)
	v.SetDefault("bridge.addr", bridge.DefaultAddr)
	v.SetDefault("cache.capacity", cache.DefaultCapacity)
	v.SetDefault("remote.request_interval", 250*time.Millisecond)
	v.SetDefault("remote.timeout", 10*time.Second)
	v.SetDefault("youtube.flush_interval", caption.DefaultFlushInterval)
	v.SetDefault("session.reinit_delay", session.DefaultReinitDelay)
	v.SetDefault("playback.gap", queue.DefaultGap)
	v.SetDefault("playback.retries", retry.DefaultAttempts)
	v.SetDefault("playback.backoff", retry.DefaultBackoffBase)
	v.SetDefault("playback.timeout", time.Duration(0))

	d := audio.DefaultPlayerConfig()
	v.SetDefault("audio.sample_rate", d.SampleRate)
	v.SetDefault("audio.buffer", d.BufferSize)
	v.SetDefault("audio.quality", d.Quality)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "subvoice")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "subvoice")}, dirs...)
	}

	if c := os.Getenv("SUBVOICE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("subvoice")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("subvoice")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = filepath.Join(dirs[0], "subvoice.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
		return
	}
	// Settings changes are written back to this file.
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		log.Warn("Could not read default configuration", "err", err)
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/dgnsrekt/subvoice/internal/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultConfig = `# What you hear. These are also changed from the page popup.
settings:
  # target language code, see "subvoice languages"
  target_language: "es"
  # 0 to 100
  volume: 100
  # 0 to 200, 100 is normal speed
  speed: 100
  enabled: true

# address of the page bridge
bridge:
  addr: "127.0.0.1:8765"

# number of synthesized phrases kept in memory
cache:
  capacity: 100

remote:
  # minimum spacing between two requests to the same endpoint
  request_interval: "250ms"
  timeout: "10s"

youtube:
  # how often word-by-word captions are spoken
  flush_interval: "3s"

session:
  # wait after an in-page navigation before watching the new page
  reinit_delay: "1500ms"

playback:
  # pause after each phrase
  gap: "50ms"
  # attempts before a phrase is dropped, waiting backoff * attempt in between
  retries: 3
  backoff: "1s"
  # per phrase limit, 0 disables it
  timeout: "0s"

audio:
  # 44100 or 48000
  sample_rate: 44100
  buffer: "100ms"
  # resampling quality, 1 to 64
  quality: 4
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the subvoice config file",
	Long:    paragraph(fmt.Sprintf("\n%s the subvoice config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("subvoice config\nsubvoice config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("subvoice", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  paragraph(fmt.Sprintf("\n%s the configuration in effect, after the config file, environment and flags are merged.", keyword("Print"))),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := loadSettings()
		if err != nil {
			return err
		}
		return writeEffectiveConfig(cmd.OutOrStdout(), store.Config(), viper.GetViper())
	},
}

// effectiveConfig mirrors the layout of the config file.
type effectiveConfig struct {
	File     string          `yaml:"file,omitempty"`
	Settings settings.Config `yaml:"settings"`
	Bridge   struct {
		Addr string `yaml:"addr"`
	} `yaml:"bridge"`
	Cache struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"cache"`
	Remote struct {
		RequestInterval string `yaml:"request_interval"`
		Timeout         string `yaml:"timeout"`
	} `yaml:"remote"`
	YouTube struct {
		FlushInterval string `yaml:"flush_interval"`
	} `yaml:"youtube"`
	Session struct {
		ReinitDelay string `yaml:"reinit_delay"`
	} `yaml:"session"`
	Playback struct {
		Gap     string `yaml:"gap"`
		Retries int    `yaml:"retries"`
		Backoff string `yaml:"backoff"`
		Timeout string `yaml:"timeout"`
	} `yaml:"playback"`
	Audio struct {
		SampleRate int    `yaml:"sample_rate"`
		Buffer     string `yaml:"buffer"`
		Quality    int    `yaml:"quality"`
	} `yaml:"audio"`
}

func writeEffectiveConfig(w io.Writer, s settings.Config, v *viper.Viper) error {
	dur := func(key string) string { return v.GetDuration(key).String() }

	var c effectiveConfig
	c.File = v.ConfigFileUsed()
	c.Settings = s
	c.Bridge.Addr = v.GetString("bridge.addr")
	c.Cache.Capacity = v.GetInt("cache.capacity")
	c.Remote.RequestInterval = dur("remote.request_interval")
	c.Remote.Timeout = dur("remote.timeout")
	c.YouTube.FlushInterval = dur("youtube.flush_interval")
	c.Session.ReinitDelay = dur("session.reinit_delay")
	c.Playback.Gap = dur("playback.gap")
	c.Playback.Retries = v.GetInt("playback.retries")
	c.Playback.Backoff = dur("playback.backoff")
	c.Playback.Timeout = dur("playback.timeout")
	c.Audio.SampleRate = v.GetInt("audio.sample_rate")
	c.Audio.Buffer = dur("audio.buffer")
	c.Audio.Quality = v.GetInt("audio.quality")

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("unable to encode config: %w", err)
	}
	return enc.Close()
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

package settings

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/langs"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const prefix = "settings."

// Store loads the configuration from viper, persists updates and fans out
// change notifications.
type Store struct {
	v *viper.Viper

	// setMu serializes Set so the config layer and cfg move together.
	setMu sync.Mutex

	mu  sync.RWMutex
	cfg Config

	subsMu sync.Mutex
	subs   map[int]func(Change)
	nextID int

	logger *log.Logger
}

// NewStore creates a store backed by v. A nil v uses a fresh viper instance
// with no config file, which keeps updates in memory.
func NewStore(v *viper.Viper) *Store {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	return &Store{
		v:      v,
		cfg:    Defaults(),
		subs:   make(map[int]func(Change)),
		logger: log.WithPrefix("settings"),
	}
}

// SetDefaults registers the default settings on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault(prefix+"target_language", d.TargetLanguage)
	v.SetDefault(prefix+"volume", d.Volume)
	v.SetDefault(prefix+"speed", d.Speed)
	v.SetDefault(prefix+"enabled", d.IsEnabled)
}

// Load reads the settings, merged onto the defaults.
func (s *Store) Load() error {
	cfg, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	s.logger.Debug("settings loaded", "lang", cfg.TargetLanguage, "volume", cfg.Volume, "speed", cfg.Speed, "enabled", cfg.IsEnabled)
	return nil
}

// read resolves each key on its own so keys missing from a partial
// settings block fall back to their defaults.
func (s *Store) read() (Config, error) {
	var (
		cfg  Config
		errs []error
	)
	cfg.TargetLanguage = s.v.GetString(prefix + "target_language")
	volume, err := cast.ToIntE(s.v.Get(prefix + "volume"))
	errs = append(errs, err)
	speed, err := cast.ToIntE(s.v.Get(prefix + "speed"))
	errs = append(errs, err)
	enabled, err := cast.ToBoolE(s.v.Get(prefix + "enabled"))
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return Defaults(), fmt.Errorf("unable to decode settings: %w", err)
	}
	cfg.Volume, cfg.Speed, cfg.IsEnabled = volume, speed, enabled

	if err := langs.Valid(cfg.TargetLanguage); err != nil {
		s.logger.Warn("ignoring stored target language", "lang", cfg.TargetLanguage, "error", err)
	}
	return cfg.Normalize(), nil
}

// Config returns the current settings.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set applies fn to a copy of the settings, persists the result when the
// store has a config file, and notifies subscribers. Nothing changes when
// persisting fails.
func (s *Store) Set(fn func(*Config)) error {
	s.setMu.Lock()
	defer s.setMu.Unlock()

	prev := s.Config()
	next := prev
	fn(&next)
	if err := langs.Valid(next.TargetLanguage); err != nil {
		return err
	}
	next = next.Normalize()

	// Merged into the config layer rather than set as overrides so a later
	// file reload still wins.
	if err := s.v.MergeConfigMap(settingsMap(next)); err != nil {
		return fmt.Errorf("unable to apply settings: %w", err)
	}
	if s.v.ConfigFileUsed() != "" {
		if err := s.v.WriteConfig(); err != nil {
			if rerr := s.v.MergeConfigMap(settingsMap(prev)); rerr != nil {
				s.logger.Error("could not restore settings", "error", rerr)
			}
			return fmt.Errorf("unable to persist settings: %w", err)
		}
	}

	s.mu.Lock()
	s.cfg = next
	s.mu.Unlock()

	s.notify(Change{Old: prev, New: next})
	return nil
}

func settingsMap(c Config) map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"target_language": c.TargetLanguage,
			"volume":          c.Volume,
			"speed":           c.Speed,
			"enabled":         c.IsEnabled,
		},
	}
}

// Watch reloads the settings whenever the config file changes on disk.
func (s *Store) Watch() error {
	if s.v.ConfigFileUsed() == "" {
		return errors.New("no config file to watch")
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		s.logger.Debug("config file changed", "path", e.Name, "op", e.Op.String())
		s.reload()
	})
	s.v.WatchConfig()
	return nil
}

// reload re-reads the settings and notifies subscribers when they differ.
func (s *Store) reload() {
	cfg, err := s.read()
	if err != nil {
		s.logger.Warn("could not reload settings", "error", err)
		return
	}

	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	s.mu.Unlock()

	if prev != cfg {
		s.notify(Change{Old: prev, New: cfg})
	}
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(c Change) {
	s.subsMu.Lock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()

	s.logger.Info("settings changed", "lang", c.New.TargetLanguage, "volume", c.New.Volume, "speed", c.New.Speed, "enabled", c.New.IsEnabled, "reset", c.NeedsReset())
	for _, fn := range subs {
		fn(c)
	}
}

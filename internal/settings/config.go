// Package settings holds the user configuration read by every pipeline stage
// and notifies subscribers when it changes.
package settings

import "github.com/dgnsrekt/subvoice/internal/langs"

// Bounds for user settings.
const (
	MinVolume = 0
	MaxVolume = 100
	MinSpeed  = 0
	MaxSpeed  = 200

	// minRate keeps a speed of 0 from stalling playback.
	minRate = 0.1
)

// Config is the user configuration.
type Config struct {
	TargetLanguage string `mapstructure:"target_language" yaml:"target_language" json:"targetLanguage"`
	Volume         int    `mapstructure:"volume"          yaml:"volume"          json:"volume"`
	Speed          int    `mapstructure:"speed"           yaml:"speed"           json:"speed"`
	IsEnabled      bool   `mapstructure:"enabled"         yaml:"enabled"         json:"isEnabled"`
}

// Defaults returns the configuration used when nothing is stored.
func Defaults() Config {
	return Config{
		TargetLanguage: "es",
		Volume:         100,
		Speed:          100,
		IsEnabled:      true,
	}
}

// Normalize clamps volume and speed into range and falls back to the default
// language when the stored one is invalid.
func (c Config) Normalize() Config {
	c.Volume = clamp(c.Volume, MinVolume, MaxVolume)
	c.Speed = clamp(c.Speed, MinSpeed, MaxSpeed)
	if langs.Valid(c.TargetLanguage) != nil {
		c.TargetLanguage = Defaults().TargetLanguage
	}
	return c
}

// VolumeLevel returns the volume as a gain between 0 and 1.
func (c Config) VolumeLevel() float64 {
	return float64(clamp(c.Volume, MinVolume, MaxVolume)) / 100
}

// PlaybackRate returns the speed as a playback rate where 1 is normal speed.
func (c Config) PlaybackRate() float64 {
	r := float64(clamp(c.Speed, MinSpeed, MaxSpeed)) / 100
	if r < minRate {
		return minRate
	}
	return r
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Change describes a settings transition.
type Change struct {
	Old Config
	New Config
}

// NeedsReset reports whether the pipeline has to drop in-flight work: the
// target language or the enabled flag changed.
func (c Change) NeedsReset() bool {
	return c.Old.TargetLanguage != c.New.TargetLanguage || c.Old.IsEnabled != c.New.IsEnabled
}

// LevelsChanged reports whether volume or speed changed.
func (c Change) LevelsChanged() bool {
	return c.Old.Volume != c.New.Volume || c.Old.Speed != c.New.Speed
}

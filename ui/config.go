package ui

import "time"

// Config contains dashboard configuration.
type Config struct {
	// Address the bridge listens on, shown in the header.
	Addr string

	// Number of activity lines kept in the feed.
	EventLimit int `env:"SUBVOICE_TUI_EVENTS" envDefault:"12"`

	// How often the status panel is refreshed.
	RefreshInterval time.Duration `env:"SUBVOICE_TUI_REFRESH" envDefault:"1s"`

	EnableMouse bool `env:"SUBVOICE_TUI_MOUSE"`

	// Fallback width used before the first WindowSizeMsg arrives.
	Width int `env:"COLUMNS" envDefault:"80"`
}

func (c Config) withDefaults() Config {
	if c.EventLimit <= 0 {
		c.EventLimit = 12
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Second
	}
	if c.Width <= 0 {
		c.Width = 80
	}
	return c
}

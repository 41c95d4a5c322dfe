package settings

import (
	"sync"
	"time"
)

const (
	// StandardName is the name of the implicit default instance.
	StandardName = "__default__"
	// BootContext marks changes made while wiring categories and loading
	// backends. Such changes are not recorded in the change log.
	BootContext = "__boot__"
)

// NamingConvention selects how Normalize rewrites key segments.
type NamingConvention int

const (
	NamingUnchanged NamingConvention = iota // keys are used as given
	NamingCamelCase                         // launch_count -> launchCount
	NamingSnakeCase                         // launchCount -> launch_count
)

func (n NamingConvention) String() string {
	switch n {
	case NamingCamelCase:
		return "camel"
	case NamingSnakeCase:
		return "snake"
	default:
		return "unchanged"
	}
}

// ParseNamingConvention parses the names returned by NamingConvention.String.
func ParseNamingConvention(s string) (NamingConvention, error) {
	switch s {
	case "camel", "camelCase":
		return NamingCamelCase, nil
	case "snake", "snake_case":
		return NamingSnakeCase, nil
	case "unchanged", "none", "":
		return NamingUnchanged, nil
	default:
		return NamingUnchanged, NewError(RetCBadInput, "unknown naming convention %q", s)
	}
}

// Config holds the process-wide constants of the settings core.
type Config struct {
	Delimiter      string           // separates category segments, default "."
	OrphanCategory string           // category for keys without one, default "_other_"
	MaxChanges     int              // change log length above which a warning is logged
	MaxNesting     int              // maximum category depth
	Naming         NamingConvention // key naming convention
	LoadStandard   bool             // whether the implicit standard instance loads backends
	StrictKeys     bool             // reject keys without category instead of prefixing the orphan category

	BootSettle      time.Duration // minimum time between last backend change and Running
	BootRetryDelay  time.Duration // delay between two readiness checks
	BootMaxAttempts int           // readiness checks before giving up
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Delimiter:       ".",
		OrphanCategory:  "_other_",
		MaxChanges:      128,
		MaxNesting:      6,
		Naming:          NamingSnakeCase,
		LoadStandard:    true,
		StrictKeys:      false,
		BootSettle:      99 * time.Millisecond,
		BootRetryDelay:  50 * time.Millisecond,
		BootMaxAttempts: 100,
	}
}

var (
	configMu sync.RWMutex
	config   = DefaultConfig()
)

// Configure replaces the process-wide configuration. Zero fields fall back to
// DefaultConfig, except the boolean switches which are taken as given.
func Configure(c Config) {
	d := DefaultConfig()
	if c.Delimiter == "" {
		c.Delimiter = d.Delimiter
	}
	if c.OrphanCategory == "" {
		c.OrphanCategory = d.OrphanCategory
	}
	if c.MaxChanges <= 0 {
		c.MaxChanges = d.MaxChanges
	}
	if c.MaxNesting <= 0 {
		c.MaxNesting = d.MaxNesting
	}
	if c.BootSettle < 0 {
		c.BootSettle = d.BootSettle
	}
	if c.BootRetryDelay <= 0 {
		c.BootRetryDelay = d.BootRetryDelay
	}
	if c.BootMaxAttempts <= 0 {
		c.BootMaxAttempts = d.BootMaxAttempts
	}

	configMu.Lock()
	config = c
	configMu.Unlock()
}

// CurrentConfig returns a copy of the process-wide configuration.
func CurrentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return config
}

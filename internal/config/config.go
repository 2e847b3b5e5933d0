package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"monthgrid/internal/grid"
	appLog "monthgrid/internal/log"
	"monthgrid/internal/model"
	"monthgrid/internal/style"
)

// Files ending in .toml are read and written as TOML; anything else is YAML.

const (
	DirectionHorizontal = "horizontal"
	DirectionVertical   = "vertical"

	defaultListen  = "127.0.0.1:8080"
	defaultRefresh = "*/15 * * * *"
	defaultMonths  = 12
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	URL  string `yaml:"url" toml:"url" json:"url"`
	ID   string `yaml:"id" toml:"id" json:"id"`
	Name string `yaml:"name" toml:"name" json:"name"`
}

// BasicAuthConfig protects the HTTP API. PasswordHash (argon2id, see the
// hash-password command) takes precedence over a plain Password.
type BasicAuthConfig struct {
	Username     string `yaml:"username" toml:"username" json:"username"`
	Password     string `yaml:"password,omitempty" toml:"password,omitempty" json:"password,omitempty"`
	PasswordHash string `yaml:"password_hash,omitempty" toml:"password_hash,omitempty" json:"password_hash,omitempty"`
}

// RangeConfig bounds the grid with YYYY-MM-DD dates. An empty Start means the
// first day of the current month; an empty End means Start plus twelve months.
type RangeConfig struct {
	Start string `yaml:"start" toml:"start" json:"start"`
	End   string `yaml:"end" toml:"end" json:"end"`
}

// HighlightConfig colors events whose title contains Keyword.
type HighlightConfig struct {
	Keyword string `yaml:"keyword" toml:"keyword" json:"keyword"`
	Color   string `yaml:"color" toml:"color" json:"color"`
}

// EventConfig is an event declared in the config file rather than fetched.
// Start and End take YYYY-MM-DD for all-day events, or a local
// "YYYY-MM-DD HH:MM" / RFC 3339 time. A date-only End is inclusive; an
// empty End means a one-hour event, or one day for all-day events.
type EventConfig struct {
	Title string `yaml:"title" toml:"title" json:"title"`
	Start string `yaml:"start" toml:"start" json:"start"`
	End   string `yaml:"end,omitempty" toml:"end,omitempty" json:"end,omitempty"`
	Color string `yaml:"color,omitempty" toml:"color,omitempty" json:"color,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the web view and API.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// Timezone places event instants on calendar days (IANA name). The grid
	// itself works on plain dates.
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone"`

	Range RangeConfig `yaml:"range" toml:"range" json:"range"`

	// MultipleSelection lets taps accumulate instead of replacing the
	// selection.
	MultipleSelection bool `yaml:"multiple_selection" toml:"multiple_selection" json:"multiple_selection"`

	// Direction is the paging axis, "horizontal" (default) or "vertical".
	Direction string `yaml:"direction" toml:"direction" json:"direction"`

	// RefreshCron is a cron schedule for reloading events.
	RefreshCron string `yaml:"refresh" toml:"refresh" json:"refresh"`

	// CacheDir holds ICS caches and the preview snapshot.
	CacheDir string `yaml:"cache_dir" toml:"cache_dir" json:"cache_dir"`

	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level"`

	Highlight []HighlightConfig `yaml:"highlight" toml:"highlight" json:"highlight"`

	Style style.Config `yaml:"style" toml:"style" json:"style"`

	ICS []ICSConfig `yaml:"ics" toml:"ics" json:"ics"`

	// Events are served alongside the ICS feeds.
	Events []EventConfig `yaml:"events" toml:"events" json:"events"`

	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            defaultListen,
		Timezone:          "UTC",
		MultipleSelection: true,
		Direction:         DirectionHorizontal,
		RefreshCron:       defaultRefresh,
		CacheDir:          "./var/monthgrid",
		LogLevel:          "info",
		Highlight:         []HighlightConfig{},
		ICS:               []ICSConfig{},
		Events:            []EventConfig{},
	}
}

// Normalize fills missing values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	switch strings.ToLower(c.Direction) {
	case DirectionHorizontal, DirectionVertical:
		c.Direction = strings.ToLower(c.Direction)
	default:
		c.Direction = DirectionHorizontal
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/monthgrid"
	}
	if _, ok := appLog.ParseLevel(c.LogLevel); !ok {
		c.LogLevel = "info"
	}
	if c.Highlight == nil {
		c.Highlight = []HighlightConfig{}
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.Events == nil {
		c.Events = []EventConfig{}
	}
}

// Validate checks everything that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := c.DateRange(time.Now()); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := style.Resolve(c.Style); err != nil {
		return err
	}
	if _, err := c.Highlights(); err != nil {
		return err
	}
	if _, err := c.StaticEvents(time.UTC, model.Color{}); err != nil {
		return err
	}
	return nil
}

// DateRange resolves Range relative to now. A start after the end yields
// grid.ErrInvertedRange.
func (c *Config) DateRange(now time.Time) (grid.Range, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if c.Range.Start != "" {
		t, err := time.Parse(time.DateOnly, c.Range.Start)
		if err != nil {
			return grid.Range{}, fmt.Errorf("config: range.start: %w", err)
		}
		start = t
	}
	end := start.AddDate(0, defaultMonths, 0)
	if c.Range.End != "" {
		t, err := time.Parse(time.DateOnly, c.Range.End)
		if err != nil {
			return grid.Range{}, fmt.Errorf("config: range.end: %w", err)
		}
		end = t
	}
	return grid.NewRange(start, end)
}

// Location loads Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Highlights parses the highlight colors.
func (c *Config) Highlights() ([]HighlightRule, error) {
	out := make([]HighlightRule, 0, len(c.Highlight))
	for _, h := range c.Highlight {
		col, err := model.ParseColor(h.Color)
		if err != nil {
			return nil, fmt.Errorf("config: highlight %q: %w", h.Keyword, err)
		}
		out = append(out, HighlightRule{Keyword: h.Keyword, Color: col})
	}
	return out, nil
}

// StaticEvents builds the configured events in loc. Events without a color
// get fallback. IDs are derived from title and start, so they stay put
// across restarts.
func (c *Config) StaticEvents(loc *time.Location, fallback model.Color) ([]*model.CalendarEvent, error) {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]*model.CalendarEvent, 0, len(c.Events))
	for i, ec := range c.Events {
		ev, err := ec.build(loc, fallback)
		if err != nil {
			return nil, fmt.Errorf("config: events[%d] %q: %w", i, ec.Title, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (ec EventConfig) build(loc *time.Location, fallback model.Color) (*model.CalendarEvent, error) {
	if strings.TrimSpace(ec.Title) == "" {
		return nil, errors.New("title is required")
	}
	start, allDay, err := parseEventTime(ec.Start, loc)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	var end time.Time
	switch {
	case ec.End == "" && allDay:
		end = start.AddDate(0, 0, 1)
	case ec.End == "":
		end = start.Add(time.Hour)
	default:
		var endAllDay bool
		end, endAllDay, err = parseEventTime(ec.End, loc)
		if err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}
		if endAllDay {
			end = end.AddDate(0, 0, 1)
		}
	}
	if end.Before(start) {
		return nil, errors.New("end is before start")
	}
	col := fallback
	if ec.Color != "" {
		if col, err = model.ParseColor(ec.Color); err != nil {
			return nil, err
		}
	}
	ev := model.NewEvent(ec.Title, start, end, col)
	ev.ID = model.StableID("config:"+ec.Title, start)
	ev.SourceID = "config"
	return ev, nil
}

var eventTimeLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04"}

func parseEventTime(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), false, nil
	}
	for _, layout := range eventTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized time %q", s)
}

// HighlightRule is a parsed HighlightConfig.
type HighlightRule struct {
	Keyword string
	Color   model.Color
}

// FeedID returns the identifier used for an ICS source: its ID, else its
// name, else its URL.
func (s ICSConfig) FeedID() string {
	switch {
	case s.ID != "":
		return s.ID
	case s.Name != "":
		return s.Name
	default:
		return s.URL
	}
}

// Load reads the configuration at path.
//
// If the file does not exist a default config is written there with 0600
// permissions and returned. Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700 if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}
	cfg.Normalize()

	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".monthgrid-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

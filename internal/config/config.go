// Package config loads and validates the tournament configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pbeckmann/matchplan/internal/availability"
	"github.com/pbeckmann/matchplan/internal/interval"
	"github.com/pbeckmann/matchplan/internal/roster"
)

// Date is a wrapper around time.Time for YAML date parsing.
type Date struct {
	Time time.Time
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	t, err := time.Parse("2006-01-02", value.Value)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", value.Value, err)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalYAML() (interface{}, error) {
	return d.Time.Format("2006-01-02"), nil
}

type Tournament struct {
	StartDate Date `yaml:"start_date"`
	EndDate   Date `yaml:"end_date"`
}

// Rules carries every recognized scheduling option. Defaults for the
// reschedule options are applied on load.
type Rules struct {
	MatchDurationMinutes     int     `yaml:"match_duration_minutes"`
	PauseDurationMinutes     int     `yaml:"pause_duration_minutes"`
	MaxTimeBudgetHoursPerDay float64 `yaml:"max_time_budget_hours_per_day"`
	SlotIntervalMinutes      int     `yaml:"slot_interval_minutes"`
	RescheduleTimeoutHours   int     `yaml:"reschedule_timeout_hours"`
	ExtensionDays            int     `yaml:"extension_days"`
}

type TeamEntry struct {
	Name         string                     `yaml:"name"`
	Members      []string                   `yaml:"members"`
	Availability *availability.Availability `yaml:"availability"`
}

type SoloEntry struct {
	Player       string                     `yaml:"player"`
	Availability *availability.Availability `yaml:"availability"`
}

type Config struct {
	Tournament    Tournament        `yaml:"tournament"`
	ActiveWindows map[string]string `yaml:"active_windows"`
	Rules         Rules             `yaml:"rules"`
	Teams         []TeamEntry       `yaml:"teams"`
	Solo          []SoloEntry       `yaml:"solo"`

	windows map[time.Weekday]interval.Interval
}

// LoadFromBytes parses YAML bytes into a Config, applies defaults and
// validates it.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Rules.RescheduleTimeoutHours == 0 {
		cfg.Rules.RescheduleTimeoutHours = 24
	}
	if cfg.Rules.ExtensionDays == 0 {
		cfg.Rules.ExtensionDays = 2
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile reads and parses a YAML config file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

// Windows returns the parsed active windows by weekday.
func (c *Config) Windows() map[time.Weekday]interval.Interval {
	return c.windows
}

// RosterTeams converts the configured team entries.
func (c *Config) RosterTeams() []*roster.Team {
	teams := make([]*roster.Team, len(c.Teams))
	for i, e := range c.Teams {
		teams[i] = &roster.Team{Name: e.Name, Members: e.Members, Availability: e.Availability}
	}
	return teams
}

// RosterSolo converts the configured solo entries.
func (c *Config) RosterSolo() []roster.Solo {
	solo := make([]roster.Solo, len(c.Solo))
	for i, e := range c.Solo {
		solo[i] = roster.Solo{Player: e.Player, Availability: e.Availability}
	}
	return solo
}

// ActiveDays returns the weekdays that carry an active window, in
// Monday-first order.
func (c *Config) ActiveDays() []time.Weekday {
	order := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	var days []time.Weekday
	for _, d := range order {
		if _, ok := c.windows[d]; ok {
			days = append(days, d)
		}
	}
	return days
}

func (c *Config) validate() error {
	if c.Tournament.EndDate.Time.Before(c.Tournament.StartDate.Time) {
		return fmt.Errorf("end date %s must not be before start date %s",
			c.Tournament.EndDate.Time.Format("2006-01-02"),
			c.Tournament.StartDate.Time.Format("2006-01-02"))
	}

	r := c.Rules
	if r.MatchDurationMinutes <= 0 {
		return fmt.Errorf("match_duration_minutes must be positive, got %d", r.MatchDurationMinutes)
	}
	if r.PauseDurationMinutes < 0 {
		return fmt.Errorf("pause_duration_minutes must not be negative, got %d", r.PauseDurationMinutes)
	}
	if r.MaxTimeBudgetHoursPerDay <= 0 {
		return fmt.Errorf("max_time_budget_hours_per_day must be positive, got %g", r.MaxTimeBudgetHoursPerDay)
	}
	if r.SlotIntervalMinutes <= 0 {
		return fmt.Errorf("slot_interval_minutes must be positive, got %d", r.SlotIntervalMinutes)
	}
	if r.RescheduleTimeoutHours <= 0 {
		return fmt.Errorf("reschedule_timeout_hours must be positive, got %d", r.RescheduleTimeoutHours)
	}
	if r.ExtensionDays <= 0 {
		return fmt.Errorf("extension_days must be positive, got %d", r.ExtensionDays)
	}

	if len(c.ActiveWindows) == 0 {
		return fmt.Errorf("at least one active window is required")
	}
	c.windows = make(map[time.Weekday]interval.Interval, len(c.ActiveWindows))
	for name, spec := range c.ActiveWindows {
		day, err := availability.ParseDay(name)
		if err != nil {
			return fmt.Errorf("active window: %w", err)
		}
		iv, err := interval.Parse(spec)
		if err != nil {
			return fmt.Errorf("active window %s: %w", name, err)
		}
		if iv.Minutes()%r.SlotIntervalMinutes != 0 {
			return fmt.Errorf("active window %s (%s) is not divisible by slot_interval_minutes=%d",
				name, spec, r.SlotIntervalMinutes)
		}
		c.windows[day] = iv
	}

	if err := roster.Validate(c.RosterTeams()); err != nil {
		return err
	}
	for _, e := range c.Teams {
		if e.Availability == nil {
			return fmt.Errorf("team %q has no availability", e.Name)
		}
	}
	for _, e := range c.Solo {
		if e.Player == "" {
			return fmt.Errorf("solo entry with empty player name")
		}
		if e.Availability == nil {
			return fmt.Errorf("solo player %q has no availability", e.Player)
		}
	}

	return nil
}

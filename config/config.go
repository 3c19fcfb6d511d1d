// Package config holds the suite's settings: target application, credentials,
// browser, timeouts, infrastructure endpoints and the option vocabularies.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"tbreport/logger"
	"tbreport/poll"
	"tbreport/retry"
	"tbreport/selector"
)

var (
	// ErrUnsupportedLanguage is returned for language codes outside ru, en and ro.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrInvalidConfig wraps every other validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)

// SupportedLanguages are the interface languages of the application.
var SupportedLanguages = []string{"ru", "en", "ro"}

// Browser drivers.
const (
	DriverPlaywright = "playwright"
	DriverRod        = "rod"
)

// Config is the root configuration.
type Config struct {
	BaseURL      string                     `yaml:"base_url" env:"BASE_URL"`
	Email        string                     `yaml:"email" env:"EMAIL"`
	Password     string                     `yaml:"password" env:"PASSWORD"`
	Language     string                     `yaml:"language" env:"LANGUAGE"`
	Seed         uint64                     `yaml:"seed" env:"SEED"`
	Browser      BrowserConfig              `yaml:"browser"`
	Timeouts     Timeouts                   `yaml:"timeouts"`
	Poll         PollConfig                 `yaml:"poll"`
	Retry        retry.Config               `yaml:"retry"`
	Interactions []string                   `yaml:"interactions" env:"INTERACTIONS"`
	Logging      logger.Config              `yaml:"logging"`
	Redis        RedisConfig                `yaml:"redis"`
	NATS         NATSConfig                 `yaml:"nats"`
	Server       ServerConfig               `yaml:"server"`
	UI           UIText                     `yaml:"ui"`
	Vocabulary   Vocabulary                 `yaml:"vocabulary"`
	Fields       []selector.FieldDescriptor `yaml:"fields"`
}

// BrowserConfig selects and tunes the driver.
type BrowserConfig struct {
	Driver            string        `yaml:"driver" env:"BROWSER_DRIVER"`
	Headless          bool          `yaml:"headless" env:"HEADLESS"`
	SlowMo            time.Duration `yaml:"slow_mo" env:"SLOW_MO"`
	ActionTimeout     time.Duration `yaml:"action_timeout"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	TypeDelay         time.Duration `yaml:"type_delay"`
	ScreenshotDir     string        `yaml:"screenshot_dir" env:"SCREENSHOT_DIR"`
	Width             int           `yaml:"width"`
	Height            int           `yaml:"height"`

	// ControlURL attaches the rod driver to a running browser instead of launching one.
	ControlURL string `yaml:"control_url" env:"BROWSER_CONTROL_URL"`
}

// Timeouts are the named waits used by page flows.
type Timeouts struct {
	Short      time.Duration `yaml:"short"`
	Medium     time.Duration `yaml:"medium"`
	Long       time.Duration `yaml:"long"`
	Navigation time.Duration `yaml:"navigation"`
}

// PollConfig bounds the selector's waits.
type PollConfig struct {
	Resolve   poll.Options `yaml:"resolve"`
	Stability poll.Options `yaml:"stability"`
	Close     poll.Options `yaml:"close"`
}

// RedisConfig points at the run store. An empty Addr disables it.
type RedisConfig struct {
	Addr      string        `yaml:"addr" env:"REDIS_ADDR"`
	Password  string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB        int           `yaml:"db" env:"REDIS_DB"`
	Prefix    string        `yaml:"prefix"`
	TTL       time.Duration `yaml:"ttl"`
	MaxRecent int           `yaml:"max_recent"`
}

// NATSConfig points at the event bus. An empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url" env:"NATS_URL"`
	Subject string `yaml:"subject" env:"NATS_SUBJECT"`
}

// ServerConfig configures the runner service.
type ServerConfig struct {
	Addr      string `yaml:"addr" env:"RUNNER_ADDR"`
	QueueSize int    `yaml:"queue_size"`

	// Schedule is a six-field cron spec (with seconds); empty disables scheduled runs.
	Schedule string `yaml:"schedule" env:"RUNNER_SCHEDULE"`
}

// UIText holds the visible texts flows click on.
type UIText struct {
	BarriersMenu       string `yaml:"barriers_menu"`
	AnonymousReporting string `yaml:"anonymous_reporting"`
	AddButton          string `yaml:"add_button"`
	ReportPanel        string `yaml:"report_panel"`
	Demographic        string `yaml:"demographic"`
	RightsButton       string `yaml:"rights_button"`
	DetailsField       string `yaml:"details_field"`
	SaveButton         string `yaml:"save_button"`
}

// Barrier is one TB barrier and its sub-options.
type Barrier struct {
	Name    string   `yaml:"name" json:"name"`
	Options []string `yaml:"options" json:"options"`
}

// Vocabulary lists the values each form dropdown offers.
type Vocabulary struct {
	AgeGroups     []string  `yaml:"age_groups"`
	Genders       []string  `yaml:"genders"`
	Identities    []string  `yaml:"identities"`
	StudiesLevels []string  `yaml:"studies_levels"`
	Locations     []string  `yaml:"locations"`
	LocationTypes []string  `yaml:"location_types"`
	UserTypes     []string  `yaml:"user_types"`
	Barriers      []Barrier `yaml:"barriers"`
}

// Criteria maps report filter keys to the vocabulary their values come from.
func (v Vocabulary) Criteria() map[string][]string {
	return map[string][]string{
		"typeOfUser":    v.UserTypes,
		"keyPopulation": v.Identities,
		"age":           v.AgeGroups,
	}
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail performs the loose shape check the login form expects.
func IsValidEmail(s string) bool { return emailRe.MatchString(s) }

// CheckLanguage returns ErrUnsupportedLanguage for codes the application does not offer.
func CheckLanguage(code string) error {
	if !slices.Contains(SupportedLanguages, code) {
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedLanguage, code, strings.Join(SupportedLanguages, ", "))
	}
	return nil
}

// Validate checks what a scenario run needs. Credentials are only required when
// requireCredentials is set; offline commands skip them.
func (c *Config) Validate(requireCredentials bool) error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	}
	if err := CheckLanguage(c.Language); err != nil {
		return err
	}
	if requireCredentials {
		switch {
		case c.Email == "":
			errs = append(errs, errors.New("EMAIL is required"))
		case !IsValidEmail(c.Email):
			errs = append(errs, fmt.Errorf("EMAIL %q is not a valid address", c.Email))
		}
		if c.Password == "" {
			errs = append(errs, errors.New("PASSWORD is required"))
		}
	}
	switch c.Browser.Driver {
	case DriverPlaywright, DriverRod:
	default:
		errs = append(errs, fmt.Errorf("browser.driver %q must be %s or %s", c.Browser.Driver, DriverPlaywright, DriverRod))
	}
	if _, err := selector.InteractionsByName(c.Interactions); err != nil {
		errs = append(errs, err)
	}
	for _, f := range c.Fields {
		if err := f.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// SelectorOptions builds the selector settings from the poll and interaction config.
func (c *Config) SelectorOptions() (selector.Options, error) {
	in, err := selector.InteractionsByName(c.Interactions)
	if err != nil {
		return selector.Options{}, err
	}
	opts := selector.DefaultOptions()
	opts.Resolve = c.Poll.Resolve
	opts.Stability = c.Poll.Stability
	opts.Close = c.Poll.Close
	opts.Interactions = in
	return opts, nil
}

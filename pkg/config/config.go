package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/anthonyagughasi/haircut-website/pkg/utils/errs"
)

type Config struct {
	PostgreAddr string         `yaml:"postgre_addr"`
	HTTPPort    int            `yaml:"http_port" validate:"required,min=1,max=65535"`
	APIBaseURL  string         `yaml:"api_base_url" validate:"required,url"`
	Timezone    string         `yaml:"timezone" validate:"required"`
	Origins     []string       `yaml:"cors_origins" validate:"dive,url"`
	Booking     BookingConfig  `yaml:"booking"`
	Schedule    ScheduleConfig `yaml:"schedule"`

	// Secrets, loaded from the environment.
	BotToken  string `yaml:"-"`
	ChannelID string `yaml:"-"`
	Notify    NotifyConfig `yaml:"-"`
}

type BookingConfig struct {
	RequireEmail   bool          `yaml:"require_email"`
	FetchFallback  bool          `yaml:"fetch_fallback"`
	SubmitTimeout  time.Duration `yaml:"submit_timeout" validate:"required,min=1s"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"required,min=100ms"`
}

type ScheduleConfig struct {
	Open        string `yaml:"open" validate:"required,datetime=15:04"`
	Close       string `yaml:"close" validate:"required,datetime=15:04"`
	SlotMinutes int    `yaml:"slot_minutes" validate:"required,min=5,max=240"`
}

type NotifyConfig struct {
	SendGridKey       string
	SendGridFrom      string
	NotificationEmail string
	TwilioSID         string
	TwilioToken       string
	TwilioFrom        string
}

func defaults() Config {
	return Config{
		HTTPPort:   8080,
		APIBaseURL: "http://localhost:8080/v1",
		Timezone:   "America/New_York",
		Booking: BookingConfig{
			RequireEmail:   true,
			FetchFallback:  true,
			SubmitTimeout:  15 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Schedule: ScheduleConfig{
			Open:        "09:00",
			Close:       "18:00",
			SlotMinutes: 30,
		},
	}
}

// Load reads the YAML file at path over the defaults, validates it and fills
// secrets from the environment (and a .env file when one exists).
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New("failed to read config file").Arg("path", path).Wrap(err)
	}
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.New("failed to unmarshal YAML").Arg("path", path).Wrap(err)
	}

	if err = validator.New().Struct(cfg); err != nil {
		return nil, errs.New("config validation failed").Kind(errs.KindValidation).Wrap(err)
	}
	if _, err = cfg.Location(); err != nil {
		return nil, errs.New("config validation failed").Kind(errs.KindValidation).Arg("timezone", cfg.Timezone).Wrap(err)
	}
	if opens, closes := cfg.OpenClose(); closes <= opens {
		return nil, errs.New("config validation failed: schedule closes before it opens").Kind(errs.KindValidation)
	}

	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errs.New("failed to load .env").Wrap(err)
	}

	cfg.BotToken = os.Getenv("TG_TOKEN")
	cfg.ChannelID = os.Getenv("TG_CHANNEL_ID")
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.PostgreAddr = dsn
	}
	cfg.Notify = NotifyConfig{
		SendGridKey:       os.Getenv("SENDGRID_API_KEY"),
		SendGridFrom:      os.Getenv("SENDGRID_FROM_EMAIL"),
		NotificationEmail: os.Getenv("NOTIFICATION_EMAIL"),
		TwilioSID:         os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:       os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:        os.Getenv("TWILIO_FROM_NUMBER"),
	}

	return &cfg, nil
}

// Location resolves the shop's timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// OpenClose returns the schedule bounds as offsets from midnight.
func (c *Config) OpenClose() (time.Duration, time.Duration) {
	return clockOffset(c.Schedule.Open), clockOffset(c.Schedule.Close)
}

func clockOffset(hhmm string) time.Duration {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}

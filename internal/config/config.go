package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database struct {
		Host            string `yaml:"host" env:"POSTGRES_HOST" validate:"required"`
		Port            int    `yaml:"port"`
		Name            string `yaml:"name" env:"POSTGRES_DB" validate:"required"`
		User            string `yaml:"user" env:"POSTGRES_USER" validate:"required"`
		Password        string `yaml:"password" env:"POSTGRES_PASSWORD" validate:"required"`
		SSLMode         string `yaml:"sslmode"`
		SubscriberQuery string `yaml:"subscriber_query" env:"SUBSCRIBER_QUERY" validate:"required"`
	} `yaml:"database"`
	LLM struct {
		APIKey  string `yaml:"api_key" env:"PERPLEXITY_API_KEY" validate:"required"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
		Theme   string `yaml:"theme"`
	} `yaml:"llm"`
	SMTP struct {
		Host     string `yaml:"host" env:"SMTP_SERVER" validate:"required"`
		Port     int    `yaml:"port" env:"SMTP_PORT" validate:"required"`
		Username string `yaml:"username" env:"SMTP_USERNAME" validate:"required"`
		Password string `yaml:"password" env:"SMTP_PASSWORD" validate:"required"`
		Sender   string `yaml:"sender" env:"SENDER_EMAIL" validate:"required"`
	} `yaml:"smtp"`
	Fund struct {
		ConfigFile string `yaml:"config_file"`
		StateFile  string `yaml:"state_file"`
	} `yaml:"fund"`
	Analyzer struct {
		Command []string `yaml:"command"`
		WorkDir string   `yaml:"work_dir"`
	} `yaml:"analyzer"`
	Schedule struct {
		WeeklyCron   string        `yaml:"weekly_cron"`
		Timezone     string        `yaml:"timezone"`
		MisfireGrace time.Duration `yaml:"misfire_grace"`
	} `yaml:"schedule"`
	Distribution struct {
		SendInterval  time.Duration `yaml:"send_interval"`
		TestRecipient string        `yaml:"test_recipient"`
	} `yaml:"distribution"`
	Report struct {
		OutputFile   string `yaml:"output_file"`
		TemplateDir  string `yaml:"template_dir"`
		LogoURL      string `yaml:"logo_url"`
		ContactEmail string `yaml:"contact_email"`
		Precision    int32  `yaml:"precision"`
	} `yaml:"report"`
	Recorder struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"recorder"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
}

// ConfigurationError lists every required setting that is missing.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

// Load reads config from a YAML file, then the .env file, then applies
// environment variable overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env never overrides variables already present in the environment.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Host, "POSTGRES_HOST")
	setString(&c.Database.Name, "POSTGRES_DB")
	setString(&c.Database.User, "POSTGRES_USER")
	setString(&c.Database.Password, "POSTGRES_PASSWORD")
	setString(&c.Database.SSLMode, "POSTGRES_SSLMODE")
	setString(&c.Database.SubscriberQuery, "SUBSCRIBER_QUERY")
	setString(&c.LLM.APIKey, "PERPLEXITY_API_KEY")
	setString(&c.LLM.BaseURL, "PERPLEXITY_BASE_URL")
	setString(&c.LLM.Model, "PERPLEXITY_MODEL")
	setString(&c.SMTP.Host, "SMTP_SERVER")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.Sender, "SENDER_EMAIL")
	setString(&c.Fund.ConfigFile, "FUND_CONFIG_FILE")
	setString(&c.Fund.StateFile, "FUND_STATE_FILE")
	setString(&c.Schedule.WeeklyCron, "CRON_WEEKLY")
	setString(&c.Schedule.Timezone, "SCHEDULE_TIMEZONE")
	setString(&c.Distribution.TestRecipient, "TEST_RECIPIENT")
	setString(&c.Report.OutputFile, "REPORT_OUTPUT_FILE")
	setString(&c.Recorder.SQLitePath, "SQLITE_PATH")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse POSTGRES_PORT: %w", err)
		}
		c.Database.Port = port
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SMTP_PORT: %w", err)
		}
		c.SMTP.Port = port
	}
	if v := os.Getenv("ANALYZER_COMMAND"); v != "" {
		c.Analyzer.Command = strings.Fields(v)
	}
	if v := os.Getenv("SEND_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse SEND_INTERVAL: %w", err)
		}
		c.Distribution.SendInterval = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "prefer"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.perplexity.ai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "sonar-pro"
	}
	if c.LLM.Theme == "" {
		c.LLM.Theme = "American reindustrialization"
	}
	if c.Fund.ConfigFile == "" {
		c.Fund.ConfigFile = "fund.json"
	}
	if c.Fund.StateFile == "" {
		c.Fund.StateFile = "fund_state.json"
	}
	if len(c.Analyzer.Command) == 0 {
		c.Analyzer.Command = []string{"poetry", "run", "python", "src/main.py", "--ticker", "{ticker}", "--show-reasoning"}
	}
	if c.Schedule.WeeklyCron == "" {
		c.Schedule.WeeklyCron = "0 0 6 * * 1"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "America/Chicago"
	}
	if c.Schedule.MisfireGrace == 0 {
		c.Schedule.MisfireGrace = time.Hour
	}
	if c.Distribution.SendInterval == 0 {
		c.Distribution.SendInterval = time.Second
	}
	if c.Distribution.TestRecipient == "" {
		c.Distribution.TestRecipient = c.SMTP.Sender
	}
	if c.Report.OutputFile == "" {
		c.Report.OutputFile = "public/fund_report.html"
	}
	if c.Report.ContactEmail == "" {
		c.Report.ContactEmail = c.SMTP.Sender
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

var validate = newValidator()

// newValidator reports fields by their environment key.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("env")
	})
	return v
}

// Validate checks that all required fields are set. The returned
// *ConfigurationError names every missing setting by its environment key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return c.checkRanges()
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	sort.Strings(missing)
	return &ConfigurationError{Missing: missing}
}

func (c *Config) checkRanges() error {
	if c.Report.Precision < 0 || c.Report.Precision > 1 {
		return fmt.Errorf("report.precision must be 0 or 1")
	}
	if c.Schedule.MisfireGrace < 0 {
		return fmt.Errorf("schedule.misfire_grace must not be negative")
	}
	return nil
}

// Location resolves the schedule timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}

// DSN returns the Postgres connection string for the subscriber database.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.Name,
		c.Database.User, quoteDSN(c.Database.Password), c.Database.SSLMode)
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

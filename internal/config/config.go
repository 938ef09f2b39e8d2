// Package config loads the assistant's settings from defaults, an optional
// YAML file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/smartgov/exgratia/internal/util"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the YAML config file.
const ConfigPathEnv = "EXGRATIA_CONFIG"

const (
	DefaultDataDir           = "data"
	DefaultStateDir          = "/var/lib/exgratia"
	DefaultStatusFile        = "status.csv"
	DefaultSubmissionFile    = "submission.csv"
	DefaultRemoteURL         = "http://localhost:8000/generate"
	DefaultSupportPhone      = "+91-1234567890"
	DefaultClassifierTimeout = 10 * time.Second
	DefaultDedupRetention    = 7 * 24 * time.Hour
	DefaultPruneSchedule     = "@daily"
)

// Transports.
const (
	TransportTelegram = "telegram"
	TransportWhatsApp = "whatsapp"
	TransportTwilio   = "twilio"
	// TransportNone runs only the HTTP API.
	TransportNone = "none"
)

// Classifier modes.
const (
	ClassifierRules  = "rules"
	ClassifierRemote = "remote"
	ClassifierOpenAI = "openai"
)

var (
	ErrUnknownTransport  = errors.New("unknown transport")
	ErrUnknownClassifier = errors.New("unknown classifier mode")
	ErrMissingCredential = errors.New("missing credential")
)

// Config holds every setting of the assistant.
type Config struct {
	Transport        string            `yaml:"transport"`
	SupportPhone     string            `yaml:"supportPhone"`
	Debug            bool              `yaml:"debug"`
	DataDir          string            `yaml:"dataDir"`
	StateDir         string            `yaml:"stateDir"`
	MaxConversations int               `yaml:"maxConversations"`
	Telegram         TelegramConfig    `yaml:"telegram"`
	WhatsApp         WhatsAppConfig    `yaml:"whatsapp"`
	Twilio           TwilioConfig      `yaml:"twilio"`
	Classifier       ClassifierConfig  `yaml:"classifier"`
	Status           StatusConfig      `yaml:"status"`
	Content          ContentConfig     `yaml:"content"`
	State            StateConfig       `yaml:"state"`
	API              APIConfig         `yaml:"api"`
	Maintenance      MaintenanceConfig `yaml:"maintenance"`
}

// TelegramConfig configures the Bot API transport.
type TelegramConfig struct {
	Token       string        `yaml:"token"`
	PollTimeout time.Duration `yaml:"pollTimeout"`
}

// WhatsAppConfig configures the whatsmeow transport.
type WhatsAppConfig struct {
	DBDSN       string `yaml:"dbDsn"`
	QRPath      string `yaml:"qrPath"`
	NumericCode bool   `yaml:"numericCode"`
}

// TwilioConfig configures the Twilio WhatsApp transport.
type TwilioConfig struct {
	AccountSID string `yaml:"accountSid"`
	AuthToken  string `yaml:"authToken"`
	From       string `yaml:"from"`
	// WebhookURL is the public URL Twilio calls; setting it enables signature checks.
	WebhookURL string `yaml:"webhookUrl"`
}

// ClassifierConfig selects and configures the intent classifier.
type ClassifierConfig struct {
	Mode        string        `yaml:"mode"`
	RemoteURL   string        `yaml:"remoteUrl"`
	OpenAIKey   string        `yaml:"openaiKey"`
	OpenAIModel string        `yaml:"openaiModel"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StatusConfig selects the status record source.
type StatusConfig struct {
	CSVPath string `yaml:"csvPath"`
	// Cache keeps CSV rows in memory until the file changes.
	Cache bool `yaml:"cache"`
	// DSN switches lookups to the application_status table.
	DSN string `yaml:"dsn"`
	// ImportCSV loads CSVPath into the table at startup.
	ImportCSV bool `yaml:"importCsv"`
}

// ContentConfig locates the norms and procedure texts.
type ContentConfig struct {
	Dir   string            `yaml:"dir"`
	Files map[string]string `yaml:"files"`
}

// StateConfig selects the conversation state store; empty DSN keeps state in memory.
type StateConfig struct {
	DSN string `yaml:"dsn"`
}

// APIConfig configures the admin HTTP API; an empty Addr disables it.
type APIConfig struct {
	Addr           string `yaml:"addr"`
	SubmissionPath string `yaml:"submissionPath"`
}

// MaintenanceConfig schedules background jobs. Schedules use cron syntax.
type MaintenanceConfig struct {
	DedupRetention time.Duration `yaml:"dedupRetention"`
	PruneSchedule  string        `yaml:"pruneSchedule"`
	// ImportSchedule re-imports the status CSV into STATUS_DSN; empty disables it.
	ImportSchedule string `yaml:"importSchedule"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Transport:    TransportTelegram,
		SupportPhone: DefaultSupportPhone,
		DataDir:      DefaultDataDir,
		StateDir:     DefaultStateDir,
		Classifier: ClassifierConfig{
			Mode:      ClassifierRules,
			RemoteURL: DefaultRemoteURL,
			Timeout:   DefaultClassifierTimeout,
		},
		Maintenance: MaintenanceConfig{
			DedupRetention: DefaultDedupRetention,
			PruneSchedule:  DefaultPruneSchedule,
		},
	}
}

// Load reads .env (if present), the YAML file named by EXGRATIA_CONFIG (if
// set) and environment overrides, then fills derived paths.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("config: no .env file loaded", "error", err)
	}

	cfg := Default()
	if path := os.Getenv(ConfigPathEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnvOverrides()
	cfg.fillDerived()
	return cfg, nil
}

// loadFile merges the YAML file at path over cfg. Keys absent from the file keep their values.
func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	slog.Debug("config: file loaded", "path", path)
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Transport, "BOT_TRANSPORT")
	setString(&c.SupportPhone, "SUPPORT_PHONE")
	setString(&c.DataDir, "EXGRATIA_DATA_DIR")
	setString(&c.StateDir, "EXGRATIA_STATE_DIR")
	c.Debug = util.ParseBoolEnv("DEBUG", c.Debug)
	c.MaxConversations = util.ParseIntEnv("MAX_CONVERSATIONS", c.MaxConversations)

	setString(&c.Telegram.Token, "TELEGRAM_TOKEN")
	c.Telegram.PollTimeout = util.ParseDurationEnv("TELEGRAM_POLL_TIMEOUT", c.Telegram.PollTimeout)

	setString(&c.WhatsApp.DBDSN, "WHATSAPP_DB_DSN")
	setString(&c.WhatsApp.QRPath, "WHATSAPP_QR_PATH")
	c.WhatsApp.NumericCode = util.ParseBoolEnv("WHATSAPP_NUMERIC_CODE", c.WhatsApp.NumericCode)

	setString(&c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&c.Twilio.From, "TWILIO_FROM_NUMBER")
	setString(&c.Twilio.WebhookURL, "TWILIO_WEBHOOK_URL")

	setString(&c.Classifier.Mode, "CLASSIFIER_MODE")
	setString(&c.Classifier.RemoteURL, "MISTRAL_API_URL")
	setString(&c.Classifier.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.Classifier.OpenAIModel, "OPENAI_MODEL")
	c.Classifier.Timeout = util.ParseDurationEnv("CLASSIFIER_TIMEOUT", c.Classifier.Timeout)

	setString(&c.Status.CSVPath, "STATUS_CSV_FILE")
	setString(&c.Status.DSN, "STATUS_DSN")
	c.Status.Cache = util.ParseBoolEnv("STATUS_CACHE", c.Status.Cache)
	c.Status.ImportCSV = util.ParseBoolEnv("STATUS_IMPORT_CSV", c.Status.ImportCSV)

	setString(&c.Content.Dir, "CONTENT_DIR")
	setString(&c.State.DSN, "STATE_DSN")
	setString(&c.API.Addr, "API_ADDR")
	setString(&c.API.SubmissionPath, "SUBMISSION_CSV_FILE")

	c.Maintenance.DedupRetention = util.ParseDurationEnv("DEDUP_RETENTION", c.Maintenance.DedupRetention)
	setString(&c.Maintenance.PruneSchedule, "DEDUP_PRUNE_SCHEDULE")
	setString(&c.Maintenance.ImportSchedule, "STATUS_IMPORT_SCHEDULE")
}

// fillDerived places unset file paths under DataDir.
func (c *Config) fillDerived() {
	c.Transport = strings.ToLower(c.Transport)
	c.Classifier.Mode = strings.ToLower(c.Classifier.Mode)
	if c.Status.CSVPath == "" {
		c.Status.CSVPath = filepath.Join(c.DataDir, DefaultStatusFile)
	}
	if c.Content.Dir == "" {
		c.Content.Dir = c.DataDir
	}
	if c.API.SubmissionPath == "" {
		c.API.SubmissionPath = filepath.Join(c.DataDir, DefaultSubmissionFile)
	}
	if c.Classifier.Timeout <= 0 {
		c.Classifier.Timeout = DefaultClassifierTimeout
	}
}

// Validate checks that the selected transport and classifier have what they need.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportTelegram:
		if c.Telegram.Token == "" {
			errs = append(errs, fmt.Errorf("%w: TELEGRAM_TOKEN is required for the telegram transport", ErrMissingCredential))
		}
	case TransportTwilio:
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" || c.Twilio.From == "" {
			errs = append(errs, fmt.Errorf("%w: TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER are required for the twilio transport", ErrMissingCredential))
		}
		if c.API.Addr == "" {
			errs = append(errs, errors.New("twilio transport requires API_ADDR to receive webhooks"))
		}
	case TransportWhatsApp, TransportNone:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownTransport, c.Transport))
	}

	switch c.Classifier.Mode {
	case ClassifierRules:
	case ClassifierRemote:
		if c.Classifier.RemoteURL == "" {
			errs = append(errs, fmt.Errorf("%w: MISTRAL_API_URL is required for the remote classifier", ErrMissingCredential))
		}
	case ClassifierOpenAI:
		if c.Classifier.OpenAIKey == "" {
			errs = append(errs, fmt.Errorf("%w: OPENAI_API_KEY is required for the openai classifier", ErrMissingCredential))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownClassifier, c.Classifier.Mode))
	}

	if c.Transport == TransportNone && c.API.Addr == "" {
		errs = append(errs, errors.New("transport none requires API_ADDR"))
	}
	if c.Status.ImportCSV && c.Status.DSN == "" {
		errs = append(errs, errors.New("STATUS_IMPORT_CSV requires STATUS_DSN"))
	}
	if c.Maintenance.ImportSchedule != "" && c.Status.DSN == "" {
		errs = append(errs, errors.New("STATUS_IMPORT_SCHEDULE requires STATUS_DSN"))
	}
	return errors.Join(errs...)
}

// LogValue hides secrets when the config is logged.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("transport", c.Transport),
		slog.String("classifier", c.Classifier.Mode),
		slog.Bool("debug", c.Debug),
		slog.String("data_dir", c.DataDir),
		slog.String("state_dir", c.StateDir),
		slog.String("status_csv", c.Status.CSVPath),
		slog.Bool("status_cache", c.Status.Cache),
		slog.Bool("status_dsn_set", c.Status.DSN != ""),
		slog.Bool("state_dsn_set", c.State.DSN != ""),
		slog.String("api_addr", c.API.Addr),
		slog.Bool("telegram_token_set", c.Telegram.Token != ""),
		slog.Bool("openai_key_set", c.Classifier.OpenAIKey != ""),
	)
}

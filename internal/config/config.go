package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// EnvPrefix prefixes every environment override, e.g. ORCH_DATABASE_PASSWORD
	EnvPrefix = "ORCH"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	RabbitMQ      RabbitMQConfig      `yaml:"rabbitmq"`
	Logging       LoggingConfig       `yaml:"logging"`
	App           AppConfig           `yaml:"app"`
	Worker        WorkerConfig        `yaml:"worker"`
	CORS          CORSConfig          `yaml:"cors"`
	Distribution  DistributionConfig  `yaml:"distribution"`
	PeakHours     PeakHoursConfig     `yaml:"peak_hours"`
	Collaborators CollaboratorsConfig `yaml:"collaborators"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode" envconfig:"SSLMODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `yaml:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" split_words:"true"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" split_words:"true"`
	// Migrate applies embedded migrations at startup
	Migrate bool `yaml:"migrate"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	User     string         `yaml:"user"`
	Password string         `yaml:"password"`
	VHost    string         `yaml:"vhost"`
	Exchange ExchangeConfig `yaml:"exchange"`
	// Queue receives job.queued events for workers
	Queue QueueConfig `yaml:"queue"`
	// EventQueue is the per-process queue relaying bus events between services
	EventQueue QueueConfig      `yaml:"event_queue" split_words:"true"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete" split_words:"true"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name        string   `yaml:"name"`
	Durable     bool     `yaml:"durable"`
	AutoDelete  bool     `yaml:"auto_delete" split_words:"true"`
	Exclusive   bool     `yaml:"exclusive"`
	BindingKeys []string `yaml:"binding_keys" split_words:"true"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts" split_words:"true"`
	RetryInterval     time.Duration `yaml:"retry_interval" split_words:"true"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" split_words:"true"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts" split_words:"true"`
	RetryInterval     time.Duration `yaml:"retry_interval" split_words:"true"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" split_words:"true"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count" split_words:"true"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller" split_words:"true"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	ID              string        `yaml:"id"`
	Concurrency     int           `yaml:"concurrency"`
	JobTimeout      time.Duration `yaml:"job_timeout" split_words:"true"`
	PollInterval    time.Duration `yaml:"poll_interval" split_words:"true"`
	PostingInterval time.Duration `yaml:"posting_interval" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	// KindTimeouts bounds one attempt per job kind; missing kinds use JobTimeout
	KindTimeouts   map[string]time.Duration `yaml:"kind_timeouts" split_words:"true"`
	NotifyAttempts int                      `yaml:"notify_attempts" split_words:"true"`
	Posting        PostingConfig            `yaml:"posting"`
}

// PostingConfig tunes the scheduled post driver
type PostingConfig struct {
	BatchSize   int           `yaml:"batch_size" split_words:"true"`
	Concurrency int           `yaml:"concurrency"`
	PostTimeout time.Duration `yaml:"post_timeout" split_words:"true"`
	ClaimTTL    time.Duration `yaml:"claim_ttl" split_words:"true"`
}

// CORSConfig holds cross-origin rules of the API
type CORSConfig struct {
	AllowOrigins     []string      `yaml:"allow_origins" split_words:"true"`
	AllowMethods     []string      `yaml:"allow_methods" split_words:"true"`
	AllowHeaders     []string      `yaml:"allow_headers" split_words:"true"`
	ExposeHeaders    []string      `yaml:"expose_headers" split_words:"true"`
	AllowCredentials bool          `yaml:"allow_credentials" split_words:"true"`
	MaxAge           time.Duration `yaml:"max_age" split_words:"true"`
}

// DistributionConfig holds scheduler settings
type DistributionConfig struct {
	Spacing time.Duration `yaml:"spacing"`
}

// PeakHoursConfig holds analyzer cache settings
type PeakHoursConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	FallbackTTL  time.Duration `yaml:"fallback_ttl" split_words:"true"`
	QueryTimeout time.Duration `yaml:"query_timeout" split_words:"true"`
}

// CollaboratorConfig locates one external service
type CollaboratorConfig struct {
	BaseURL string        `yaml:"base_url" split_words:"true"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether the collaborator is configured
func (c CollaboratorConfig) Enabled() bool {
	return c.BaseURL != ""
}

// SyncConfig holds localization drift thresholds
type SyncConfig struct {
	DubTolerance      time.Duration `yaml:"dub_tolerance" split_words:"true"`
	SubtitleTolerance time.Duration `yaml:"subtitle_tolerance" split_words:"true"`
}

// CollaboratorsConfig holds every external service the core calls
type CollaboratorsConfig struct {
	Generation    CollaboratorConfig `yaml:"generation"`
	Localization  CollaboratorConfig `yaml:"localization"`
	Ledger        CollaboratorConfig `yaml:"ledger"`
	Engagement    CollaboratorConfig `yaml:"engagement"`
	Posting       CollaboratorConfig `yaml:"posting"`
	Notifications CollaboratorConfig `yaml:"notifications"`
	Sync          SyncConfig         `yaml:"sync"`
}

// Load reads and parses the configuration file, then applies ORCH_* environment overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "topic"
	}
	if len(c.RabbitMQ.Queue.BindingKeys) == 0 {
		c.RabbitMQ.Queue.BindingKeys = []string{"job.queued"}
	}
	if len(c.RabbitMQ.EventQueue.BindingKeys) == 0 {
		c.RabbitMQ.EventQueue.BindingKeys = []string{"#"}
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Worker.ShutdownTimeout <= 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
	if c.Worker.PostingInterval <= 0 {
		c.Worker.PostingInterval = time.Minute
	}
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = 5 * time.Second
	}
}

// Validate checks the settings every service needs
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Host == "" {
		errs = append(errs, errors.New("database host is required"))
	}
	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		errs = append(errs, fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("database name is required"))
	}
	if c.RabbitMQ.Host == "" {
		errs = append(errs, errors.New("rabbitmq host is required"))
	}
	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		errs = append(errs, fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort))
	}
	if c.RabbitMQ.Exchange.Name == "" {
		errs = append(errs, errors.New("rabbitmq exchange name is required"))
	}
	if c.Distribution.Spacing < 0 {
		errs = append(errs, errors.New("distribution spacing cannot be negative"))
	}

	return errors.Join(errs...)
}

// ValidateAPIConfig checks the settings of the API service
func (c *Config) ValidateAPIConfig() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort))
	}
	return errors.Join(errs...)
}

// ValidateWorkerConfig checks the settings of the worker service
func (c *Config) ValidateWorkerConfig() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.RabbitMQ.Queue.Name == "" {
		errs = append(errs, errors.New("rabbitmq queue name is required"))
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, errors.New("worker concurrency must be greater than 0"))
	}
	if c.Worker.JobTimeout <= 0 {
		errs = append(errs, errors.New("worker job_timeout must be greater than 0"))
	}
	for kind, d := range c.Worker.KindTimeouts {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("worker kind_timeouts[%s] must be greater than 0", kind))
		}
	}
	if !c.Collaborators.Posting.Enabled() {
		errs = append(errs, errors.New("collaborators.posting.base_url is required"))
	}
	if !c.Collaborators.Notifications.Enabled() {
		errs = append(errs, errors.New("collaborators.notifications.base_url is required"))
	}

	return errors.Join(errs...)
}

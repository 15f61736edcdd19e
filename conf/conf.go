package conf

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hamzali/surge"
)

type PostgresConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" env:"SURGE_DB_ENABLED"`
	Host     string `json:"host" yaml:"host" env:"DB_HOST"`
	Port     int    `json:"port" yaml:"port" env:"DB_PORT"`
	User     string `json:"user" yaml:"user" env:"DB_USER"`
	Password string `json:"password" yaml:"password" env:"DB_PASSWORD"`
	Database string `json:"db" yaml:"db" env:"DB_NAME"`
	SSL      bool   `json:"ssl" yaml:"ssl" env:"DB_SSL"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" env:"SURGE_METRICS_ENABLED"`
	Addr    string `json:"addr" yaml:"addr" env:"SURGE_METRICS_ADDR"`
}

// Config carries every knob of a run. Durations are plain seconds so config
// files stay tool independent; Seed zero means seed from the clock.
type Config struct {
	BaseURL     string           `json:"base_url" yaml:"base_url" env:"SURGE_BASE_URL"`
	Concurrency int              `json:"concurrency" yaml:"concurrency" env:"SURGE_CONCURRENCY"`
	Staircase   bool             `json:"staircase" yaml:"staircase" env:"SURGE_STAIRCASE"`
	Step        int              `json:"step" yaml:"step" env:"SURGE_STEP"`
	RampUp      int              `json:"ramp_up_seconds" yaml:"ramp_up_seconds" env:"SURGE_RAMP_UP_SECONDS"`
	Duration    int              `json:"duration_seconds" yaml:"duration_seconds" env:"SURGE_DURATION_SECONDS"`
	Pause       int              `json:"level_pause_seconds" yaml:"level_pause_seconds" env:"SURGE_LEVEL_PAUSE_SECONDS"`
	Timeout     int              `json:"request_timeout_seconds" yaml:"request_timeout_seconds" env:"SURGE_REQUEST_TIMEOUT_SECONDS"`
	PaceBase    int              `json:"pace_base_ms" yaml:"pace_base_ms" env:"SURGE_PACE_BASE_MS"`
	PaceJitter  int              `json:"pace_jitter_ms" yaml:"pace_jitter_ms" env:"SURGE_PACE_JITTER_MS"`
	Seed        int64            `json:"seed" yaml:"seed" env:"SURGE_SEED"`
	ProbePath   string           `json:"probe_path" yaml:"probe_path" env:"SURGE_PROBE_PATH"`
	OutputDir   string           `json:"output_dir" yaml:"output_dir" env:"SURGE_OUTPUT_DIR"`
	Endpoints   []surge.Endpoint `json:"endpoints" yaml:"endpoints"`
	Metrics     MetricsConfig    `json:"metrics" yaml:"metrics"`
	Postgres    PostgresConfig   `json:"postgres" yaml:"postgres"`
}

// read config file, json or yaml by extension.
func ReadConfig(path string, config *Config) error {
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, config)
		if err != nil {
			return fmt.Errorf("could not parse yaml: %w", err)
		}
	default:
		err = json.Unmarshal(b, config)
		if err != nil {
			return fmt.Errorf("could not parse json: %w", err)
		}
	}

	return nil
}

const (
	defaultConcurrency  = 50
	defaultStep         = 10
	defaultRampUp       = 20
	defaultDuration     = 60
	defaultPause        = 2
	defaultTimeout      = 30
	defaultPaceBase     = 100
	defaultPaceJitter   = 200
	defaultPostgresPort = 5432
)

var DefaultConfig = Config{
	BaseURL:     "http://127.0.0.1:8000",
	Concurrency: defaultConcurrency,
	Staircase:   false,
	Step:        defaultStep,
	RampUp:      defaultRampUp,
	Duration:    defaultDuration,
	Pause:       defaultPause,
	Timeout:     defaultTimeout,
	PaceBase:    defaultPaceBase,
	PaceJitter:  defaultPaceJitter,
	Seed:        0,
	ProbePath:   "/api/health/",
	OutputDir:   "results",
	Endpoints:   DefaultEndpoints(),
	Metrics: MetricsConfig{
		Enabled: false,
		Addr:    ":9090",
	},
	Postgres: PostgresConfig{
		Enabled:  false,
		Host:     "localhost",
		Port:     defaultPostgresPort,
		SSL:      false,
		Database: "postgres",
		User:     "postgres",
		Password: "",
	},
}

// DefaultEndpoints is a fresh copy of the built in endpoint mix, weighted
// roughly like the traffic of a small API backend.
func DefaultEndpoints() []surge.Endpoint {
	jsonHeaders := func() map[string]string {
		return map[string]string{"Content-Type": "application/json"}
	}

	return []surge.Endpoint{
		{Name: "health", Method: "GET", Path: "/api/health/", Weight: 25},
		{
			Name: "login", Method: "POST", Path: "/api/auth/login/",
			Headers: jsonHeaders(),
			Body:    `{"email": "test@example.com", "password": "testpassword123"}`,
			Weight:  20,
		},
		{
			Name: "check_email", Method: "POST", Path: "/api/auth/check-email/",
			Headers: jsonHeaders(),
			Body:    `{"email": "test@example.com"}`,
			Weight:  15,
		},
		{Name: "templates", Method: "GET", Path: "/api/templates/", Weight: 20},
		{Name: "gamification", Method: "GET", Path: "/api/gamification/views/", Weight: 15},
		{Name: "info", Method: "GET", Path: "/api/info/", Weight: 5},
	}
}

// initialize config with defaults, then file, then environment, then flags.
func InitConfig(name string, args []string) (*Config, error) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	config := DefaultConfig
	// endpoints from a file replace the default mix instead of merging
	// into it element by element
	config.Endpoints = nil

	var concurrency, step, rampUp, duration, pause, timeout, paceBase, paceJitter, dbPort int

	var baseURL, probePath, outputDir, metricsAddr, confPath, dbHost, dbUser, dbPassword, dbName string

	var staircase, metricsOn, dbOn, dbSSL bool

	var seed int64

	flags.StringVar(&baseURL, "url", DefaultConfig.BaseURL, "base url of the target")
	flags.IntVar(&concurrency, "concurrency", DefaultConfig.Concurrency, "maximum concurrent workers")
	flags.BoolVar(&staircase, "staircase", DefaultConfig.Staircase, "step through load levels instead of one fixed level")
	flags.IntVar(&step, "step", DefaultConfig.Step, "concurrency increase per staircase level")
	flags.IntVar(&rampUp, "ramp-up", DefaultConfig.RampUp, "worker ramp up time in seconds, fixed level only")
	flags.IntVar(&duration, "duration", DefaultConfig.Duration, "duration per level in seconds")
	flags.IntVar(&pause, "pause", DefaultConfig.Pause, "pause between levels in seconds")
	flags.IntVar(&timeout, "timeout", DefaultConfig.Timeout, "request timeout in seconds")
	flags.IntVar(&paceBase, "pace", DefaultConfig.PaceBase, "base delay between requests in milliseconds")
	flags.IntVar(&paceJitter, "jitter", DefaultConfig.PaceJitter, "random extra delay between requests in milliseconds")
	flags.Int64Var(&seed, "seed", DefaultConfig.Seed, "seed for endpoint selection, 0 seeds from the clock")
	flags.StringVar(&probePath, "probe", DefaultConfig.ProbePath, "path probed before the run starts")
	flags.StringVar(&outputDir, "out", DefaultConfig.OutputDir, "directory for report artifacts")
	flags.BoolVar(&metricsOn, "metrics", DefaultConfig.Metrics.Enabled, "expose prometheus metrics during the run")
	flags.StringVar(&metricsAddr, "metrics-addr", DefaultConfig.Metrics.Addr, "listen address for the metrics endpoint")
	flags.BoolVar(&dbOn, "db", DefaultConfig.Postgres.Enabled, "store the run in postgres")
	flags.StringVar(&dbHost, "db-host", DefaultConfig.Postgres.Host, "database host")
	flags.IntVar(&dbPort, "db-port", DefaultConfig.Postgres.Port, "database port")
	flags.StringVar(&dbUser, "db-user", DefaultConfig.Postgres.User, "database user")
	flags.StringVar(&dbPassword, "db-password", DefaultConfig.Postgres.Password, "database password")
	flags.StringVar(&dbName, "db-name", DefaultConfig.Postgres.Database, "database schema name")
	flags.BoolVar(&dbSSL, "db-ssl", DefaultConfig.Postgres.SSL, "database ssl mode")

	flags.StringVar(&confPath, "config", "", "custom config path")

	err := flags.Parse(args)
	if err != nil {
		return nil, fmt.Errorf("flag error: %w", err)
	}

	// load user defined custom config file
	err = ReadConfig(confPath, &config)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s, %w", confPath, err)
	}

	// environment overrides the file but never an explicit flag
	err = applyEnv(&config)
	if err != nil {
		return nil, err
	}

	if len(config.Endpoints) == 0 {
		config.Endpoints = DefaultEndpoints()
	}

	// provided flags always override configuration
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			config.BaseURL = baseURL
		case "concurrency":
			config.Concurrency = concurrency
		case "staircase":
			config.Staircase = staircase
		case "step":
			config.Step = step
		case "ramp-up":
			config.RampUp = rampUp
		case "duration":
			config.Duration = duration
		case "pause":
			config.Pause = pause
		case "timeout":
			config.Timeout = timeout
		case "pace":
			config.PaceBase = paceBase
		case "jitter":
			config.PaceJitter = paceJitter
		case "seed":
			config.Seed = seed
		case "probe":
			config.ProbePath = probePath
		case "out":
			config.OutputDir = outputDir
		case "metrics":
			config.Metrics.Enabled = metricsOn
		case "metrics-addr":
			config.Metrics.Addr = metricsAddr
		case "db":
			config.Postgres.Enabled = dbOn
		case "db-host":
			config.Postgres.Host = dbHost
		case "db-port":
			config.Postgres.Port = dbPort
		case "db-user":
			config.Postgres.User = dbUser
		case "db-password":
			config.Postgres.Password = dbPassword
		case "db-name":
			config.Postgres.Database = dbName
		case "db-ssl":
			config.Postgres.SSL = dbSSL
		}
	})

	return &config, nil
}

// applyEnv loads optional dotenv files and maps the environment onto the
// config. Unset variables leave the current values alone.
func applyEnv(config *Config) error {
	for _, f := range []string{".env", ".env.local"} {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("could not load %s: %w", f, err)
		}
	}

	if err := env.Parse(config); err != nil {
		return fmt.Errorf("could not parse environment: %w", err)
	}

	return nil
}

var (
	ErrNoBaseURL          = errors.New("base url is required")
	ErrNoEndpoints        = errors.New("at least one endpoint is required")
	ErrUnnamedEndpoint    = errors.New("endpoint name is required")
	ErrInvalidWeight      = errors.New("endpoint weight must be positive")
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	ErrInvalidStep        = errors.New("step must be positive")
	ErrInvalidDuration    = errors.New("duration must be positive")
	ErrInvalidTimeout     = errors.New("timeout must be positive")
	ErrNegativeTime       = errors.New("time settings cannot be negative")
)

// Validate fails fast on the first invalid setting, before any worker
// starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrNoBaseURL
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Staircase && c.Step <= 0 {
		return ErrInvalidStep
	}
	if c.Duration <= 0 {
		return ErrInvalidDuration
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RampUp < 0 || c.Pause < 0 || c.PaceBase < 0 || c.PaceJitter < 0 {
		return ErrNegativeTime
	}
	if len(c.Endpoints) == 0 {
		return ErrNoEndpoints
	}
	for _, ep := range c.Endpoints {
		if strings.TrimSpace(ep.Name) == "" {
			return ErrUnnamedEndpoint
		}
		if ep.Weight <= 0 {
			return fmt.Errorf("endpoint %q: %w", ep.Name, ErrInvalidWeight)
		}
	}

	return nil
}

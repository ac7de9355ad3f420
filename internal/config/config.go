package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vango-dev/uireg/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "uireg.json"

	// DefaultPort is the default HTTP port.
	DefaultPort = 8080

	// DefaultHost is the default bind host.
	DefaultHost = "localhost"

	// DefaultDatabasePath is the default SQLite database location.
	DefaultDatabasePath = "data/registry.db"

	// DefaultStorageDir is the default directory for the disk upload store.
	DefaultStorageDir = "data/files"

	// DefaultSlugDebounce is the delay before a manually edited slug is checked.
	DefaultSlugDebounce = 500 * time.Millisecond

	// DefaultNPMRegistry is the npm registry used for version lookups.
	DefaultNPMRegistry = "https://registry.npmjs.org"
)

// Storage drivers.
const (
	StorageDisk = "disk"
	StorageS3   = "s3"
)

// Config represents the complete uireg.json configuration.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server,omitempty"`

	// Database contains SQLite configuration.
	Database DatabaseConfig `json:"database,omitempty"`

	// Storage contains upload storage configuration.
	Storage StorageConfig `json:"storage,omitempty"`

	// Search contains command palette search configuration.
	Search SearchConfig `json:"search,omitempty"`

	// Submission contains submission form session configuration.
	Submission SubmissionConfig `json:"submission,omitempty"`

	// Preview contains sandbox preview configuration.
	Preview PreviewConfig `json:"preview,omitempty"`

	// Versions contains package version resolution configuration.
	Versions VersionsConfig `json:"versions,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// PublicURL is the externally visible base URL, used for install URLs.
	PublicURL string `json:"publicURL,omitempty"`

	ReadTimeout     string `json:"readTimeout,omitempty"`
	WriteTimeout    string `json:"writeTimeout,omitempty"`
	ShutdownTimeout string `json:"shutdownTimeout,omitempty"`
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `json:"path,omitempty"`
}

// StorageConfig contains upload storage settings.
type StorageConfig struct {
	// Driver is "disk" or "s3".
	Driver string `json:"driver,omitempty"`

	// Dir is the directory used by the disk driver.
	Dir string `json:"dir,omitempty"`

	// BaseURL is the URL prefix under which stored files are served.
	BaseURL string `json:"baseURL,omitempty"`

	Bucket    string `json:"bucket,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	PathStyle bool   `json:"pathStyle,omitempty"`

	// MaxFileSize is the upload size limit in bytes.
	MaxFileSize int64 `json:"maxFileSize,omitempty"`

	AccessKeyID     string `json:"-"`
	SecretAccessKey string `json:"-"`
}

// SearchConfig contains command palette search settings.
type SearchConfig struct {
	// RemoteURL points at a remote search RPC. Empty means the local index.
	RemoteURL string `json:"remoteURL,omitempty"`

	// CacheTTL is how long results for a query are reused.
	CacheTTL string `json:"cacheTTL,omitempty"`

	// Limit caps the number of component results.
	Limit int `json:"limit,omitempty"`

	// SectionsFile is a YAML file with static navigation sections.
	SectionsFile string `json:"sectionsFile,omitempty"`

	APIKey string `json:"-"`
}

// SubmissionConfig contains submission session settings.
type SubmissionConfig struct {
	SlugDebounce string `json:"slugDebounce,omitempty"`
	IdleTimeout  string `json:"idleTimeout,omitempty"`
	MaxPerUser   int    `json:"maxPerUser,omitempty"`
}

// PreviewConfig contains sandbox preview settings.
type PreviewConfig struct {
	// Baseline are runtime packages every preview depends on.
	Baseline map[string]string `json:"baseline,omitempty"`

	// ExternalResources are stylesheets injected into the sandbox.
	ExternalResources []string `json:"externalResources,omitempty"`
}

// VersionsConfig contains package version resolution settings.
type VersionsConfig struct {
	// Declared pins versions for known packages.
	Declared map[string]string `json:"declared,omitempty"`

	// NPM enables registry lookups when pinning versions at submit time.
	NPM bool `json:"npm,omitempty"`

	// NPMRegistry is the registry base URL.
	NPMRegistry string `json:"npmRegistry,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	ServiceName string `json:"serviceName,omitempty"`

	// Exporter is "stdout", "file" or "none". With "none" spans are
	// still created and propagated but never exported.
	Exporter string `json:"exporter,omitempty"`

	// File receives JSON spans when Exporter is "file".
	File string `json:"file,omitempty"`

	// SampleRate is the fraction of root traces kept. Zero means all.
	SampleRate float64 `json:"sampleRate,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     "15s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "10s",
		},
		Database: DatabaseConfig{
			Path: DefaultDatabasePath,
		},
		Storage: StorageConfig{
			Driver:      StorageDisk,
			Dir:         DefaultStorageDir,
			BaseURL:     "/files",
			MaxFileSize: 5 * 1024 * 1024,
		},
		Search: SearchConfig{
			CacheTTL: "1m",
			Limit:    20,
		},
		Submission: SubmissionConfig{
			SlugDebounce: "500ms",
			IdleTimeout:  "30m",
			MaxPerUser:   5,
		},
		Preview: PreviewConfig{
			Baseline: map[string]string{
				"react":     "^18.0.0",
				"react-dom": "^18.0.0",
			},
			ExternalResources: []string{"https://cdn.tailwindcss.com"},
		},
		Versions: VersionsConfig{
			Declared:    map[string]string{},
			NPMRegistry: DefaultNPMRegistry,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "uireg",
		},
		Tracing: TracingConfig{
			ServiceName: "uireg",
			Exporter:    "stdout",
			SampleRate:  1,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for uireg.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("No uireg.json found in " + filepath.Dir(path)).
				WithSuggestion("Run 'uireg init' to create one")
		}
		return nil, errors.New("E100").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E100").
			WithDetail("Failed to parse uireg.json: " + err.Error()).
			WithSuggestion("Check that uireg.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.ApplyEnv(os.Getenv)

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E100").Wrap(err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E100").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	d := New()

	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}

	if c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = d.Storage.Dir
	}
	if c.Storage.BaseURL == "" && c.Storage.Driver == StorageDisk {
		c.Storage.BaseURL = d.Storage.BaseURL
	}
	if c.Storage.MaxFileSize == 0 {
		c.Storage.MaxFileSize = d.Storage.MaxFileSize
	}

	if c.Search.CacheTTL == "" {
		c.Search.CacheTTL = d.Search.CacheTTL
	}
	if c.Search.Limit == 0 {
		c.Search.Limit = d.Search.Limit
	}

	if c.Submission.SlugDebounce == "" {
		c.Submission.SlugDebounce = d.Submission.SlugDebounce
	}
	if c.Submission.IdleTimeout == "" {
		c.Submission.IdleTimeout = d.Submission.IdleTimeout
	}
	if c.Submission.MaxPerUser == 0 {
		c.Submission.MaxPerUser = d.Submission.MaxPerUser
	}

	if len(c.Preview.Baseline) == 0 {
		c.Preview.Baseline = d.Preview.Baseline
	}
	if c.Preview.ExternalResources == nil {
		c.Preview.ExternalResources = d.Preview.ExternalResources
	}

	if c.Versions.Declared == nil {
		c.Versions.Declared = map[string]string{}
	}
	if c.Versions.NPMRegistry == "" {
		c.Versions.NPMRegistry = d.Versions.NPMRegistry
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = d.Metrics.Namespace
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = d.Tracing.ServiceName
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = d.Tracing.Exporter
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = d.Tracing.SampleRate
	}
}

// ApplyEnv applies environment overrides using the given lookup function.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("UIREG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := getenv("UIREG_DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := getenv("UIREG_S3_ACCESS_KEY_ID"); v != "" {
		c.Storage.AccessKeyID = v
	}
	if v := getenv("UIREG_S3_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.SecretAccessKey = v
	}
	if v := getenv("UIREG_SEARCH_API_KEY"); v != "" {
		c.Search.APIKey = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E102").
			WithDetailf("Port %d is outside 0-65535", c.Server.Port)
	}

	switch c.Storage.Driver {
	case StorageDisk:
		if c.Storage.Dir == "" {
			return errors.New("E103").WithDetail("storage.dir is required for the disk driver")
		}
	case StorageS3:
		if c.Storage.Bucket == "" || c.Storage.Region == "" {
			return errors.New("E103").
				WithDetail("storage.bucket and storage.region are required for the s3 driver")
		}
	default:
		return errors.New("E103").
			WithDetailf("Unknown storage driver %q", c.Storage.Driver).
			WithSuggestion(`Use "disk" or "s3"`)
	}

	switch c.Tracing.Exporter {
	case "", "stdout", "none":
	case "file":
		if c.Tracing.File == "" {
			return errors.New("E108").WithDetail("tracing.file is required for the file exporter")
		}
	default:
		return errors.New("E108").WithDetailf("Unknown tracing exporter %q", c.Tracing.Exporter)
	}

	for name, value := range map[string]string{
		"server.readTimeout":      c.Server.ReadTimeout,
		"server.writeTimeout":     c.Server.WriteTimeout,
		"server.shutdownTimeout":  c.Server.ShutdownTimeout,
		"search.cacheTTL":         c.Search.CacheTTL,
		"submission.slugDebounce": c.Submission.SlugDebounce,
		"submission.idleTimeout":  c.Submission.IdleTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return errors.New("E104").WithDetailf("%s: %q is not a duration", name, value)
		}
	}
	return nil
}

// Address returns the host:port the HTTP server binds to.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// BaseURL returns the public base URL of the server.
func (c *Config) BaseURL() string {
	if c.Server.PublicURL != "" {
		return c.Server.PublicURL
	}
	return "http://" + c.Address()
}

// DatabasePath returns the absolute path to the SQLite database.
func (c *Config) DatabasePath() string {
	return c.resolve(c.Database.Path)
}

// StorageDir returns the absolute path to the disk upload directory.
func (c *Config) StorageDir() string {
	return c.resolve(c.Storage.Dir)
}

// TracingFile returns the resolved tracing.file path.
func (c *Config) TracingFile() string {
	return c.resolve(c.Tracing.File)
}

// SectionsPath returns the absolute path to the navigation sections file,
// or "" when none is configured.
func (c *Config) SectionsPath() string {
	if c.Search.SectionsFile == "" {
		return ""
	}
	return c.resolve(c.Search.SectionsFile)
}

// SlugDebounce returns the parsed slug check debounce delay.
func (c *Config) SlugDebounce() time.Duration {
	return parseDuration(c.Submission.SlugDebounce, DefaultSlugDebounce)
}

// IdleTimeout returns how long an untouched submission session lives.
func (c *Config) IdleTimeout() time.Duration {
	return parseDuration(c.Submission.IdleTimeout, 30*time.Minute)
}

// SearchCacheTTL returns how long search results are cached.
func (c *Config) SearchCacheTTL() time.Duration {
	return parseDuration(c.Search.CacheTTL, time.Minute)
}

// ReadTimeout returns the HTTP read timeout.
func (c *Config) ReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// WriteTimeout returns the HTTP write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 30*time.Second)
}

// ShutdownTimeout returns the graceful shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the directory holding uireg.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E101").
				WithDetail("No uireg.json found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'uireg init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory,
// falling back to defaults when no config file exists.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		if errors.HasCode(err, "E101") {
			cfg := New()
			cfg.configPath = filepath.Join(wd, ConfigFileName)
			cfg.ApplyEnv(os.Getenv)
			return cfg, nil
		}
		return nil, err
	}

	return Load(root)
}

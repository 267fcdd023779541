package addonsync

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-ini/ini"
)

// DefaultAPIURL matches the endpoint written into freshly created config files
const DefaultAPIURL = "https://localhost:5000/"

// Config represents the addonsync configuration
type Config struct {
	configPath string
	ini        *ini.File
}

// APIConfig represents the remote service configuration
type APIConfig struct {
	URL     string
	Secret  string        // HS256 signing key for bearer tokens, empty disables auth
	Timeout time.Duration // per-request timeout
	Retries int           // attempts for retryable failures
}

// ScanConfig represents tree walking and change detection configuration
type ScanConfig struct {
	Directories     []string
	FollowLinks     bool
	IgnoreHidden    bool
	IgnoreFiles     []string
	ChangeDetection string // metadata, mtime, content
}

// HashConfig represents hash algorithm configuration
type HashConfig struct {
	Default string // Default hash algorithm
	Buffer  string // Read chunk size (default: "2M")
}

// CacheConfig represents cache persistence configuration
type CacheConfig struct {
	File    string
	Backend string // json, sqlite
}

// IndexConfig represents index output configuration
type IndexConfig struct {
	File string
}

// PublishConfig represents S3-compatible index publishing configuration
type PublishConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	Key       string
	AccessKey string
	SecretKey string
}

// Enabled reports whether a bucket has been configured
func (p *PublishConfig) Enabled() bool {
	return p.Bucket != ""
}

// VerboseConfig represents verbosity configuration
type VerboseConfig struct {
	Level int    // Default verbose level (0=quiet, 1=basic, 2=detailed, 3=trace)
	Debug string // Default debug flags (comma-separated)
}

// LogOutputConfig represents the log encoder configuration
type LogOutputConfig struct {
	Format string // console, json
	Output string // stderr, stdout, or a file path
}

// MetricsConfig represents metrics output configuration
type MetricsConfig struct {
	Textfile string // node_exporter textfile collector path, empty disables
}

// AllConfig represents all configuration options
type AllConfig struct {
	API     *APIConfig
	Scan    *ScanConfig
	Hash    *HashConfig
	Cache   *CacheConfig
	Index   *IndexConfig
	Publish *PublishConfig
	Verbose *VerboseConfig
	Log     *LogOutputConfig
	Metrics *MetricsConfig
}

// configDefaults lists the keys written into a new config file
var configDefaults = []struct {
	section, key, value string
}{
	{"api", "url", DefaultAPIURL},
	{"api", "secret", ""},
	{"api", "timeout", "30s"},
	{"api", "retries", "3"},
	{"scan", "directories", ""},
	{"scan", "follow_links", "false"},
	{"scan", "ignore_hidden", "false"},
	{"scan", "ignore_files", ""},
	{"scan", "change_detection", DetectMetadata},
	{"filehash", "default", "sha256"},
	{"filehash", "buffer", "2M"},
	{"cache", "file", CacheFile},
	{"cache", "backend", BackendJSON},
	{"index", "file", IndexFile},
	{"publish", "endpoint", ""},
	{"publish", "region", "us-east-1"},
	{"publish", "bucket", ""},
	{"publish", "key", IndexFile},
	{"publish", "access_key", ""},
	{"publish", "secret_key", ""},
	{"verbose", "level", "0"},
	{"verbose", "debug", ""},
	{"log", "format", "console"},
	{"log", "output", "stderr"},
	{"metrics", "textfile", ""},
}

// LoadConfig loads configuration from configPath, writing a default file
// when none exists yet
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{
		configPath: configPath,
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.ini = ini.Empty()
		if err := cfg.setDefaults(); err != nil {
			return nil, fmt.Errorf("failed to set default config: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		VerboseLog(1, "Created default configuration at %s", configPath)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	} else {
		iniFile, err := ini.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ini = iniFile
	}

	return cfg, nil
}

// NewMemoryConfig returns a config holding only defaults, never saved
func NewMemoryConfig() *Config {
	cfg := &Config{ini: ini.Empty()}
	// defaults only touch in-memory sections, this cannot fail
	_ = cfg.setDefaults()
	return cfg
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() error {
	for _, d := range configDefaults {
		section, err := c.ini.GetSection(d.section)
		if err != nil {
			section, err = c.ini.NewSection(d.section)
			if err != nil {
				return fmt.Errorf("failed to create %s section: %w", d.section, err)
			}
		}
		if _, err := section.NewKey(d.key, d.value); err != nil {
			return fmt.Errorf("failed to set default %s.%s: %w", d.section, d.key, err)
		}
	}
	return nil
}

// Path returns the file the configuration was loaded from
func (c *Config) Path() string {
	return c.configPath
}

// GetAPIConfig returns the remote service configuration
func (c *Config) GetAPIConfig() *APIConfig {
	apiConfig := &APIConfig{
		URL:     DefaultAPIURL, // fallback default
		Timeout: 30 * time.Second,
		Retries: 3,
	}

	if c.ini.HasSection("api") {
		section := c.ini.Section("api")
		if section.HasKey("url") {
			apiConfig.URL = section.Key("url").String()
		}
		if section.HasKey("secret") {
			apiConfig.Secret = section.Key("secret").String()
		}
		if section.HasKey("timeout") {
			if timeout, err := section.Key("timeout").Duration(); err == nil {
				apiConfig.Timeout = timeout
			}
		}
		if section.HasKey("retries") {
			if retries, err := section.Key("retries").Int(); err == nil {
				apiConfig.Retries = retries
			}
		}
	}

	return apiConfig
}

// GetScanConfig returns the tree walking configuration
func (c *Config) GetScanConfig() *ScanConfig {
	scanConfig := &ScanConfig{
		ChangeDetection: DetectMetadata, // fallback default
	}

	if c.ini.HasSection("scan") {
		section := c.ini.Section("scan")
		if section.HasKey("directories") {
			scanConfig.Directories = splitList(section.Key("directories").String())
		}
		if section.HasKey("follow_links") {
			if follow, err := section.Key("follow_links").Bool(); err == nil {
				scanConfig.FollowLinks = follow
			}
		}
		if section.HasKey("ignore_hidden") {
			if hidden, err := section.Key("ignore_hidden").Bool(); err == nil {
				scanConfig.IgnoreHidden = hidden
			}
		}
		if section.HasKey("ignore_files") {
			scanConfig.IgnoreFiles = splitList(section.Key("ignore_files").String())
		}
		if section.HasKey("change_detection") {
			if mode := section.Key("change_detection").String(); mode != "" {
				scanConfig.ChangeDetection = strings.ToLower(mode)
			}
		}
	}

	return scanConfig
}

// GetHashConfig returns the hash configuration
func (c *Config) GetHashConfig() *HashConfig {
	hashConfig := &HashConfig{
		Default: "sha256", // fallback default
		Buffer:  "2M",
	}

	if c.ini.HasSection("filehash") {
		section := c.ini.Section("filehash")
		if section.HasKey("default") {
			hashConfig.Default = section.Key("default").String()
		}
		if section.HasKey("buffer") {
			if bufferSize := section.Key("buffer").String(); bufferSize != "" {
				hashConfig.Buffer = bufferSize
			}
		}
	}

	return hashConfig
}

// GetCacheConfig returns the cache configuration
func (c *Config) GetCacheConfig() *CacheConfig {
	cacheConfig := &CacheConfig{
		File:    CacheFile,
		Backend: BackendJSON,
	}

	if c.ini.HasSection("cache") {
		section := c.ini.Section("cache")
		if section.HasKey("file") {
			if file := section.Key("file").String(); file != "" {
				cacheConfig.File = file
			}
		}
		if section.HasKey("backend") {
			if backend := section.Key("backend").String(); backend != "" {
				cacheConfig.Backend = strings.ToLower(backend)
			}
		}
	}

	return cacheConfig
}

// GetIndexConfig returns the index output configuration
func (c *Config) GetIndexConfig() *IndexConfig {
	indexConfig := &IndexConfig{
		File: IndexFile,
	}

	if c.ini.HasSection("index") {
		section := c.ini.Section("index")
		if section.HasKey("file") {
			if file := section.Key("file").String(); file != "" {
				indexConfig.File = file
			}
		}
	}

	return indexConfig
}

// GetPublishConfig returns the index publishing configuration
func (c *Config) GetPublishConfig() *PublishConfig {
	publishConfig := &PublishConfig{
		Region: "us-east-1",
		Key:    IndexFile,
	}

	if c.ini.HasSection("publish") {
		section := c.ini.Section("publish")
		publishConfig.Endpoint = section.Key("endpoint").String()
		if region := section.Key("region").String(); region != "" {
			publishConfig.Region = region
		}
		publishConfig.Bucket = section.Key("bucket").String()
		if key := section.Key("key").String(); key != "" {
			publishConfig.Key = key
		}
		publishConfig.AccessKey = section.Key("access_key").String()
		publishConfig.SecretKey = section.Key("secret_key").String()
	}

	return publishConfig
}

// GetVerboseConfig returns the verbose configuration
func (c *Config) GetVerboseConfig() *VerboseConfig {
	verboseConfig := &VerboseConfig{
		Level: 0,  // fallback default
		Debug: "", // fallback default
	}

	if c.ini.HasSection("verbose") {
		section := c.ini.Section("verbose")
		if section.HasKey("level") {
			if level, err := section.Key("level").Int(); err == nil {
				verboseConfig.Level = level
			}
		}
		if section.HasKey("debug") {
			verboseConfig.Debug = section.Key("debug").String()
		}
	}

	return verboseConfig
}

// GetLogConfig returns the log encoder configuration
func (c *Config) GetLogConfig() *LogOutputConfig {
	logConfig := &LogOutputConfig{
		Format: "console",
		Output: "stderr",
	}

	if c.ini.HasSection("log") {
		section := c.ini.Section("log")
		if format := section.Key("format").String(); format != "" {
			logConfig.Format = strings.ToLower(format)
		}
		if output := section.Key("output").String(); output != "" {
			logConfig.Output = output
		}
	}

	return logConfig
}

// GetMetricsConfig returns the metrics configuration
func (c *Config) GetMetricsConfig() *MetricsConfig {
	metricsConfig := &MetricsConfig{}
	if c.ini.HasSection("metrics") {
		metricsConfig.Textfile = c.ini.Section("metrics").Key("textfile").String()
	}
	return metricsConfig
}

// GetAllConfig returns all configuration options
func (c *Config) GetAllConfig() *AllConfig {
	return &AllConfig{
		API:     c.GetAPIConfig(),
		Scan:    c.GetScanConfig(),
		Hash:    c.GetHashConfig(),
		Cache:   c.GetCacheConfig(),
		Index:   c.GetIndexConfig(),
		Publish: c.GetPublishConfig(),
		Verbose: c.GetVerboseConfig(),
		Log:     c.GetLogConfig(),
		Metrics: c.GetMetricsConfig(),
	}
}

// typedKeys lists the options the getters parse rather than read verbatim
var typedKeys = []struct {
	section, key string
	parse        func(*ini.Key) error
}{
	{"api", "timeout", func(k *ini.Key) error { _, err := k.Duration(); return err }},
	{"api", "retries", func(k *ini.Key) error { _, err := k.Int(); return err }},
	{"scan", "follow_links", func(k *ini.Key) error { _, err := k.Bool(); return err }},
	{"scan", "ignore_hidden", func(k *ini.Key) error { _, err := k.Bool(); return err }},
	{"verbose", "level", func(k *ini.Key) error { _, err := k.Int(); return err }},
}

// validateTypedKeys rejects present keys whose value does not parse. The
// getters would otherwise fall back to their defaults.
func (c *Config) validateTypedKeys() error {
	for _, tk := range typedKeys {
		if !c.ini.HasSection(tk.section) {
			continue
		}
		section := c.ini.Section(tk.section)
		if !section.HasKey(tk.key) {
			continue
		}
		if err := tk.parse(section.Key(tk.key)); err != nil {
			return fmt.Errorf("invalid %s.%s: %w", tk.section, tk.key, err)
		}
	}
	return nil
}

// Validate checks that typed options parse and that every option with a
// fixed set of legal values holds one of them
func (c *Config) Validate() error {
	if err := c.validateTypedKeys(); err != nil {
		return err
	}

	all := c.GetAllConfig()
	if err := ValidateAPIURL(all.API.URL); err != nil {
		return err
	}
	if err := ValidateRetries(all.API.Retries); err != nil {
		return err
	}
	if err := ValidateHashAlgorithm(all.Hash.Default); err != nil {
		return err
	}
	if _, err := ParseHumanSize(all.Hash.Buffer); err != nil {
		return fmt.Errorf("invalid filehash.buffer: %w", err)
	}
	if err := ValidateChangeDetection(all.Scan.ChangeDetection); err != nil {
		return err
	}
	if err := ValidateIgnorePatterns(all.Scan.IgnoreFiles); err != nil {
		return err
	}
	if err := ValidateCacheBackend(all.Cache.Backend); err != nil {
		return err
	}
	if err := ValidateVerboseLevel(all.Verbose.Level); err != nil {
		return err
	}
	return ValidateLogFormat(all.Log.Format)
}

// Set assigns a single section.key value in memory
func (c *Config) Set(section, key, value string) {
	c.ini.Section(section).Key(key).SetValue(value)
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("config has no backing file")
	}
	return c.ini.SaveTo(c.configPath)
}

// ApplyOverrides applies command-line overrides to the configuration
// Accepts strings like "scan.follow_links=true", "api.url=http://host/"
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format '%s', expected 'section.key=value'", override)
		}

		name := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		dot := strings.Index(name, ".")
		if dot <= 0 || dot == len(name)-1 {
			return fmt.Errorf("invalid override key '%s', expected 'section.key'", name)
		}
		section, key := name[:dot], name[dot+1:]

		if !isKnownKey(section, key) {
			return fmt.Errorf("unsupported override key '%s'", name)
		}
		c.Set(section, key, value)
	}

	return nil
}

func isKnownKey(section, key string) bool {
	for _, d := range configDefaults {
		if d.section == section && d.key == key {
			return true
		}
	}
	return false
}

// splitList splits a comma-separated ini value, dropping empty items
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// ValidateAPIURL validates that the remote endpoint is an http(s) URL
func ValidateAPIURL(url string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("invalid api url: %q (must start with http:// or https://)", url)
	}
	return nil
}

// ValidateRetries validates the remote retry count
func ValidateRetries(retries int) error {
	if retries < 1 || retries > 10 {
		return fmt.Errorf("invalid api retries: %d (supported: 1-10)", retries)
	}
	return nil
}

// ValidateHashAlgorithm validates that a hash algorithm is supported
func ValidateHashAlgorithm(algorithm string) error {
	if _, ok := HashTypeFromName(algorithm); !ok {
		return fmt.Errorf("unsupported hash algorithm: %s (supported: sha256, sha512_256, blake2b, sha3-256)", algorithm)
	}
	return nil
}

// ValidateChangeDetection validates the change detection mode
func ValidateChangeDetection(mode string) error {
	switch strings.ToLower(mode) {
	case DetectMetadata, DetectMtime, DetectContent:
		return nil
	default:
		return fmt.Errorf("unsupported change detection mode: %s (supported: metadata, mtime, content)", mode)
	}
}

// ValidateCacheBackend validates the cache backend name
func ValidateCacheBackend(backend string) error {
	switch strings.ToLower(backend) {
	case BackendJSON, BackendSQLite:
		return nil
	default:
		return fmt.Errorf("unsupported cache backend: %s (supported: json, sqlite)", backend)
	}
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid verbose level: %d (supported: 0-3)", level)
	}
	return nil
}

// ValidateLogFormat validates the log encoder name
func ValidateLogFormat(format string) error {
	switch strings.ToLower(format) {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("unsupported log format: %s (supported: console, json)", format)
	}
}

package types

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/netalias/genalias/shared-lib/http/auth"
	"github.com/spf13/viper"
)

const (
	EnvPrefix       = "GENALIAS"
	DefaultDumpURL  = "https://raw.githubusercontent.com/zapret-info/z-i/master/dump.csv"
	DefaultBranch   = "gh-pages"
	DefaultIPv4File = "alias.txt"
	DefaultIPv6File = "alias6.txt"
)

// Config struct
type Config struct {
	DumpURL  string         `mapstructure:"dumpUrl" validate:"required,url"`
	Encoding string         `mapstructure:"encoding" validate:"required"`
	WorkDir  string         `mapstructure:"workDir" validate:"required"`
	Report   string         `mapstructure:"report"`
	DryRun   bool           `mapstructure:"dryRun"`
	DNS      DNSConfig      `mapstructure:"dns"`
	Download DownloadConfig `mapstructure:"download"`
	Pages    PagesConfig    `mapstructure:"pages"`
	Log      LogConfig      `mapstructure:"log"`
}

type DNSConfig struct {
	Jobs       int           `mapstructure:"jobs" validate:"min=0"`
	Attempts   int           `mapstructure:"attempts" validate:"min=1"`
	RetryDelay time.Duration `mapstructure:"retryDelay" validate:"min=0"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=0"`
}

type DownloadConfig struct {
	Timeout      time.Duration   `mapstructure:"timeout" validate:"min=0"`
	MaxSize      int64           `mapstructure:"maxSize" validate:"min=0"`
	CABundlePath string          `mapstructure:"caBundlePath"`
	Auth         auth.AuthConfig `mapstructure:"auth"`
}

type PagesConfig struct {
	RepoURL       string `mapstructure:"repoUrl" validate:"required"`
	Branch        string `mapstructure:"branch" validate:"required"`
	Dir           string `mapstructure:"dir" validate:"required"`
	Username      string `mapstructure:"username"`
	Token         string `mapstructure:"token"`
	CABundlePath  string `mapstructure:"caBundlePath"`
	AuthorName    string `mapstructure:"authorName" validate:"required"`
	AuthorEmail   string `mapstructure:"authorEmail" validate:"required,email"`
	CommitMessage string `mapstructure:"commitMessage" validate:"required"`
	IPv4File      string `mapstructure:"ipv4File" validate:"required"`
	IPv6File      string `mapstructure:"ipv6File" validate:"required,nefield=IPv4File"`
	Push          bool   `mapstructure:"push"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

var defaults = map[string]interface{}{
	"dumpUrl":                DefaultDumpURL,
	"encoding":               "cp1251",
	"workDir":                "work",
	"report":                 "",
	"dryRun":                 false,
	"dns.jobs":               0,
	"dns.attempts":           10,
	"dns.retryDelay":         500 * time.Millisecond,
	"dns.timeout":            10 * time.Second,
	"download.timeout":       5 * time.Minute,
	"download.maxSize":       int64(512 * 1024 * 1024),
	"download.caBundlePath":  "",
	"download.auth.type":     string(auth.AuthTypeNone),
	"download.auth.username": "",
	"download.auth.password": "",
	"download.auth.token":    "",
	"pages.repoUrl":          "",
	"pages.branch":           DefaultBranch,
	"pages.dir":              "work/pages",
	"pages.username":         "",
	"pages.token":            "",
	"pages.caBundlePath":     "",
	"pages.authorName":       "genalias",
	"pages.authorEmail":      "genalias@users.noreply.github.com",
	"pages.commitMessage":    "Update alias lists",
	"pages.ipv4File":         DefaultIPv4File,
	"pages.ipv6File":         DefaultIPv6File,
	"pages.push":             true,
	"log.level":              "info",
	"log.format":             "console",
}

// ConfigManager interface
type ConfigManager interface {
	LoadAndValidateConfig() (*Config, error)
}

// configManager implementation
type configManager struct {
	validator      *validator.Validate
	configFilePath string
	overrides      map[string]interface{}
}

// NewConfigManager creates a new ConfigManager. An empty path skips the
// config file; a path that does not exist is not an error. Overrides are
// keyed like the config file (e.g. "pages.push") and win over the file and
// the environment.
func NewConfigManager(completeFilePath string, overrides map[string]interface{}) ConfigManager {
	return &configManager{
		validator:      validator.New(),
		configFilePath: completeFilePath,
		overrides:      overrides,
	}
}

// LoadAndValidateConfig merges defaults, the config file, GENALIAS_*
// environment variables and overrides, in increasing precedence.
func (cm *configManager) LoadAndValidateConfig() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if cm.configFilePath != "" {
		v.SetConfigFile(cm.configFilePath)
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	for key, value := range cm.overrides {
		v.Set(key, value)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cm.validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func (cm *configManager) validateConfig(config *Config) error {
	if err := cm.validator.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.Download.Auth.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: download.auth: %w", err)
	}
	return nil
}

package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Input     InputConfig     `yaml:"input" mapstructure:"input"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Job       JobConfig       `yaml:"job" mapstructure:"job"`
	Filters   FiltersConfig   `yaml:"filters" mapstructure:"filters"`
	Simplify  SimplifyConfig  `yaml:"simplify" mapstructure:"simplify"`
	Prompts   PromptsConfig   `yaml:"prompts" mapstructure:"prompts"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	ClassifyModel     string  `yaml:"classify_model" mapstructure:"classify_model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	CacheTTL          string  `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// InputConfig describes where EML files are discovered.
type InputConfig struct {
	Directory  string   `yaml:"directory" mapstructure:"directory"`
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
	Structure  string   `yaml:"structure" mapstructure:"structure"`
	Recursive  bool     `yaml:"recursive" mapstructure:"recursive"`
}

// OutputConfig describes where artifacts are written and how they are named.
type OutputConfig struct {
	Directory       string   `yaml:"directory" mapstructure:"directory"`
	Structure       string   `yaml:"structure" mapstructure:"structure"`
	FilenameOptions []string `yaml:"filename_options" mapstructure:"filename_options"`
	Timezone        string   `yaml:"timezone" mapstructure:"timezone"`
	HashSampleBytes int64    `yaml:"hash_sample_bytes" mapstructure:"hash_sample_bytes"`
}

// JobConfig selects which messages a run processes.
type JobConfig struct {
	Start        string `yaml:"start" mapstructure:"start"`
	End          string `yaml:"end" mapstructure:"end"`
	CurrentMonth bool   `yaml:"current_month" mapstructure:"current_month"`
	Concurrency  int    `yaml:"concurrency" mapstructure:"concurrency"`
	Limit        int    `yaml:"limit" mapstructure:"limit"`
	Replace      bool   `yaml:"replace" mapstructure:"replace"`
	DryRun       bool   `yaml:"dry_run" mapstructure:"dry_run"`
}

// FilterRules is one side of the include/exclude filter.
type FilterRules struct {
	Subject []string `yaml:"subject" mapstructure:"subject"`
	To      []string `yaml:"to" mapstructure:"to"`
	From    []string `yaml:"from" mapstructure:"from"`
}

// FiltersConfig holds include and exclude regex lists.
type FiltersConfig struct {
	Include FilterRules `yaml:"include" mapstructure:"include"`
	Exclude FilterRules `yaml:"exclude" mapstructure:"exclude"`
}

// SimplifyConfig controls how messages are reduced before model calls.
type SimplifyConfig struct {
	Headers         []string `yaml:"headers" mapstructure:"headers"`
	TextOnly        bool     `yaml:"text_only" mapstructure:"text_only"`
	SkipAttachments bool     `yaml:"skip_attachments" mapstructure:"skip_attachments"`
}

// PromptsConfig points at prompt overrides and extra context.
type PromptsConfig struct {
	OverrideDirectory  string   `yaml:"override_directory" mapstructure:"override_directory"`
	ContextDirectories []string `yaml:"context_directories" mapstructure:"context_directories"`
	TaxonomyFile       string   `yaml:"taxonomy_file" mapstructure:"taxonomy_file"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultSimplifyHeaders keeps routing and identity headers and drops the rest.
var DefaultSimplifyHeaders = []string{
	"^GmExport-.*$",
	"^Received-SPF$",
	"^Authentication-Results$",
	"^Date$",
	"^From$",
	"^To$",
	"^Subject$",
	"^Message-ID$",
	"^Reply-To$",
	"^Cc$",
	"^Bcc$",
}

// Load reads configuration from file and environment. An empty path
// searches the working directory for config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("MAILSENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.classify_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_second", 2.0)
	v.SetDefault("anthropic.max_attempts", 3)
	v.SetDefault("anthropic.cache_ttl", "5m")
	v.SetDefault("input.directory", "./input")
	v.SetDefault("input.extensions", []string{"eml"})
	v.SetDefault("input.structure", "month")
	v.SetDefault("input.recursive", true)
	v.SetDefault("output.directory", "./output")
	v.SetDefault("output.structure", "month")
	v.SetDefault("output.filename_options", []string{"date", "subject"})
	v.SetDefault("output.timezone", "Etc/UTC")
	v.SetDefault("output.hash_sample_bytes", 4096)
	v.SetDefault("job.start", "")
	v.SetDefault("job.end", "")
	v.SetDefault("job.current_month", false)
	v.SetDefault("job.concurrency", 3)
	v.SetDefault("job.limit", 0)
	v.SetDefault("job.replace", false)
	v.SetDefault("job.dry_run", false)
	v.SetDefault("simplify.headers", DefaultSimplifyHeaders)
	v.SetDefault("simplify.text_only", true)
	v.SetDefault("simplify.skip_attachments", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "mailsentry.db")
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Package settings loads toolchat's configuration from flags, environment,
// an optional config file and a .env file, in that order of precedence.
package settings

import (
	"os"
	"strings"
	"time"

	"github.com/martinemde/toolchat/unifiedllm"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	EnvPrefix = "toolchat"
)

// Settings is the resolved configuration of a toolchat run.
type Settings struct {
	Provider       string        `mapstructure:"provider"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max-tokens"`
	Temperature    float64       `mapstructure:"temperature"`
	APIKey         string        `mapstructure:"api-key"`
	BaseURL        string        `mapstructure:"base-url"`
	APIVersion     string        `mapstructure:"api-version"`
	SystemPrompt   string        `mapstructure:"system-prompt"`
	WorkingDir     string        `mapstructure:"working-dir"`
	MaxRetries     int           `mapstructure:"max-retries"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	MaxToolOutput  int           `mapstructure:"max-tool-output"`
	LoopWindow     int           `mapstructure:"loop-window"`

	Log Log `mapstructure:",squash"`
}

// Log configures the global zerolog logger.
type Log struct {
	Level      string `mapstructure:"log-level"`
	Format     string `mapstructure:"log-format"`
	File       string `mapstructure:"log-file"`
	WithCaller bool   `mapstructure:"with-caller"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderAnthropic)
	v.SetDefault("model", "")
	v.SetDefault("max-tokens", unifiedllm.DefaultAnthropicMaxTokens)
	v.SetDefault("temperature", -1.0)
	v.SetDefault("api-key", "")
	v.SetDefault("base-url", unifiedllm.DefaultAnthropicBaseURL)
	v.SetDefault("api-version", unifiedllm.DefaultAnthropicVersion)
	v.SetDefault("system-prompt", "")
	v.SetDefault("working-dir", "")
	v.SetDefault("max-retries", 0)
	v.SetDefault("request-timeout", time.Duration(0))
	v.SetDefault("max-tool-output", 0)
	v.SetDefault("loop-window", 6)
	v.SetDefault("log-level", "warn")
	v.SetDefault("log-format", "text")
	v.SetDefault("log-file", "")
	v.SetDefault("with-caller", false)
}

// AddFlags declares the command line flags for every key.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to config file (default ./config.yaml or ~/.toolchat/config.yaml)")
	fs.String("provider", ProviderAnthropic, "Model provider (anthropic, openai)")
	fs.String("model", "", "Model name (default: the provider's latest tool-capable model)")
	fs.Int("max-tokens", unifiedllm.DefaultAnthropicMaxTokens, "Maximum tokens per model turn")
	fs.Float64("temperature", -1, "Sampling temperature (negative keeps the provider default)")
	fs.String("api-key", "", "API key (default: ANTHROPIC_API_KEY or OPENAI_API_KEY)")
	fs.String("base-url", unifiedllm.DefaultAnthropicBaseURL, "Anthropic API base URL")
	fs.String("api-version", unifiedllm.DefaultAnthropicVersion, "Anthropic API version header")
	fs.String("system-prompt", "", "System prompt sent with every request")
	fs.String("working-dir", "", "Directory the file tools operate in (default: current directory)")
	fs.Int("max-retries", 0, "Retries for rate limits and server errors")
	fs.Duration("request-timeout", 0, "HTTP timeout per model request (0 disables)")
	fs.Int("max-tool-output", 0, "Truncate tool output longer than this many characters (0 disables)")
	fs.Int("loop-window", 6, "Warn when the last N tool calls repeat (0 disables)")

	fs.String("log-level", "warn", "Log level (debug, info, warn, error, fatal)")
	fs.String("log-format", "text", "Log format (json, text)")
	fs.String("log-file", "", "Log file (default: stderr)")
	fs.Bool("with-caller", false, "Log caller")
}

// Load reads the configuration into a Settings. configFile may be empty, in
// which case config.yaml is searched for in the usual places and a missing
// file is not an error.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.toolchat")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + "/toolchat")
		}
	}

	err := v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// no config file; flags, env and defaults still apply
	} else if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.APIKey == "" {
		if env := APIKeyEnv(s.Provider); env != "" {
			s.APIKey = os.Getenv(env)
		}
	}
	if s.Model == "" {
		if info := unifiedllm.GetLatestModel(s.Provider); info != nil {
			s.Model = info.ID
		}
	}

	log.Debug().
		Str("config", v.ConfigFileUsed()).
		Str("provider", s.Provider).
		Str("model", s.Model).
		Msg("Loaded configuration")
	return s, nil
}

// LoadDotEnv exports the variables of a dotenv file into the process
// environment. Variables that are already set win. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read %s", path)
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return errors.Wrapf(err, "export %s", name)
		}
	}
	return nil
}

// APIKeyEnv names the environment variable holding the provider's key.
func APIKeyEnv(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// TemperatureOverride returns the configured temperature, or nil when the
// provider default applies.
func (s *Settings) TemperatureOverride() *float64 {
	if s.Temperature < 0 {
		return nil
	}
	t := s.Temperature
	return &t
}

// Validate checks the settings before anything is wired.
func (s *Settings) Validate() error {
	switch s.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return errors.Errorf("unknown provider %q (want %s or %s)", s.Provider, ProviderAnthropic, ProviderOpenAI)
	}
	if s.Model == "" {
		return errors.New("model must be set")
	}
	if s.MaxTokens <= 0 {
		return errors.Errorf("max-tokens must be positive, got %d", s.MaxTokens)
	}
	if info := unifiedllm.GetModelInfo(s.Model); info != nil {
		if info.Provider != s.Provider {
			return errors.Errorf("model %q is served by %s, not %s", s.Model, info.Provider, s.Provider)
		}
		if s.MaxTokens > info.MaxOutput {
			return errors.Errorf("max-tokens %d exceeds the %d output tokens of %s", s.MaxTokens, info.MaxOutput, info.ID)
		}
	}
	if s.Temperature > 2 {
		return errors.Errorf("temperature must be at most 2, got %g", s.Temperature)
	}
	if s.MaxRetries < 0 {
		return errors.Errorf("max-retries must not be negative, got %d", s.MaxRetries)
	}
	if s.RequestTimeout < 0 {
		return errors.Errorf("request-timeout must not be negative, got %s", s.RequestTimeout)
	}
	if s.MaxToolOutput < 0 {
		return errors.Errorf("max-tool-output must not be negative, got %d", s.MaxToolOutput)
	}
	if s.LoopWindow < 0 {
		return errors.Errorf("loop-window must not be negative, got %d", s.LoopWindow)
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("unknown log format %q (want text or json)", s.Log.Format)
	}
	return nil
}

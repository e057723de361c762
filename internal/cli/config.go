package cli

import (
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable read by the CLI
const EnvPrefix = "SHEETFEED"

// Config holds all configuration for the command line tool.
type Config struct {
	// Auth selects the credentials used to sign requests.
	Auth AuthConfig `mapstructure:"auth"`
	// Feed configures the feed service client.
	Feed FeedConfig `mapstructure:"feed"`
	// Log holds configuration for the logger.
	Log LogConfig `mapstructure:"log"`
}

// AuthConfig holds credential settings.
type AuthConfig struct {
	// KeyFile is a service account JSON key. Empty falls back to
	// GOOGLE_APPLICATION_CREDENTIALS.
	KeyFile string `mapstructure:"keyfile" default:""`
}

// FeedConfig holds settings for the feed service client.
type FeedConfig struct {
	// BaseURL is the root of the feed service.
	BaseURL string `mapstructure:"base_url" default:"https://spreadsheets.google.com/feeds"`
	// ApplicationName is sent as the User-Agent.
	ApplicationName string `mapstructure:"application_name" default:"sheetfeed-cli"`
	// MaxBatchRetries bounds retries of partially failed bulk uploads.
	MaxBatchRetries int `mapstructure:"max_batch_retries" default:"3"`
	// TimeoutSeconds is the per-request HTTP timeout; 0 disables it.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"300"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is the minimum level logged (debug, info, warn, error).
	Level string `mapstructure:"level" default:"info"`
	// Format is "console" or "json".
	Format string `mapstructure:"format" default:"console"`
}

// LoadConfig loads configuration from the environment and an optional .env
// file in dir. Variables are SHEETFEED_<SECTION>_<KEY>, e.g.
// SHEETFEED_AUTH_KEYFILE.
func LoadConfig(dir string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	v := viper.New()
	bindValues(v, Config{}, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// bindValues registers every mapstructure key with its default tag so that
// AutomaticEnv can resolve it.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}
		v.SetDefault(key, field.Tag.Get("default"))
	}
}

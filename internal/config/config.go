package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"keyslookup/internal/lookup"
)

// ErrInvalid marks a config or derivation file that fails validation.
var ErrInvalid = eris.New("config: invalid")

const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Model    ModelConfig    `mapstructure:"model"`
}

type AppConfig struct {
	Name      string `mapstructure:"name" validate:"required"`
	Env       string `mapstructure:"env"`
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=json console"`
}

type ServerConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr" validate:"required"`
	MaxConns     int           `mapstructure:"max_conns" validate:"gte=0"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxBodyBytes caps an uploaded exposure file.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"gt=0"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns" validate:"gte=0"`
	Migrate  bool   `mapstructure:"migrate"`
}

// ModelConfig describes the model whose keys are served.
type ModelConfig struct {
	ID     string `mapstructure:"id" validate:"required"`
	Source string `mapstructure:"source" validate:"oneof=csv postgres"`
	// KeysDataPath is the reference-table directory for the csv source.
	KeysDataPath   string `mapstructure:"keys_data_path"`
	DerivationFile string `mapstructure:"derivation_file" validate:"required"`
	// Perils lists the OED peril codes the model supports, highest precedence first.
	Perils []string `mapstructure:"perils" validate:"required,min=1,dive,required"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "keyslookup")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.max_conns", 64)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.max_body_bytes", 256<<20)
	// keys without a default are invisible to env overrides on Unmarshal
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.migrate", false)
	v.SetDefault("model.id", "")
	v.SetDefault("model.source", SourceCSV)
	v.SetDefault("model.keys_data_path", "")
	v.SetDefault("model.derivation_file", "")
}

// Load reads the YAML file at path. Every key can be overridden from the
// environment with a KEYS_ prefix, e.g. KEYS_DATABASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("KEYS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks field rules and the source-specific settings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return eris.Wrapf(ErrInvalid, "%v", err)
	}
	switch c.Model.Source {
	case SourcePostgres:
		if c.Database.URL == "" {
			return eris.Wrap(ErrInvalid, "database.url is required for the postgres source")
		}
	case SourceCSV:
		if c.Model.KeysDataPath == "" {
			return eris.Wrap(ErrInvalid, "model.keys_data_path is required for the csv source")
		}
	}
	return nil
}

// PerilPrecedence numbers the configured perils from 1 in list order.
func (m ModelConfig) PerilPrecedence() map[string]int {
	out := make(map[string]int, len(m.Perils))
	for i, p := range m.Perils {
		p = strings.TrimSpace(p)
		if _, dup := out[p]; !dup {
			out[p] = i + 1
		}
	}
	return out
}

// Derivation file content: how raw exposure codes map to model codes.
type derivationFile struct {
	OccupancyScheme     string            `mapstructure:"occupancy_scheme" validate:"required"`
	CountryISOCodes     map[string]int    `mapstructure:"country_iso_codes" validate:"required,min=1"`
	OccupancyClassCodes map[string]string `mapstructure:"occupancy_class_codes" validate:"required"`
	GeogSchemes         map[string]string `mapstructure:"geog_schemes"`
}

// DefaultGeogSchemes applies when the derivation file names none.
var DefaultGeogSchemes = map[string]string{
	"IFSTA": "STATE",
	"IFDIS": "DISTRICT",
	"CRL":   "CRESTAZONE",
	"CRH":   "CRESTASUBZONE",
}

// LoadDerivation reads the JSON field-derivation file.
func LoadDerivation(path string) (lookup.Derivation, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return lookup.Derivation{}, eris.Wrap(err, "config: read derivation")
	}

	var f derivationFile
	if err := v.Unmarshal(&f); err != nil {
		return lookup.Derivation{}, eris.Wrap(err, "config: unmarshal derivation")
	}
	if err := validator.New().Struct(f); err != nil {
		return lookup.Derivation{}, eris.Wrapf(ErrInvalid, "derivation: %v", err)
	}
	if _, ok := findFold(f.OccupancyClassCodes, lookup.OtherwiseKey); !ok {
		return lookup.Derivation{}, eris.Wrapf(ErrInvalid, "derivation: occupancy_class_codes needs an %q entry", lookup.OtherwiseKey)
	}
	if len(f.GeogSchemes) == 0 {
		f.GeogSchemes = DefaultGeogSchemes
	}

	return lookup.Derivation{
		OccupancyScheme:     f.OccupancyScheme,
		CountryISOCodes:     f.CountryISOCodes,
		OccupancyClassCodes: f.OccupancyClassCodes,
		GeogSchemes:         f.GeogSchemes,
	}, nil
}

func findFold(m map[string]string, key string) (string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

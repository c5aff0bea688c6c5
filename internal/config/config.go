// Package config loads gateway configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	APIVersion string `env:"API_VERSION" envDefault:"1"`

	JWTSecret        string   `env:"JWT_SECRET"`
	AESKey           string   `env:"AES_KEY"`
	AllowedPlatforms []string `env:"ALLOWED_PLATFORMS" envDefault:"openai,googlecloud" envSeparator:","`
	ForcePlatform    string   `env:"FORCE_PLATFORM"`
	TenantsFile      string   `env:"TENANTS_FILE" envDefault:"tenants-ua.json"`

	DBPath         string   `env:"DB" envDefault:"aiconnect.db"`
	TenantDBDir    string   `env:"TENANT_DB_DIR" envDefault:"tenants"`
	TenantDBPrefix string   `env:"TENANT_DB_PREFIX" envDefault:"aiconnect"`
	TenantCodes    []string `env:"TENANT_CODES" envSeparator:","`

	Nucleus NucleusConfig `envPrefix:"NUCLEUS_"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisUsername string        `env:"REDIS_USERNAME"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"24h"`

	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"60s"`

	OpenAI      OpenAIConfig      `envPrefix:"OPENAI_"`
	GoogleCloud GoogleCloudConfig `envPrefix:"GOOGLECLOUD_"`

	AudioFormat    string `env:"AUDIO_FORMAT" envDefault:"mp3"`
	AudioDir       string `env:"AUDIO_DIR" envDefault:"uploads"`
	AudioPublicURL string `env:"AUDIO_PUBLIC_URL" envDefault:"/v1/audio"`

	Version VersionConfig
}

type NucleusConfig struct {
	URL      string `env:"URL"`
	LoginID  string `env:"LOGIN_ID"`
	Password string `env:"PASSWORD"`
}

type OpenAIConfig struct {
	BaseURL         string   `env:"BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model           string   `env:"MODEL" envDefault:"gpt-4o-mini"`
	TTSModel        string   `env:"TTS_MODEL" envDefault:"tts-1"`
	TranscribeModel string   `env:"TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	Voices          []string `env:"VOICES" envDefault:"alloy,echo,fable,onyx,nova,shimmer" envSeparator:","`
}

type GoogleCloudConfig struct {
	Model    string `env:"MODEL" envDefault:"gemini-1.5-flash"`
	Location string `env:"LOCATION" envDefault:"us-central1"`
}

type VersionConfig struct {
	ReleaseVersion string `env:"BUILD_NUMBER"`
	ReleaseDate    string `env:"RELEASE_DATE"`
	Name           string `env:"NAME" envDefault:"aiconnect"`
}

// Load parses AICONNECT_* environment variables.
func Load() (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: "AICONNECT_"})
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.AllowedPlatforms = trimAll(c.AllowedPlatforms)
	c.TenantCodes = trimAll(c.TenantCodes)
	c.OpenAI.Voices = trimAll(c.OpenAI.Voices)
	c.AudioPublicURL = strings.TrimRight(c.AudioPublicURL, "/")
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIVersion) == "" {
		errs = append(errs, errors.New("AICONNECT_API_VERSION must not be empty"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("AICONNECT_CACHE_TTL must be positive"))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("AICONNECT_PROVIDER_TIMEOUT must be positive"))
	}
	if c.Nucleus.URL != "" && (c.Nucleus.LoginID == "" || c.Nucleus.Password == "") {
		errs = append(errs, errors.New("AICONNECT_NUCLEUS_LOGIN_ID and AICONNECT_NUCLEUS_PASSWORD are required with AICONNECT_NUCLEUS_URL"))
	}
	return errors.Join(errs...)
}

// PlatformAllowed reports whether platform is in the allow-list, ignoring case.
func (c *Config) PlatformAllowed(platform string) bool {
	return slices.ContainsFunc(c.AllowedPlatforms, func(p string) bool {
		return strings.EqualFold(p, platform)
	})
}

// VoiceAllowed reports whether voice is one of the configured OpenAI voices.
func (c *Config) VoiceAllowed(voice string) bool {
	return slices.Contains(c.OpenAI.Voices, voice)
}

// RoutePrefix returns the versioned route prefix, e.g. "/v1".
func (c *Config) RoutePrefix() string {
	return "/v" + strings.TrimPrefix(strings.TrimSpace(c.APIVersion), "v")
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Default returns the configuration with every default applied.
func Default() *Config {
	cfg, _ := env.ParseAsWithOptions[Config](env.Options{
		Prefix:      "AICONNECT_",
		Environment: map[string]string{},
	})
	cfg.normalize()
	return &cfg
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config handles application configuration loading from environment
// variables. The resulting Config is built once in main and passed by value
// or pointer into every component; nothing reads the environment later.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// OAuthApp holds the client registration for one OAuth-capable destination.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Configured reports whether the app has both halves of its client credentials.
func (a OAuthApp) Configured() bool {
	return a.ClientID != "" && a.ClientSecret != ""
}

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache, OAuth state, deferred job queue)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// S3-compatible object storage used to expose media at public URLs.
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BucketPublic string
	S3PublicURL    string

	// Local files
	UploadDir     string // where the web layer stores media; slideshows go here too
	TokenDir      string // one <destination>.json credential file per destination
	PublicBaseURL string // base URL the upload dir is served under when S3 is off

	// Scheduling
	Timezone     string // reference zone for scheduled wall-clock times
	QueueBackend string // "memory" or "redis"
	QueuePoll    time.Duration

	// Publishing
	HTTPTimeout        time.Duration
	DestinationTimeout time.Duration
	PollInterval       time.Duration
	PollMaxAttempts    int
	Concurrency        int
	SubmitRatePerMin   int // 0 disables the POST /posts limiter
	TokenWarnLead      time.Duration
	MaintainInterval   time.Duration

	// Slideshow
	SlideSeconds   float64
	SlideAudioPath string
	FFmpegPath     string
	SlideTimeout   time.Duration

	// Destinations
	Twitter  OAuthApp
	Meta     OAuthApp
	YouTube  OAuthApp
	LinkedIn OAuthApp
	TikTok   OAuthApp

	GraphVersion string

	// Destination account identifiers and long-lived tokens used to seed
	// credential files that do not exist yet.
	MetaPageID       string
	MetaPageToken    string
	InstagramID      string
	InstagramToken   string
	LinkedInOrgID    string
	TikTokBusinessID string
	WebsiteURL       string
	WebsiteUser      string
	WebsitePassword  string

	// API base URLs, overridable for staging and tests.
	TwitterBaseURL  string
	GraphBaseURL    string
	YouTubeBaseURL  string
	LinkedInBaseURL string
	TikTokBaseURL   string
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode or if a numeric value does not parse.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "crosspost"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "crosspost"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Region:       envOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3BucketPublic: envOrDefault("S3_BUCKET_PUBLIC", "crosspost-public"),
		S3PublicURL:    os.Getenv("S3_PUBLIC_URL"),

		UploadDir:     envOrDefault("UPLOAD_DIR", "uploads"),
		TokenDir:      envOrDefault("TOKEN_DIR", "tokens"),
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),

		Timezone:     envOrDefault("TIMEZONE", "UTC"),
		QueueBackend: envOrDefault("QUEUE_BACKEND", "memory"),
		QueuePoll:    p.seconds("QUEUE_POLL_SECONDS", 5),

		HTTPTimeout:        p.seconds("HTTP_TIMEOUT_SECONDS", 60),
		DestinationTimeout: p.seconds("DESTINATION_TIMEOUT_SECONDS", 600),
		PollInterval:       p.seconds("POLL_INTERVAL_SECONDS", 3),
		PollMaxAttempts:    p.integer("POLL_MAX_ATTEMPTS", 40),
		Concurrency:        p.integer("PUBLISH_CONCURRENCY", 7),
		SubmitRatePerMin:   p.integer("SUBMIT_RATE_PER_MINUTE", 30),
		TokenWarnLead:      time.Duration(p.integer("TOKEN_WARN_DAYS", 30)) * 24 * time.Hour,
		MaintainInterval:   time.Duration(p.integer("TOKEN_MAINTAIN_MINUTES", 30)) * time.Minute,

		SlideSeconds:   p.float("SLIDESHOW_SECONDS_PER_IMAGE", 2),
		SlideAudioPath: os.Getenv("SLIDESHOW_AUDIO"),
		FFmpegPath:     envOrDefault("FFMPEG_PATH", "ffmpeg"),
		SlideTimeout:   p.seconds("SLIDESHOW_TIMEOUT_SECONDS", 300),

		Twitter:  oauthApp("TWITTER"),
		Meta:     OAuthApp{ClientID: os.Getenv("FB_APP_ID"), ClientSecret: os.Getenv("FB_APP_SECRET")},
		YouTube:  oauthApp("YOUTUBE"),
		LinkedIn: oauthApp("LINKEDIN"),
		TikTok: OAuthApp{
			ClientID:     os.Getenv("TIKTOK_CLIENT_KEY"),
			ClientSecret: os.Getenv("TIKTOK_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("TIKTOK_REDIRECT_URI"),
		},

		GraphVersion: envOrDefault("GRAPH_API_VERSION", "v19.0"),

		MetaPageID:       os.Getenv("FB_PAGE_ID"),
		MetaPageToken:    os.Getenv("FB_PAGE_ACCESS_TOKEN"),
		InstagramID:      os.Getenv("INSTAGRAM_BUSINESS_ID"),
		InstagramToken:   os.Getenv("INSTAGRAM_ACCESS_TOKEN"),
		LinkedInOrgID:    os.Getenv("LINKEDIN_ORGANIZATION_ID"),
		TikTokBusinessID: os.Getenv("TIKTOK_BUSINESS_ID"),
		WebsiteURL:       os.Getenv("WEBSITE_URL"),
		WebsiteUser:      os.Getenv("WEBSITE_USER"),
		WebsitePassword:  os.Getenv("WEBSITE_APP_PASSWORD"),

		TwitterBaseURL:  envOrDefault("TWITTER_BASE_URL", "https://api.x.com"),
		GraphBaseURL:    envOrDefault("GRAPH_BASE_URL", "https://graph.facebook.com"),
		YouTubeBaseURL:  envOrDefault("YOUTUBE_BASE_URL", "https://www.googleapis.com"),
		LinkedInBaseURL: envOrDefault("LINKEDIN_BASE_URL", "https://api.linkedin.com"),
		TikTokBaseURL:   envOrDefault("TIKTOK_BASE_URL", "https://business-api.tiktokglobalshop.com"),
	}

	if p.err != nil {
		return nil, p.err
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", cfg.Timezone, err)
	}
	if cfg.QueueBackend != "memory" && cfg.QueueBackend != "redis" {
		return nil, fmt.Errorf("QUEUE_BACKEND must be \"memory\" or \"redis\", got %q", cfg.QueueBackend)
	}
	if cfg.SlideSeconds <= 0 {
		return nil, fmt.Errorf("SLIDESHOW_SECONDS_PER_IMAGE must be > 0")
	}
	if cfg.PollMaxAttempts <= 0 || cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS and PUBLISH_CONCURRENCY must be > 0")
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.PublicBaseURL == "" && !cfg.S3Enabled() {
			return nil, fmt.Errorf("PUBLIC_BASE_URL or S3 storage must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// S3Enabled reports whether object storage credentials are present.
func (c *Config) S3Enabled() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// Location returns the reference time zone for scheduled posts.
// Load has already validated the name, so the UTC fallback is unreachable
// for a Config produced by Load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func oauthApp(prefix string) OAuthApp {
	return OAuthApp{
		ClientID:     os.Getenv(prefix + "_CLIENT_ID"),
		ClientSecret: os.Getenv(prefix + "_CLIENT_SECRET"),
		RedirectURI:  os.Getenv(prefix + "_REDIRECT_URI"),
	}
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parser collects the first numeric parse error so Load can report it
// without checking after every field.
type parser struct {
	err error
}

func (p *parser) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid number for env %s: %q", key, v)
	}
	return f
}

func (p *parser) seconds(key string, def int) time.Duration {
	return time.Duration(p.integer(key, def)) * time.Second
}

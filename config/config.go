package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingToken is returned by LoadConfig when DISCORD_TOKEN is not set.
var ErrMissingToken = errors.New("discord token (DISCORD_TOKEN) is required")

// Search modes understood by the stream resolver
const (
	SearchModeYTSearch = "ytsearch"
	SearchModeYTMusic  = "ytmusic"
	SearchModeYouTube  = "youtube"
	SearchModeAPI      = "api"
)

// Config holds all application configuration
type Config struct {
	Discord  DiscordConfig  `json:"discord"`
	Spotify  SpotifyConfig  `json:"spotify"`
	Resolver ResolverConfig `json:"resolver"`
	YouTube  YouTubeConfig  `json:"youtube"`
	Playback PlaybackConfig `json:"playback"`
	Audio    AudioConfig    `json:"audio"`
	Logging  LoggingConfig  `json:"logging"`
	Features FeatureConfig  `json:"features"`
}

// DiscordConfig holds Discord-specific configuration
type DiscordConfig struct {
	Token   string `json:"token" env:"DISCORD_TOKEN"`
	GuildID string `json:"guild_id" env:"DISCORD_GUILD_ID"`
	Status  string `json:"status" env:"DISCORD_STATUS"`
}

// SpotifyConfig holds the playlist-metadata credentials. All fields are optional;
// without credentials the playlist loader is disabled.
type SpotifyConfig struct {
	ClientID     string `json:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `json:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	PlaylistID   string `json:"playlist_id" env:"SPOTIFY_PLAYLIST_ID"`
	PageSize     int    `json:"page_size" env:"SPOTIFY_PAGE_SIZE"`
}

// ResolverConfig holds stream resolution configuration
type ResolverConfig struct {
	SearchMode     string `json:"search_mode" env:"RESOLVER_SEARCH_MODE"`
	Format         string `json:"format" env:"RESOLVER_FORMAT"`
	Proxy          string `json:"proxy" env:"RESOLVER_PROXY"`
	EnableFallback bool   `json:"enable_fallback" env:"RESOLVER_ENABLE_FALLBACK"`
	Executable     string `json:"executable" env:"YTDLP_PATH"`
}

// YouTubeConfig holds YouTube Data API configuration
type YouTubeConfig struct {
	APIKey           string `json:"api_key" env:"YT_TOKEN"`
	MaxSearchResults int64  `json:"max_search_results" env:"YT_MAX_SEARCH_RESULTS"`
}

// PlaybackConfig holds scheduler and loader tuning
type PlaybackConfig struct {
	Interval          time.Duration `json:"interval" env:"PLAYBACK_INTERVAL"`
	DefaultVolume     float64       `json:"default_volume" env:"DEFAULT_VOLUME"`
	LoaderConcurrency int           `json:"loader_concurrency" env:"LOADER_CONCURRENCY"`
	LoaderRate        float64       `json:"loader_rate" env:"LOADER_RATE_PER_SECOND"`
	LoaderBurst       int           `json:"loader_burst" env:"LOADER_RATE_BURST"`
	HistorySize       int           `json:"history_size" env:"HISTORY_SIZE"`
	HistoryMaxAge     time.Duration `json:"history_max_age" env:"HISTORY_MAX_AGE"`
}

// AudioConfig holds audio processing configuration
type AudioConfig struct {
	Bitrate          int           `json:"bitrate" env:"AUDIO_BITRATE"`
	FrameRate        int           `json:"frame_rate" env:"AUDIO_FRAME_RATE"`
	FrameDuration    int           `json:"frame_duration" env:"AUDIO_FRAME_DURATION"`
	CompressionLevel int           `json:"compression_level" env:"AUDIO_COMPRESSION_LEVEL"`
	PacketLoss       int           `json:"packet_loss" env:"AUDIO_PACKET_LOSS"`
	BufferedFrames   int           `json:"buffered_frames" env:"AUDIO_BUFFERED_FRAMES"`
	EnableVBR        bool          `json:"enable_vbr" env:"AUDIO_VBR"`
	ConnectTimeout   time.Duration `json:"connect_timeout" env:"VOICE_CONNECT_TIMEOUT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `json:"level" env:"LOG_LEVEL"`
	Debug            bool   `json:"debug" env:"DEBUG"`
	OutputFile       string `json:"output_file" env:"LOG_FILE"`
	MaxFileSize      int64  `json:"max_file_size" env:"LOG_MAX_FILE_SIZE"`
	MaxBackups       int    `json:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAge           int    `json:"max_age" env:"LOG_MAX_AGE"`
	EnableConsole    bool   `json:"enable_console" env:"LOG_CONSOLE"`
	EnableFile       bool   `json:"enable_file" env:"LOG_TO_FILE"`
	EnableJSON       bool   `json:"enable_json" env:"LOG_JSON"`
	EnableStackTrace bool   `json:"enable_stack_trace" env:"LOG_STACK_TRACE"`
}

// FeatureConfig holds feature flags
type FeatureConfig struct {
	EnableMetrics         bool `json:"enable_metrics" env:"ENABLE_METRICS"`
	EnableDependencyCheck bool `json:"enable_dependency_check" env:"ENABLE_DEPENDENCY_CHECK"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			Status: "Music 24/7",
		},
		Spotify: SpotifyConfig{
			PageSize: 100,
		},
		Resolver: ResolverConfig{
			SearchMode:     SearchModeYTSearch,
			Format:         "bestaudio/best",
			EnableFallback: true,
		},
		YouTube: YouTubeConfig{
			MaxSearchResults: 5,
		},
		Playback: PlaybackConfig{
			Interval:          10 * time.Second,
			DefaultVolume:     0.5,
			LoaderConcurrency: 4,
			LoaderRate:        4,
			LoaderBurst:       10,
			HistorySize:       20,
			HistoryMaxAge:     24 * time.Hour,
		},
		Audio: AudioConfig{
			Bitrate:          128,
			FrameRate:        48000,
			FrameDuration:    20,
			CompressionLevel: 10,
			PacketLoss:       1,
			BufferedFrames:   200,
			EnableVBR:        true,
			ConnectTimeout:   10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:            "INFO",
			OutputFile:       "logs/loopmuse.log",
			MaxFileSize:      50 * 1024 * 1024, // 50MB
			MaxBackups:       5,
			MaxAge:           30,
			EnableConsole:    true,
			EnableFile:       false,
			EnableJSON:       false,
			EnableStackTrace: true,
		},
		Features: FeatureConfig{
			EnableMetrics:         false,
			EnableDependencyCheck: true,
		},
	}
}

// LoadConfig loads configuration from an optional .env file and the environment
func LoadConfig() (*Config, error) {
	// .env is optional, real environment variables win
	_ = godotenv.Load()

	config := DefaultConfig()
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// The spotipy names take precedence, matching how existing deployments are configured
	if id := os.Getenv("SPOTIPY_CLIENT_ID"); id != "" {
		config.Spotify.ClientID = id
	}
	if secret := os.Getenv("SPOTIPY_CLIENT_SECRET"); secret != "" {
		config.Spotify.ClientSecret = secret
	}

	if config.Logging.Debug {
		config.Logging.Level = "DEBUG"
	}
	config.Logging.Level = strings.ToUpper(config.Logging.Level)
	config.Resolver.SearchMode = strings.ToLower(config.Resolver.SearchMode)

	if config.Discord.Token == "" {
		return nil, ErrMissingToken
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errors []string

	if c.Discord.Token == "" {
		errors = append(errors, ErrMissingToken.Error())
	}

	validModes := []string{SearchModeYTSearch, SearchModeYTMusic, SearchModeYouTube, SearchModeAPI}
	if !contains(validModes, c.Resolver.SearchMode) {
		errors = append(errors, fmt.Sprintf("resolver search mode must be one of: %s", strings.Join(validModes, ", ")))
	}

	if c.Resolver.SearchMode == SearchModeAPI && c.YouTube.APIKey == "" {
		errors = append(errors, "YouTube API key (YT_TOKEN) is required for the api search mode")
	}

	if c.Playback.Interval <= 0 {
		errors = append(errors, "playback interval must be greater than 0")
	}

	if c.Playback.DefaultVolume < 0 || c.Playback.DefaultVolume > 1 {
		errors = append(errors, "default volume must be between 0.0 and 1.0")
	}

	if c.Playback.LoaderConcurrency <= 0 {
		errors = append(errors, "loader concurrency must be greater than 0")
	}

	if c.Playback.LoaderRate <= 0 || c.Playback.LoaderBurst <= 0 {
		errors = append(errors, "loader rate and burst must be greater than 0")
	}

	if c.Spotify.PageSize < 1 || c.Spotify.PageSize > 100 {
		errors = append(errors, "spotify page size must be between 1 and 100")
	}

	if c.Audio.Bitrate < 32 || c.Audio.Bitrate > 320 {
		errors = append(errors, "audio bitrate must be between 32 and 320 kbps")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLogLevels, c.Logging.Level) {
		errors = append(errors, fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// Warnings lists optional settings that are missing. None of them stop the bot.
func (c *Config) Warnings() []string {
	var warnings []string
	if !c.SpotifyEnabled() {
		warnings = append(warnings, "Spotify API credentials not found, playlist loading is disabled")
	}
	if c.Spotify.PlaylistID == "" {
		warnings = append(warnings, "SPOTIFY_PLAYLIST_ID is not set, the queue cannot be filled")
	}
	return warnings
}

// SpotifyEnabled reports whether both Spotify credentials are present
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// contains checks if a string slice contains a value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// GetRedactedToken returns a redacted version of the token for logging
func (c *Config) GetRedactedToken() string {
	return redact(c.Discord.Token)
}

// GetRedactedAPIKey returns a redacted version of the API key for logging
func (c *Config) GetRedactedAPIKey() string {
	return redact(c.YouTube.APIKey)
}

// GetRedactedSpotifyID returns a redacted version of the Spotify client id for logging
func (c *Config) GetRedactedSpotifyID() string {
	return redact(c.Spotify.ClientID)
}

func redact(secret string) string {
	if len(secret) < 8 {
		return "***"
	}
	return secret[:8] + "***"
}

package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/weiawesome/duwdu-messenger/pkg/config"
	"github.com/weiawesome/duwdu-messenger/pkg/storage"
)

// Config holds all configuration for the messenger client.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	ChatService ChatServiceConfig `mapstructure:"chat_service"`
	Session     SessionConfig     `mapstructure:"session"`
	Thread      ThreadConfig      `mapstructure:"thread"`
	Search      SearchConfig      `mapstructure:"search"`
	Media       MediaConfig       `mapstructure:"media"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Push        PushConfig        `mapstructure:"push"`
	WebSocket   WebSocketConfig   `mapstructure:"websocket"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig is the local UI API listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ChatServiceConfig locates the remote Chat Service resources.
type ChatServiceConfig struct {
	AuthURL     string        `mapstructure:"auth_url"`
	ChatsURL    string        `mapstructure:"chats_url"`
	MessagesURL string        `mapstructure:"messages_url"`
	UsersURL    string        `mapstructure:"users_url"`
	UploadURL   string        `mapstructure:"upload_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SessionConfig selects where the logged-in identity is persisted.
type SessionConfig struct {
	Driver string             `mapstructure:"driver"` // "file", "pebble", "redis" or "memory"
	File   SessionFileConfig  `mapstructure:"file"`
	Pebble SessionFileConfig  `mapstructure:"pebble"`
	Redis  SessionRedisConfig `mapstructure:"redis"`
}

// SessionFileConfig holds a directory for file-backed stores.
type SessionFileConfig struct {
	Dir string `mapstructure:"dir"`
}

// SessionRedisConfig holds Redis session store configuration.
type SessionRedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ThreadConfig tunes message polling.
type ThreadConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// SearchConfig tunes the search box.
type SearchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// MediaConfig selects how attachments are uploaded.
type MediaConfig struct {
	Uploader       string `mapstructure:"uploader"` // "http" or "storage"
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	AvatarSize     int    `mapstructure:"avatar_size"`
}

// StorageConfig holds the direct-upload object store configuration.
type StorageConfig struct {
	Type  string              `mapstructure:"type"` // "local" or "s3"
	Local storage.LocalConfig `mapstructure:"local"`
	S3    storage.S3Config    `mapstructure:"s3"`
}

// PushConfig enables push nudges for the message thread.
type PushConfig struct {
	Driver string             `mapstructure:"driver"` // "none" or "redis"
	Redis  SessionRedisConfig `mapstructure:"redis"`
}

// WebSocketConfig tunes the state feed connections.
type WebSocketConfig struct {
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from an optional file and the environment.
func Load(configFile string) (*Config, error) {
	v, err := pkgconfig.Load(configFile, "duwdu")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8790)
	// Empty defaults make the keys visible to AutomaticEnv on Unmarshal.
	for _, key := range []string{"auth_url", "chats_url", "messages_url", "users_url", "upload_url"} {
		v.SetDefault("chat_service."+key, "")
	}
	v.SetDefault("chat_service.timeout", "10s")
	v.SetDefault("session.driver", "file")
	v.SetDefault("session.file.dir", defaultDataDir())
	v.SetDefault("session.pebble.dir", defaultDataDir()+"/pebble")
	v.SetDefault("session.redis.address", "localhost:6379")
	v.SetDefault("session.redis.key_prefix", "duwdu:")
	v.SetDefault("thread.poll_interval", "2s")
	v.SetDefault("search.debounce", "300ms")
	v.SetDefault("media.uploader", "http")
	v.SetDefault("media.max_upload_bytes", 20<<20)
	v.SetDefault("media.avatar_size", 512)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.base_path", defaultDataDir()+"/media")
	v.SetDefault("storage.local.public_url", "http://127.0.0.1:8790/media")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.use_path_style", true)
	v.SetDefault("push.driver", "none")
	v.SetDefault("push.redis.address", "localhost:6379")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.ping_interval", "54s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("log.level", "info")

	// Shorthand env names alongside the DUWDU_ prefixed ones.
	_ = v.BindEnv("server.port", "DUWDU_PORT", "PORT")
	_ = v.BindEnv("session.redis.address", "DUWDU_SESSION_REDIS_ADDRESS", "REDIS_ADDRESS")
	_ = v.BindEnv("session.redis.password", "DUWDU_SESSION_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("storage.s3.endpoint", "DUWDU_STORAGE_S3_ENDPOINT", "S3_ENDPOINT")
	_ = v.BindEnv("storage.s3.bucket", "DUWDU_STORAGE_S3_BUCKET", "S3_BUCKET")
	_ = v.BindEnv("storage.s3.access_key_id", "DUWDU_STORAGE_S3_ACCESS_KEY_ID", "S3_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.s3.secret_access_key", "DUWDU_STORAGE_S3_SECRET_ACCESS_KEY", "S3_SECRET_ACCESS_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the client cannot run without.
func (c *Config) Validate() error {
	missing := []string{}
	for name, url := range map[string]string{
		"chat_service.auth_url":     c.ChatService.AuthURL,
		"chat_service.chats_url":    c.ChatService.ChatsURL,
		"chat_service.messages_url": c.ChatService.MessagesURL,
		"chat_service.users_url":    c.ChatService.UsersURL,
	} {
		if strings.TrimSpace(url) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(sortStrings(missing), ", "))
	}
	if c.Media.Uploader == "http" && c.ChatService.UploadURL == "" {
		return fmt.Errorf("chat_service.upload_url is required when media.uploader is http")
	}
	if c.Thread.PollInterval <= 0 {
		return fmt.Errorf("thread.poll_interval must be positive")
	}
	if c.Search.Debounce < 0 {
		return fmt.Errorf("search.debounce must not be negative")
	}
	return nil
}

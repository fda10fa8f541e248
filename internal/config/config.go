package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Voice    VoiceConfig
	Tools    ToolsConfig
	Activity ActivityConfig
	Cache    CacheConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	RelayLogFilePath   string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	InstanceID         string
}

type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	Connection string
}

type AuthConfig struct {
	JWTSecret string
}

// VoiceConfig holds the upstream conversational-voice vendor settings.
type VoiceConfig struct {
	ElevenLabsAPIKey  string
	SignedURLEndpoint string
	AgentIDPrefix     string
	DefaultVoiceID    string
	InitiationDelay   time.Duration
	MaxFrameBytes     int64
	HandshakeTimeout  time.Duration
}

type ToolsConfig struct {
	ProfileFactsURL   string
	SessionSummaryURL string
	ServiceKey        string
	Timeout           time.Duration
	MaxInFlight       int64
}

type ActivityConfig struct {
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

type CacheConfig struct {
	CoachTTL time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	hostname, _ := os.Hostname()

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			RelayLogFilePath:   getEnv("RELAY_LOG_FILE_PATH", "logs/voice_relay.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			InstanceID:         getEnv("INSTANCE_ID", hostname),
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Voice: VoiceConfig{
			ElevenLabsAPIKey:  getEnv("ELEVENLABS_API_KEY", ""),
			SignedURLEndpoint: getEnv("ELEVENLABS_SIGNED_URL_ENDPOINT", "https://api.elevenlabs.io/v1/convai/conversation/get-signed-url"),
			AgentIDPrefix:     getEnv("ELEVENLABS_AGENT_PREFIX", "agent_"),
			DefaultVoiceID:    getEnv("DEFAULT_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
			InitiationDelay:   getEnvAsDuration("VOICE_INITIATION_DELAY", 500*time.Millisecond),
			MaxFrameBytes:     int64(getEnvAsInt("VOICE_MAX_FRAME_BYTES", 1<<20)),
			HandshakeTimeout:  getEnvAsDuration("VOICE_HANDSHAKE_TIMEOUT", 10*time.Second),
		},
		Tools: ToolsConfig{
			ProfileFactsURL:   getEnv("TOOL_PROFILE_FACTS_URL", ""),
			SessionSummaryURL: getEnv("TOOL_SESSION_SUMMARY_URL", ""),
			ServiceKey:        getEnv("TOOL_SERVICE_KEY", ""),
			Timeout:           getEnvAsDuration("TOOL_TIMEOUT", 15*time.Second),
			MaxInFlight:       int64(getEnvAsInt("TOOL_MAX_IN_FLIGHT", 4)),
		},
		Activity: ActivityConfig{
			FlushInterval: getEnvAsDuration("ACTIVITY_FLUSH_INTERVAL", 30*time.Second),
			WriteTimeout:  getEnvAsDuration("ACTIVITY_WRITE_TIMEOUT", 5*time.Second),
		},
		Cache: CacheConfig{
			CoachTTL: getEnvAsDuration("COACH_CACHE_TTL", 5*time.Minute),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("30s", "500ms").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil && value >= 0 {
		return value
	}
	return fallback
}

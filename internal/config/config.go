package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
)

// Model holds settings for the chat-completions capability.
type Model struct {
	// APIKey authenticates model requests.
	APIKey string `env:"OPENAI_API_KEY,required,notEmpty"`
	// BaseURL overrides the API endpoint.
	BaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	// Name is the model identifier.
	Name string `env:"TUTOR_MODEL" envDefault:"gpt-4o-mini"`
}

// Server stores environment-driven settings for the tool server.
type Server struct {
	Model Model
	// ModelTimeout bounds a single model request issued by a handler.
	ModelTimeout time.Duration `env:"TUTOR_MODEL_TIMEOUT" envDefault:"120s"`
	// NewsAPIKey enables the newsletter tool; empty leaves it degraded.
	NewsAPIKey string `env:"NEWSAPI_KEY"`
	// NewsBaseURL overrides the news endpoint.
	NewsBaseURL string `env:"NEWSAPI_BASE_URL" envDefault:"https://newsapi.org/v2"`
	// NewsTimeout bounds a single news request.
	NewsTimeout time.Duration `env:"TUTOR_NEWS_TIMEOUT" envDefault:"10s"`
	// NewsRatePerMinute paces news requests.
	NewsRatePerMinute int `env:"TUTOR_NEWS_RATE_PER_MINUTE" envDefault:"60"`
	// CatalogPath points to a YAML tool catalog; empty uses the embedded one.
	CatalogPath string `env:"TUTOR_CATALOG"`
	// LogLevel sets the logger level.
	LogLevel string `env:"TUTOR_LOG_LEVEL" envDefault:"info"`
	// ShutdownTimeout controls graceful shutdown duration.
	ShutdownTimeout time.Duration `env:"TUTOR_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Client stores environment-driven settings for the chat client.
type Client struct {
	Model Model
	// ServerCommand starts the tool server process.
	ServerCommand string `env:"TUTOR_SERVER_COMMAND" envDefault:"tutor-mcp-server"`
	// CallTimeout bounds each model call and each tool round-trip. Catalog tool
	// timeouts stay below it so the server's timeout result reaches the client.
	CallTimeout time.Duration `env:"TUTOR_CALL_TIMEOUT" envDefault:"120s"`
	// SessionTimeout bounds one user turn including all tool rounds.
	SessionTimeout time.Duration `env:"TUTOR_SESSION_TIMEOUT" envDefault:"5m"`
	// MaxRounds bounds tool-call rounds per user turn.
	MaxRounds int `env:"TUTOR_MAX_ROUNDS" envDefault:"10"`
	// CallRetries is how many times a timed-out call is retried.
	CallRetries int `env:"TUTOR_CALL_RETRIES" envDefault:"1"`
	// LogLevel sets the logger level.
	LogLevel string `env:"TUTOR_LOG_LEVEL" envDefault:"warn"`
}

// LoadServer parses environment variables into Server.
func LoadServer() (Server, error) {
	cfg, err := env.ParseAs[Server]()
	if err != nil {
		return Server{}, errorsx.Wrap(err, errorsx.KindConfiguration)
	}
	if cfg.ModelTimeout <= 0 || cfg.NewsTimeout <= 0 {
		return Server{}, errorsx.New(errorsx.KindConfiguration, "TUTOR_MODEL_TIMEOUT and TUTOR_NEWS_TIMEOUT must be positive")
	}
	return cfg, nil
}

// LoadClient parses environment variables into Client.
func LoadClient() (Client, error) {
	cfg, err := env.ParseAs[Client]()
	if err != nil {
		return Client{}, errorsx.Wrap(err, errorsx.KindConfiguration)
	}
	if cfg.CallTimeout <= 0 || cfg.SessionTimeout <= 0 {
		return Client{}, errorsx.New(errorsx.KindConfiguration, "TUTOR_CALL_TIMEOUT and TUTOR_SESSION_TIMEOUT must be positive")
	}
	if cfg.MaxRounds < 1 {
		return Client{}, errorsx.New(errorsx.KindConfiguration, "TUTOR_MAX_ROUNDS must be at least 1")
	}
	if cfg.CallRetries < 0 {
		cfg.CallRetries = 0
	}
	return cfg, nil
}

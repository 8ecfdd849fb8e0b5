// Package config loads application configuration from a .env file and the
// process environment. A local .env is loaded first (if present) so the
// environment variables it defines are visible to viper's bindings.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Model    ModelConfig
	Database DatabaseConfig
	Agent    AgentConfig
	Server   ServerConfig
	Log      LogConfig
}

// ModelConfig configures the model provider and deployment.
type ModelConfig struct {
	// Provider selects the adapter: "openai", "anthropic" or "mock".
	Provider string
	// DeploymentName is the model deployment (or model id) to call.
	DeploymentName string
	// ProjectEndpoint is the OpenAI-compatible endpoint for the deployment.
	// Empty uses the provider's public API.
	ProjectEndpoint string
	APIKey          string

	Temperature         float64
	TopP                float64
	MaxCompletionTokens int64
	MaxPromptTokens     int64
}

// DatabaseConfig configures the sales database.
type DatabaseConfig struct {
	Path string
	// MaxRows caps the number of rows a single query returns.
	MaxRows int
}

// AgentConfig configures the agent loop and its assets.
type AgentConfig struct {
	Name             string
	InstructionsPath string
	DatasheetPath    string
	MaxModelCalls    int
	MaxHistory       int
}

// ServerConfig configures the optional websocket server.
type ServerConfig struct {
	Port string
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from .env (optional) and environment variables.
func Load(optFns ...func(v *viper.Viper)) (*Config, error) {
	// godotenv populates the process environment so AutomaticEnv picks the
	// values up; a missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.deployment_name", "")
	v.SetDefault("model.project_endpoint", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.temperature", 0.1)
	v.SetDefault("model.top_p", 0.1)
	v.SetDefault("model.max_completion_tokens", 4096)
	v.SetDefault("model.max_prompt_tokens", 10240)
	v.SetDefault("database.path", "shared/database/sales.db")
	v.SetDefault("database.max_rows", 1000)
	v.SetDefault("agent.name", "sales-agent")
	v.SetDefault("agent.instructions_path", "shared/instructions/instructions.txt")
	v.SetDefault("agent.datasheet_path", "shared/datasheet/contoso-tents-datasheet.md")
	v.SetDefault("agent.max_model_calls", 20)
	v.SetDefault("agent.max_history", 20)
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.BindEnv("model.provider", "MODEL_PROVIDER")
	v.BindEnv("model.deployment_name", "MODEL_DEPLOYMENT_NAME")
	v.BindEnv("model.project_endpoint", "PROJECT_ENDPOINT", "PROJECT_CONNECTION_STRING")
	v.BindEnv("model.api_key", "MODEL_API_KEY")
	v.BindEnv("model.temperature", "TEMPERATURE")
	v.BindEnv("model.top_p", "TOP_P")
	v.BindEnv("model.max_completion_tokens", "MAX_COMPLETION_TOKENS")
	v.BindEnv("model.max_prompt_tokens", "MAX_PROMPT_TOKENS")
	v.BindEnv("database.path", "SALES_DB_PATH")
	v.BindEnv("database.max_rows", "SALES_DB_MAX_ROWS")
	v.BindEnv("agent.name", "AGENT_NAME")
	v.BindEnv("agent.instructions_path", "INSTRUCTIONS_PATH")
	v.BindEnv("agent.datasheet_path", "DATASHEET_PATH")
	v.BindEnv("agent.max_model_calls", "MAX_MODEL_CALLS")
	v.BindEnv("agent.max_history", "MAX_HISTORY_MESSAGES")
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")

	for _, fn := range optFns {
		fn(v)
	}

	cfg := &Config{
		Model: ModelConfig{
			Provider:            v.GetString("model.provider"),
			DeploymentName:      v.GetString("model.deployment_name"),
			ProjectEndpoint:     v.GetString("model.project_endpoint"),
			APIKey:              v.GetString("model.api_key"),
			Temperature:         v.GetFloat64("model.temperature"),
			TopP:                v.GetFloat64("model.top_p"),
			MaxCompletionTokens: v.GetInt64("model.max_completion_tokens"),
			MaxPromptTokens:     v.GetInt64("model.max_prompt_tokens"),
		},
		Database: DatabaseConfig{
			Path:    v.GetString("database.path"),
			MaxRows: v.GetInt("database.max_rows"),
		},
		Agent: AgentConfig{
			Name:             v.GetString("agent.name"),
			InstructionsPath: v.GetString("agent.instructions_path"),
			DatasheetPath:    v.GetString("agent.datasheet_path"),
			MaxModelCalls:    v.GetInt("agent.max_model_calls"),
			MaxHistory:       v.GetInt("agent.max_history"),
		},
		Server: ServerConfig{
			Port: v.GetString("server.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unsupported model provider %q", c.Model.Provider)
	}

	if c.Model.Provider != "mock" && c.Model.DeploymentName == "" {
		return fmt.Errorf("MODEL_DEPLOYMENT_NAME is required for provider %q", c.Model.Provider)
	}

	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0, 2]", c.Model.Temperature)
	}
	if c.Model.TopP < 0 || c.Model.TopP > 1 {
		return fmt.Errorf("top_p %v out of range [0, 1]", c.Model.TopP)
	}
	if c.Model.MaxCompletionTokens <= 0 {
		return fmt.Errorf("max completion tokens must be positive, got %d", c.Model.MaxCompletionTokens)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("SALES_DB_PATH must not be empty")
	}
	if c.Database.MaxRows <= 0 {
		return fmt.Errorf("max rows must be positive, got %d", c.Database.MaxRows)
	}

	if c.Agent.MaxModelCalls < 0 {
		return fmt.Errorf("max model calls must not be negative, got %d", c.Agent.MaxModelCalls)
	}

	return nil
}

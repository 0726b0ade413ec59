package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Persistence PersistenceConfig `mapstructure:"persistence" validate:"required"`
	Dynamo      DynamoConfig      `mapstructure:"dynamo"`
	LLM         LLMConfig         `mapstructure:"llm" validate:"required"`
	Task        TaskConfig        `mapstructure:"task" validate:"required"`
	Events      EventsConfig      `mapstructure:"events"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
// The URL is only required when the postgres persistence driver is selected.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// PersistenceConfig selects where the task list is stored.
type PersistenceConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres dynamodb memory"`
	// Key is the KV key of the task index; tasks are stored under Key/<id>.
	Key string `mapstructure:"key" validate:"required"`
}

// DynamoConfig configures the DynamoDB KV backend.
type DynamoConfig struct {
	Region   string `mapstructure:"region"`
	Table    string `mapstructure:"table"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	Provider           string       `mapstructure:"provider" validate:"required,oneof=dify gemini ollama"`
	Dify               DifyConfig   `mapstructure:"dify"`
	GeminiAPIKey       string       `mapstructure:"gemini_api_key"`
	ModelName          string       `mapstructure:"model_name"`
	PromptTemplatePath string       `mapstructure:"prompt_template_path"`
	MaxRetries         int          `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds  int          `mapstructure:"retry_delay_seconds" validate:"gte=0,lte=60"`
	Ollama             OllamaConfig `mapstructure:"ollama"`
}

// DifyConfig configures the Dify blocking workflow endpoint.
// Missing credentials are not a load error; tasks fail with a descriptive
// message instead.
type DifyConfig struct {
	APIURL         string `mapstructure:"api_url" validate:"omitempty,url"`
	APIToken       string `mapstructure:"api_token"`
	User           string `mapstructure:"user"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	Host  string `mapstructure:"host" validate:"omitempty,url"`
	Model string `mapstructure:"model"`
}

// TaskConfig holds generation scheduler settings.
type TaskConfig struct {
	// MaxConcurrent bounds in-flight generations. 0 means unlimited.
	MaxConcurrent       int    `mapstructure:"max_concurrent" validate:"gte=0"`
	PendingCancelPolicy string `mapstructure:"pending_cancel_policy" validate:"required,oneof=mark remove"`
	RetryCancelled      bool   `mapstructure:"retry_cancelled"`
}

// EventsConfig configures the Kafka transition publisher and command consumer.
// Both are disabled when no brokers are configured.
type EventsConfig struct {
	KafkaBrokers    []string `mapstructure:"kafka_brokers"`
	TransitionTopic string   `mapstructure:"transition_topic"`
	CommandTopic    string   `mapstructure:"command_topic"`
	GroupID         string   `mapstructure:"group_id"`
}

// KafkaEnabled reports whether any Kafka brokers are configured.
func (c EventsConfig) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

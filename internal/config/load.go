package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "PAPERGEN"

// defaults lists every known key. Viper only resolves environment variables
// for keys it knows about, so each key needs an entry here.
var defaults = map[string]any{
	"server.port":                8080,
	"server.log_level":           "info",
	"database.url":               "",
	"persistence.driver":         "postgres",
	"persistence.key":            "generation-tasks",
	"dynamo.region":              "us-east-2",
	"dynamo.table":               "",
	"dynamo.endpoint":            "",
	"llm.provider":               "dify",
	"llm.dify.api_url":           "",
	"llm.dify.api_token":         "",
	"llm.dify.user":              "papergen",
	"llm.dify.timeout_seconds":   0,
	"llm.gemini_api_key":         "",
	"llm.model_name":             "gemini-2.0-flash",
	"llm.prompt_template_path":   "",
	"llm.max_retries":            3,
	"llm.retry_delay_seconds":    2,
	"llm.ollama.host":            "http://127.0.0.1:11434",
	"llm.ollama.model":           "llama3.1",
	"task.max_concurrent":        0,
	"task.pending_cancel_policy": "mark",
	"task.retry_cancelled":       false,
	"events.kafka_brokers":       []string{},
	"events.transition_topic":    "papergen.task-transitions",
	"events.command_topic":       "",
	"events.group_id":            "papergen",
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/papergen")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the rules that span sections.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	switch cfg.Persistence.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return errors.New("config validation failed: database.url is required for the postgres persistence driver")
		}
	case "dynamodb":
		if cfg.Dynamo.Table == "" {
			return errors.New("config validation failed: dynamo.table is required for the dynamodb persistence driver")
		}
	}

	if cfg.Events.CommandTopic != "" && !cfg.Events.KafkaEnabled() {
		return errors.New("config validation failed: events.command_topic requires events.kafka_brokers")
	}

	return nil
}

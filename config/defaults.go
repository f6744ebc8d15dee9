package config

import "time"

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
		Agents:       DefaultAgentsConfig(),
		LLM:          DefaultLLMConfig(),
		Database:     DefaultDatabaseConfig(),
		Redis:        DefaultRedisConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute, // streaming responses run long
		ShutdownTimeout: 15 * time.Second,
	}
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxHandoffs:        2,
		MaxStepsPerSession: 8,
		DefaultAgent:       "customer_mgmt",
		ReadOnlyCapabilities: []string{
			"list_customers",
			"get_customer",
			"list_products",
			"get_product",
			"transfer_conversation",
		},
		GapDetectionAgents:  []string{"product_mgmt"},
		GapMinMessageLen:    20,
		GapDescriptionLimit: 500,
		ContextCacheTTL:     5 * time.Minute,
	}
}

func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{
		CustomerMgmt: AgentConfig{
			SystemPrompt: "You are the customer management assistant. You help with customer " +
				"records: looking customers up, creating them, and keeping their details current. " +
				"For questions about the product catalog, transfer the conversation instead of guessing.",
		},
		ProductMgmt: AgentConfig{
			SystemPrompt: "You are the product management assistant. You help with the product " +
				"catalog: finding products, creating them, and updating pricing and stock. " +
				"For questions about customer accounts, transfer the conversation instead of guessing.",
		},
	}
}

func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "openai",
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		MaxTokens:   4096,
		Temperature: 0.7,
		Timeout:     2 * time.Minute,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "switchboard.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "switchboard",
		SampleRate:   1.0,
	}
}

package config

import "time"

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// OpenAIConfig represents the configuration for OpenAI and compatible endpoints
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	TopP        float32
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	TopP        float32
	MaxBodySize int
}

// AnthropicConfig represents the configuration for the Anthropic API
type AnthropicConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	MaxBodySize int
}

// PipelineConfig controls batch processing
type PipelineConfig struct {
	Workers      int
	StepTimeout  time.Duration
	BatchSize    int
	PollInterval time.Duration
}

// StoreConfig selects and configures persistence
type StoreConfig struct {
	Type            string
	SQLitePath      string
	MySQLDSN        string
	CleanupInterval time.Duration
	RunRetention    time.Duration
}

// NotifyConfig selects the push notifier
type NotifyConfig struct {
	Type string
}

// ReplyConfig selects how approved replies are sent
type ReplyConfig struct {
	Type string
}

// SMTPConfig represents the outbound mail relay
type SMTPConfig struct {
	Address  string
	Port     int
	Username string
	Password string
	From     string
	StartTLS bool
	Timeout  time.Duration
}

// IngestConfig represents the SMTP listener that receives forwarded mail
type IngestConfig struct {
	Enabled         bool
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
}

// GmailConfig holds the OAuth client used to send replies through Gmail
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// ServerConfig represents the HTTP server
type ServerConfig struct {
	ListenAddress string
	CronSecret    string
	APIToken      string
	BaseURL       string
}

// MetricsConfig toggles metrics export
type MetricsConfig struct {
	Enabled bool
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetAnthropic returns the Anthropic configuration
func (c *Config) GetAnthropic() AnthropicConfig {
	return AnthropicConfig{
		APIKey:      c.GetString("anthropic.api_key"),
		ModelName:   c.GetString("anthropic.model_name"),
		MaxTokens:   c.GetInt("anthropic.max_tokens"),
		MaxBodySize: c.GetInt("anthropic.max_body_size"),
	}
}

// GetPipeline returns the pipeline configuration
func (c *Config) GetPipeline() (PipelineConfig, error) {
	stepTimeout, err := c.GetDuration("pipeline.step_timeout")
	if err != nil {
		return PipelineConfig{}, err
	}
	pollInterval, err := c.GetDuration("pipeline.poll_interval")
	if err != nil {
		return PipelineConfig{}, err
	}
	return PipelineConfig{
		Workers:      c.GetInt("pipeline.workers"),
		StepTimeout:  stepTimeout,
		BatchSize:    c.GetInt("pipeline.batch_size"),
		PollInterval: pollInterval,
	}, nil
}

// GetStore returns the store configuration
func (c *Config) GetStore() (StoreConfig, error) {
	cleanup, err := c.GetDuration("store.cleanup_interval")
	if err != nil {
		return StoreConfig{}, err
	}
	retention, err := c.GetDuration("store.run_retention")
	if err != nil {
		return StoreConfig{}, err
	}
	return StoreConfig{
		Type:            c.GetString("store.type"),
		SQLitePath:      c.GetString("store.sqlite_path"),
		MySQLDSN:        c.GetString("store.mysql_dsn"),
		CleanupInterval: cleanup,
		RunRetention:    retention,
	}, nil
}

// GetNotify returns the notifier configuration
func (c *Config) GetNotify() NotifyConfig {
	return NotifyConfig{Type: c.GetString("notify.type")}
}

// GetReply returns the reply sender configuration
func (c *Config) GetReply() ReplyConfig {
	return ReplyConfig{Type: c.GetString("reply.type")}
}

// GetSMTP returns the SMTP relay configuration
func (c *Config) GetSMTP() (SMTPConfig, error) {
	timeout, err := c.GetDuration("smtp.timeout")
	if err != nil {
		return SMTPConfig{}, err
	}
	return SMTPConfig{
		Address:  c.GetString("smtp.address"),
		Port:     c.GetInt("smtp.port"),
		Username: c.GetString("smtp.username"),
		Password: c.GetString("smtp.password"),
		From:     c.GetString("smtp.from"),
		StartTLS: c.GetBool("smtp.starttls"),
		Timeout:  timeout,
	}, nil
}

// GetIngest returns the SMTP ingest configuration
func (c *Config) GetIngest() IngestConfig {
	return IngestConfig{
		Enabled:         c.GetBool("ingest.enabled"),
		ListenAddress:   c.GetString("ingest.listen_address"),
		Domain:          c.GetString("ingest.domain"),
		MaxMessageBytes: c.GetViper().GetInt64("ingest.max_message_bytes"),
	}
}

// GetGmail returns the Gmail OAuth configuration
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		ClientID:     c.GetString("gmail.client_id"),
		ClientSecret: c.GetString("gmail.client_secret"),
		RefreshToken: c.GetString("gmail.refresh_token"),
	}
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress: c.GetString("server.listen_address"),
		CronSecret:    c.GetString("server.cron_secret"),
		APIToken:      c.GetString("server.api_token"),
		BaseURL:       c.GetString("server.base_url"),
	}
}

// GetMetrics returns the metrics configuration
func (c *Config) GetMetrics() MetricsConfig {
	return MetricsConfig{Enabled: c.GetBool("metrics.enabled")}
}

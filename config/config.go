package config

import (
	"log"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// TwilioConfig carries the credentials for the telephony provider.
type TwilioConfig struct {
	AccountSid  string `mapstructure:"account_sid" validate:"required"`
	AuthToken   string `mapstructure:"auth_token" validate:"required"`
	PhoneNumber string `mapstructure:"phone_number" validate:"required"`
}

// AgentConfig carries the conversational voice-AI socket settings.
type AgentConfig struct {
	WsURL  string `mapstructure:"ws_url" validate:"required"`
	ApiKey string `mapstructure:"api_key"`
}

// ExtractionConfig carries the LLM settings used for post-call and
// pre-transfer structured extraction. All fields optional: extraction
// degrades to an empty result when unconfigured.
type ExtractionConfig struct {
	ApiKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogFile  string `mapstructure:"log_file"`

	// ServerURL is the public https base URL Twilio uses for webhooks and
	// the wss /media stream derived from it.
	ServerURL string `mapstructure:"server_url" validate:"required"`

	Twilio     TwilioConfig     `mapstructure:"twilio" validate:"required"`
	Agent      AgentConfig      `mapstructure:"agent" validate:"required"`
	Extraction ExtractionConfig `mapstructure:"extraction"`

	// BackendURL is the external call backend notified of statuses and
	// final call data.
	BackendURL string `mapstructure:"backend_url" validate:"required"`

	// HumanAgentNumber is the transfer target. Empty disables transfers.
	HumanAgentNumber string `mapstructure:"human_agent_number"`

	// TransferKeywords is a comma-separated keyword list that marks a user
	// utterance as a human-transfer request.
	TransferKeywords string `mapstructure:"transfer_keywords"`

	// CompletionGraceSeconds is how long the session stays open after a
	// completion phrase so in-flight speech finishes playing.
	CompletionGraceSeconds int `mapstructure:"completion_grace_seconds" validate:"required"`

	// BriefingTTLMinutes bounds how long an unclaimed transfer briefing is
	// kept before it is dropped.
	BriefingTTLMinutes int `mapstructure:"briefing_ttl_minutes" validate:"required"`

	RecordingsDir  string `mapstructure:"recordings_dir" validate:"required"`
	CallRecordPath string `mapstructure:"call_record_path" validate:"required"`
}

// TransferKeywordList splits the configured comma-separated keywords.
func (c *AppConfig) TransferKeywordList() []string {
	parts := strings.Split(c.TransferKeywords, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		if kw := strings.TrimSpace(p); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env varaibles.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "callbridge")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8000)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("SERVER_URL", "")
	v.SetDefault("BACKEND_URL", "http://localhost:5000")
	v.SetDefault("HUMAN_AGENT_NUMBER", "")

	v.SetDefault("TWILIO__ACCOUNT_SID", "")
	v.SetDefault("TWILIO__AUTH_TOKEN", "")
	v.SetDefault("TWILIO__PHONE_NUMBER", "")

	v.SetDefault("AGENT__WS_URL", "")
	v.SetDefault("AGENT__API_KEY", "")

	v.SetDefault("EXTRACTION__API_KEY", "")
	v.SetDefault("EXTRACTION__BASE_URL", "")
	v.SetDefault("EXTRACTION__MODEL", "gpt-4")

	v.SetDefault("TRANSFER_KEYWORDS", strings.Join([]string{
		"human", "agent", "senior", "representative", "operator",
		"transfer", "speak to someone", "talk to someone",
		"real person", "live agent", "customer service",
		"speak with", "talk with", "connect me", "real human",
		"actual person", "someone else", "supervisor", "manager",
	}, ","))

	v.SetDefault("COMPLETION_GRACE_SECONDS", 5)
	v.SetDefault("BRIEFING_TTL_MINUTES", 15)
	v.SetDefault("RECORDINGS_DIR", "recordings")
	v.SetDefault("CALL_RECORD_PATH", "callbridge.db")
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}

package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env    string `yaml:"env" env-default:"local"`
	LogDir string `yaml:"log_dir" env-default:""`
	Listen struct {
		BindIP string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port   string `yaml:"port" env-default:"9100"`
		ApiKey string `yaml:"key" env:"API_KEY" env-default:""`
	} `yaml:"listen"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:"admin"`
		Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:"pass"`
		Database string `yaml:"database" env-default:"inboxgate"`
	} `yaml:"mongo"`
	Meta struct {
		AppID             string        `yaml:"app_id" env:"META_APP_ID" env-default:""`
		AppSecret         string        `yaml:"app_secret" env:"META_APP_SECRET" env-default:""`
		VerifyToken       string        `yaml:"verify_token" env:"META_VERIFY_TOKEN" env-default:""`
		GraphURL          string        `yaml:"graph_url" env-default:"https://graph.facebook.com"`
		InstagramGraphURL string        `yaml:"instagram_graph_url" env-default:"https://graph.instagram.com"`
		APIVersion        string        `yaml:"api_version" env-default:"v21.0"`
		RequestTimeout    time.Duration `yaml:"request_timeout" env-default:"15s"`
	} `yaml:"meta"`
	Vault struct {
		EncryptionKey  string `yaml:"encryption_key" env:"TOKEN_ENCRYPTION_KEY" env-default:""`
		FallbackSecret string `yaml:"fallback_secret" env:"TOKEN_FALLBACK_SECRET" env-default:""`
	} `yaml:"vault"`
	Refresh struct {
		Enabled     bool          `yaml:"enabled" env-default:"true"`
		Schedule    string        `yaml:"schedule" env-default:"@every 1h"`
		Horizon     time.Duration `yaml:"horizon" env-default:"168h"`
		MaxFailures int           `yaml:"max_failures" env-default:"3"`
		Timeout     time.Duration `yaml:"timeout" env-default:"30s"`
	} `yaml:"refresh"`
	Legacy struct {
		WorkspaceID      string `yaml:"workspace_id" env-default:""`
		OutboundFallback bool   `yaml:"outbound_fallback" env-default:"false"`
	} `yaml:"legacy"`
	Responder struct {
		Enabled   bool          `yaml:"enabled" env-default:"false"`
		Mode      string        `yaml:"mode" env-default:"http"`
		URL       string        `yaml:"url" env-default:""`
		ApiKey    string        `yaml:"api_key" env:"RESPONDER_API_KEY" env-default:""`
		AmqpURL   string        `yaml:"amqp_url" env:"AMQP_URL" env-default:""`
		Queue     string        `yaml:"queue" env-default:"ai-responder"`
		Workers   int           `yaml:"workers" env-default:"4"`
		QueueSize int           `yaml:"queue_size" env-default:"256"`
		Timeout   time.Duration `yaml:"timeout" env-default:"30s"`
	} `yaml:"responder"`
	Telegram struct {
		ApiKey  string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
		AdminId int64  `yaml:"admin_id" env-default:"0"`
		BotName string `yaml:"bot_name" env-default:"InboxGateBot"`
		Enabled bool   `yaml:"enabled" env-default:"false"`
	} `yaml:"telegram"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("%s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}

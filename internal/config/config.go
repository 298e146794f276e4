package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode        string        `mapstructure:"mode"`
	Port        int           `mapstructure:"port"`
	Number      string        `mapstructure:"number"`
	GatewayURL  string        `mapstructure:"gateway_url"`
	AccessToken string        `mapstructure:"access_token"`
	StunServers []string      `mapstructure:"stun_servers"`
	ICETimeout  time.Duration `mapstructure:"ice_timeout"`
	DataDir     string        `mapstructure:"data_dir"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8090)
	v.SetDefault("number", "")
	v.SetDefault("gateway_url", "ws://homeassistant.local:8123/api/websocket")
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("ice_timeout", "5s")
	v.SetDefault("data_dir", "./data")

	// The bus token normally comes from the environment, not the file.
	_ = v.BindEnv("access_token", "INTERCOM_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Number: %s\n", cfg.Mode, cfg.Port, cfg.Number)
	return &cfg, nil
}

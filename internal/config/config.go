// Package config loads service configuration from the environment. In
// development a .env file in the working directory is honored.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Gateway holds configuration for the gateway binary.
type Gateway struct {
	Port         string `envconfig:"PORT" default:"3000"`
	ProjectsURL  string `envconfig:"PROJECTS_URL" default:"http://localhost:3001"`
	TasksURL     string `envconfig:"TASKS_URL" default:"http://localhost:3002"`
	NotifyURL    string `envconfig:"NOTIFICATIONS_URL" default:"http://localhost:3003"`
	ClientOrigin string `envconfig:"CLIENT_ORIGIN" default:"http://localhost:5173"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
}

// Notify holds configuration for the notification/chat service binary.
type Notify struct {
	Port         string `envconfig:"PORT" default:"3003"`
	BadgerPath   string `envconfig:"BADGER_PATH" default:"./data/chat"`
	RedisURL     string `envconfig:"REDIS_URL" default:""`
	ClientOrigin string `envconfig:"CLIENT_ORIGIN" default:"http://localhost:5173"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadGateway reads gateway configuration from the environment.
func LoadGateway() (Gateway, error) {
	_ = godotenv.Load()

	var cfg Gateway
	if err := envconfig.Process("", &cfg); err != nil {
		return Gateway{}, fmt.Errorf("gateway config: %w", err)
	}
	return cfg, nil
}

// LoadNotify reads notification service configuration from the environment.
// An empty REDIS_URL selects the in-process pub/sub bus.
func LoadNotify() (Notify, error) {
	_ = godotenv.Load()

	var cfg Notify
	if err := envconfig.Process("", &cfg); err != nil {
		return Notify{}, fmt.Errorf("notify config: %w", err)
	}
	return cfg, nil
}

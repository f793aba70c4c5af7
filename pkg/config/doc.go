// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Each component of the notification core declares its own Config struct
// with `env` tags and loads it at startup:
//
//	type Config struct {
//		PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
package config

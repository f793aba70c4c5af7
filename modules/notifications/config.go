package notifications

import (
	"github.com/zayyadi/paroll-sub001/pkg/cache"
	"github.com/zayyadi/paroll-sub001/pkg/config"
	"github.com/zayyadi/paroll-sub001/pkg/email"
	"github.com/zayyadi/paroll-sub001/pkg/httpserver"
	"github.com/zayyadi/paroll-sub001/pkg/logger"
	"github.com/zayyadi/paroll-sub001/pkg/pg"
	"github.com/zayyadi/paroll-sub001/pkg/push"
	"github.com/zayyadi/paroll-sub001/pkg/queue"
	"github.com/zayyadi/paroll-sub001/pkg/ratelimit"
	"github.com/zayyadi/paroll-sub001/pkg/redis"
	"github.com/zayyadi/paroll-sub001/pkg/sms"
)

// Config aggregates every environment-driven setting the module needs.
// Each embedded struct carries its own env tags and defaults.
type Config struct {
	Logger  logger.Config
	HTTP    httpserver.Config
	PG      pg.Config
	Redis   redis.Config
	Cache   cache.Config
	Queue   queue.Config
	Email   email.Config
	SMS     sms.Config
	SMSRate ratelimit.Config
	Push    push.Config

	// BaseURL prefixes notification action URLs so emails and pushes
	// link back into the application.
	BaseURL string `env:"APP_BASE_URL"`
}

// LoadConfig reads the module configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

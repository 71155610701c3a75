// internal/workers/render/render-video/config.go
package rendervideo

import "time"

type Config struct {
	// Timeout bounds one job. It must exceed the monitor ceiling so the
	// engine does not hand the job to another worker mid-render.
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 25 * time.Minute,
	}
}

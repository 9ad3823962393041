package internal

// Option is a functional option for the Run* entry points.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig sets the configuration for the serve, build, and mcp modes.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Host:           "127.0.0.1",
		Port:           80,
		Timeout:        30000, // 30 seconds
		ConnectTimeout: 10000,
		Output:         "console",
		EchoPort:       9898,
		Verbose:        BoolPtr(false),
		NoColor:        BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Host == defaults.Host &&
		c.Port == defaults.Port &&
		c.Timeout == defaults.Timeout &&
		c.ConnectTimeout == defaults.ConnectTimeout &&
		len(c.Headers) == 0 &&
		c.UserAgent == defaults.UserAgent &&
		c.Output == defaults.Output &&
		c.EchoPort == defaults.EchoPort &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor()
}

package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateHTTP(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateValidator(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateHTTP() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return errors.New("http.timeout_seconds must be positive")
	}
	if c.HTTP.RetryAttempts < 1 {
		return errors.New("http.retry_attempts must be at least 1")
	}
	if c.HTTP.RetryMaxMS < c.HTTP.RetryBaseMS {
		return errors.New("http.retry_max_ms must not be below http.retry_base_ms")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.Requests <= 0 {
		return errors.New("rate_limit.requests must be positive")
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return errors.New("rate_limit.window_seconds must be positive")
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.MaxFileSizeMB <= 0 {
		return errors.New("audio.max_file_size_mb must be positive")
	}
	if c.Audio.Bitrate == "" {
		return errors.New("audio.bitrate must be set")
	}
	return nil
}

func (c *Config) validateValidator() error {
	if len(c.Validator.SpotifyHosts) == 0 && len(c.Validator.YouTubeHosts) == 0 {
		return errors.New("validator host allow-list must not be empty")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}

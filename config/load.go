package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"warroom/core/validation"
)

// Load reads .env (if present), then the yaml file at path (if present), then the
// environment. Environment values override the file.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg AppConfig
	path = strings.TrimSpace(path)
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			return &cfg, cfg.Validate()
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return &cfg, cfg.Validate()
}

func (c *AppConfig) Validate() error {
	errs, err := validation.Check(c)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		fields := make([]string, 0, len(errs))
		for _, fe := range errs {
			fields = append(fields, fe.Field+" ("+fe.Tag+")")
		}
		return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
	}
	if c.Incidents.DefaultPageSize > c.Incidents.MaxPageSize {
		return fmt.Errorf("invalid config: default_page_size exceeds max_page_size")
	}
	return nil
}

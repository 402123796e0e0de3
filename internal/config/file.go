package config

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/model"
)

func defaultAuthConfig() model.AuthConfig {
	return model.AuthConfig{
		CookieName: "session",
	}
}

// FileProvider loads AuthConfig from a UTF-8 JSON file matching the
// AuthConfig schema (§6), republishing a snapshot whenever the file
// changes on disk.
type FileProvider struct {
	path     string
	snapshot atomic.Pointer[model.AuthConfig]
	fp       *file.File
}

// NewFileProvider loads path once and starts watching it for changes.
// The file layer sits on top of struct defaults the same way the
// process-level environment config does (§9 "Polymorphic Config
// Provider").
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{path: path}
	if err := p.reload(); err != nil {
		return nil, err
	}

	fp := file.Provider(path)
	p.fp = fp
	if err := fp.Watch(func(event interface{}, err error) {
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("config file watch error")
			return
		}
		if err := p.reload(); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("config file reload failed, keeping previous snapshot")
		} else {
			logging.Info().Str("path", path).Msg("config file reloaded")
		}
	}); err != nil {
		return nil, fmt.Errorf("watching config file %s: %w", path, err)
	}

	return p, nil
}

func (p *FileProvider) reload() error {
	k := koanf.New(".")

	defaults := defaultAuthConfig()
	if err := k.Load(structs.Provider(&defaults, "json"), nil); err != nil {
		return fmt.Errorf("loading config defaults: %w", err)
	}

	if err := k.Load(file.Provider(p.path), json.Parser()); err != nil {
		return fmt.Errorf("reading config file %s: %w", p.path, err)
	}

	// model.AuthConfig carries json tags, not koanf tags.
	var cfg model.AuthConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return fmt.Errorf("unmarshaling config file %s: %w", p.path, err)
	}
	if err := validate(cfg); err != nil {
		return err
	}

	p.snapshot.Store(&cfg)
	return nil
}

func (p *FileProvider) Current(_ context.Context) (model.AuthConfig, error) {
	return *p.snapshot.Load(), nil
}

func (p *FileProvider) Close() error {
	return nil
}

func validate(cfg model.AuthConfig) error {
	if cfg.SessionURL == "" {
		return fmt.Errorf("auth config: session_url must not be empty")
	}
	if cfg.LoginRedirect == "" {
		return fmt.Errorf("auth config: login_redirect must not be empty")
	}
	return nil
}

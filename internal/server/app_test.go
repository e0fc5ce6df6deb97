package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/deepesh-reddy/MegaBackend/internal/logging"
	"github.com/deepesh-reddy/MegaBackend/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return cfg
}

func TestBuildLogger(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
		check   func(t *testing.T, l logging.Logger)
	}{
		{backend: "slog", check: func(t *testing.T, l logging.Logger) {
			_, ok := l.(*logging.SlogLogger)
			assert.True(t, ok)
		}},
		{backend: "", check: func(t *testing.T, l logging.Logger) {
			_, ok := l.(*logging.SlogLogger)
			assert.True(t, ok)
		}},
		{backend: "zap", check: func(t *testing.T, l logging.Logger) {
			_, ok := l.(*logging.ZapLogger)
			assert.True(t, ok)
		}},
		{backend: "logrus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := validConfig()
			cfg.LogBackend = tt.backend

			l, flush, err := buildLogger(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, flush)
			tt.check(t, l)
		})
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.RefreshTokenSecret = cfg.AccessTokenSecret

	_, err := NewApp(context.Background(), cfg)
	assert.ErrorContains(t, err, "secrets must differ")
}

func TestNewApp_DBOpenError(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })

	openDB = func(string) (*sql.DB, error) { return nil, errors.New("bad dsn") }

	_, err := NewApp(context.Background(), validConfig())
	assert.ErrorContains(t, err, "bad dsn")
}

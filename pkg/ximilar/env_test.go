package ximilar

import (
	"context"
	"errors"
	"testing"

	"github.com/Sternrassler/ximilar-client/internal/testutil"
	"github.com/Sternrassler/ximilar-client/pkg/config"
)

func TestFromEnv(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/account/v2/workspace/", testutil.NewJSONResponse(workspaceList))

	tests := []struct {
		name          string
		mutate        func(*config.Config)
		wantWorkspace string
		wantErr       error
	}{
		{
			name:          "token only",
			mutate:        func(c *config.Config) {},
			wantWorkspace: "",
		},
		{
			name:          "workspace by name",
			mutate:        func(c *config.Config) { c.Workspace = "name2" },
			wantWorkspace: "id2",
		},
		{
			name:    "unknown workspace",
			mutate:  func(c *config.Config) { c.Workspace = "missing" },
			wantErr: ErrWorkspaceNotFound,
		},
		{
			name:    "no credentials",
			mutate:  func(c *config.Config) { c.Token = "" },
			wantErr: config.ErrNoCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Token = "tok"
			cfg.BaseURL = mock.URL()
			tt.mutate(&cfg)

			app, err := FromEnv(context.Background(), cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("FromEnv() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromEnv() error = %v", err)
			}
			defer app.Close()

			if app.Workspace() != tt.wantWorkspace {
				t.Errorf("Workspace() = %q, want %q", app.Workspace(), tt.wantWorkspace)
			}
		})
	}
}

func TestFromEnv_BadRedisURL(t *testing.T) {
	cfg := config.Default()
	cfg.Token = "tok"
	cfg.RedisURL = "not-a-redis-url"

	if _, err := FromEnv(context.Background(), cfg); err == nil {
		t.Error("FromEnv() should fail on an invalid REDIS_URL")
	}
}

func TestClose_NoResources(t *testing.T) {
	app, _ := newTestApp(t, Options{})
	if err := app.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

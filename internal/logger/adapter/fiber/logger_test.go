package fiber_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapter "github.com/pmhub/pmhub/internal/logger/adapter/fiber"

	"github.com/pmhub/pmhub/internal/logger"
)

type accessEntry struct {
	IP     string `json:"IP"`
	Status int    `json:"status"`
	URI    string `json:"URI"`
	Method string `json:"method"`
	Host   string `json:"host"`
	User   uint64 `json:"user"`
}

var consoleAccess = logger.Log{ //nolint:gochecknoglobals
	EnableAccessLogToConsole: true,
	Console:                  logger.Console{Enabled: true},
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		config     adapter.Config
		targetPath string
		want       *accessEntry
	}{
		{
			name:       "no writers no output",
			targetPath: "/",
		},
		{
			name:       "get / to console json",
			targetPath: "/",
			config:     adapter.Config{Config: consoleAccess},
			want:       &accessEntry{IP: "0.0.0.0", Status: 200, URI: "/", Method: fiber.MethodGet, Host: "example.com"},
		},
		{
			name:       "raw path with double slash is logged unchanged",
			targetPath: "//test",
			config:     adapter.Config{Config: consoleAccess},
			want:       &accessEntry{IP: "0.0.0.0", Status: 404, URI: "//test", Method: fiber.MethodGet, Host: "example.com"},
		},
		{
			name:       "query string is kept",
			targetPath: "/?test=123",
			config:     adapter.Config{Config: consoleAccess},
			want:       &accessEntry{IP: "0.0.0.0", Status: 200, URI: "/?test=123", Method: fiber.MethodGet, Host: "example.com"},
		},
		{
			name:       "authenticated user is logged",
			targetPath: "/me",
			config:     adapter.Config{Config: consoleAccess},
			want:       &accessEntry{IP: "0.0.0.0", Status: 200, URI: "/me", Method: fiber.MethodGet, Host: "example.com", User: 7},
		},
		{
			name:       "checkalive is skipped",
			targetPath: "/checkalive",
			config: adapter.Config{Config: logger.Log{
				EnableAccessLogToConsole: true,
				DisableCheckAlive:        true,
				Console:                  logger.Console{Enabled: true},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := serve(t, tt.targetPath, tt.config)

			if tt.want == nil {
				assert.Empty(t, output)

				return
			}

			var got accessEntry
			require.NoError(t, json.Unmarshal([]byte(output), &got), output)
			assert.Equal(t, *tt.want, got)
		})
	}
}

func serve(t *testing.T, targetPath string, adapterConfig adapter.Config) string {
	t.Helper()

	stdout := os.Stdout

	r, w, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = w

	app := fiber.New(fiber.Config{CaseSensitive: true, Immutable: true})
	app.Use(adapter.New(adapterConfig))

	app.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.SendString("hello test")
	})

	app.Get("/me", func(ctx *fiber.Ctx) error {
		ctx.Locals(adapter.LocalUserID, uint64(7))

		return ctx.SendString("me")
	})

	app.Get("/checkalive", func(ctx *fiber.Ctx) error {
		return ctx.SendString("OK")
	})

	_, err = app.Test(httptest.NewRequest(fiber.MethodGet, targetPath, nil), -1)
	require.NoError(t, err)

	outC := make(chan string)

	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	_ = w.Close()
	os.Stdout = stdout

	return <-outC
}

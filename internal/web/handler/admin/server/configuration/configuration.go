// Package configuration exposes the effective service configuration, secrets redacted.
package configuration

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pmhub/pmhub/internal/auth"
	"github.com/pmhub/pmhub/internal/config"
	"github.com/pmhub/pmhub/internal/web/handler"
)

const (
	// Path is the configuration endpoint.
	Path = handler.APIPath + "/config"

	// QuerySearch filters settings by a case-insensitive substring of their name.
	QuerySearch = "search"

	redacted = "********"
)

// ConfigSetting is one flattened configuration value.
type ConfigSetting struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Service is the configuration handler service.
type Service struct {
	handler.Service
	cfg *config.Config
}

// Handler is the configuration handler.
var Handler = Service{}

// Init initializes the configuration handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || !deps.Valid() {
		return errors.New(handler.ErrNilDepsFatalLogMsg)
	}

	s.cfg = deps.Cfg

	app.Get(Path, auth.RequirePermission(deps.Guard, auth.ResourceConfig, auth.ActionRead), s.Get)

	return nil
}

// Get returns the flattened settings sorted by name.
func (s *Service) Get(c *fiber.Ctx) error {
	settings, err := Flatten(s.cfg)
	if err != nil {
		return handler.Error(c, err)
	}

	if q := strings.ToLower(c.Query(QuerySearch)); q != "" {
		filtered := settings[:0]

		for _, st := range settings {
			if strings.Contains(strings.ToLower(st.Name), q) {
				filtered = append(filtered, st)
			}
		}

		settings = filtered
	}

	return c.JSON(settings)
}

// Flatten lists every leaf of cfg as "Section.Key" with secrets redacted.
func Flatten(cfg *config.Config) ([]ConfigSetting, error) {
	raw, err := config.DumpConfigJSON(cfg)
	if err != nil {
		return nil, fmt.Errorf("dump config: %w", err)
	}

	var tree map[string]any
	if err = json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	var out []ConfigSetting

	walk("", tree, &out)

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func walk(prefix string, node any, out *[]ConfigSetting) {
	if m, ok := node.(map[string]any); ok {
		for k, v := range m {
			name := k
			if prefix != "" {
				name = prefix + "." + k
			}

			walk(name, v, out)
		}

		return
	}

	st := ConfigSetting{Name: prefix, Type: typeName(node), Value: fmt.Sprint(node)}
	if node == nil {
		st.Value = ""
	}

	if isSecret(prefix) && st.Value != "" {
		st.Value = redacted
	}

	*out = append(*out, st)
}

func typeName(v any) string {
	switch v.(type) {
	case bool:
		return "bool"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "list"
	default:
		return "null"
	}
}

func isSecret(name string) bool {
	n := strings.ToLower(name)

	return strings.HasSuffix(n, "password") || strings.HasSuffix(n, "secret") || strings.HasSuffix(n, "token")
}

package permission

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pmhub/pmhub/internal/db/models"
)

// Record is the cached shape of a permission.
type Record struct {
	ID           uint   `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	ResourceType string `json:"resource_type"`
	ActionType   string `json:"action_type"`
	Module       string `json:"module,omitempty"`
	IsActive     bool   `json:"is_active"`
}

// FromModel converts a stored permission.
func FromModel(p *models.Permission) Record {
	return Record{
		ID:           p.ID,
		Code:         p.Code,
		Name:         p.Name,
		ResourceType: p.ResourceType,
		ActionType:   p.ActionType,
		Module:       p.Module,
		IsActive:     p.IsActive,
	}
}

// FromModels converts a slice of stored permissions.
func FromModels(ps []models.Permission) []Record {
	out := make([]Record, 0, len(ps))
	for i := range ps {
		out = append(out, FromModel(&ps[i]))
	}

	return out
}

// EncodeRecords serializes records for the persisted fallback rows.
func EncodeRecords(recs []Record) (string, error) {
	if recs == nil {
		recs = []Record{}
	}

	b, err := json.Marshal(recs)
	if err != nil {
		return "", fmt.Errorf("encode permission records: %w", err)
	}

	return string(b), nil
}

// DecodeRecords reverses EncodeRecords.
func DecodeRecords(s string) ([]Record, error) {
	var recs []Record
	if err := json.Unmarshal([]byte(s), &recs); err != nil {
		return nil, fmt.Errorf("decode permission records: %w", err)
	}

	return recs, nil
}

// Check is one requested (resource type, action type) pair.
type Check struct {
	ResourceType string `json:"resource_type" validate:"required,max=50,keypart"`
	ActionType   string `json:"action_type" validate:"required,max=50,keypart"`
}

// Key renders the check as "resource_type:action_type", the key of batch results.
func (c Check) Key() string {
	return c.ResourceType + ":" + c.ActionType
}

// ParseCheck parses "resource_type:action_type".
func ParseCheck(s string) (Check, error) {
	rt, at, ok := strings.Cut(s, ":")
	if !ok || rt == "" || at == "" {
		return Check{}, NewValidationError(fmt.Sprintf("permission %q is not in resource:action form", s))
	}

	return Check{ResourceType: rt, ActionType: at}, nil
}

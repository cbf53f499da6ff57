package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a node within a graph. On the wire it may be a JSON number
// or a JSON string; numeric IDs are written back as numbers.
type ID string

// UnmarshalJSON accepts both 7 and "7".
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes IDs in canonical integer form as numbers. Anything
// else, "007" and "+5" included, stays a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// NodeRecord is the flat collaborator-supplied shape of a node.
// Optional fields left at their zero value receive domain defaults when
// assembled.
type NodeRecord struct {
	ID            ID       `json:"id" yaml:"id" validate:"required"`
	Name          string   `json:"name" yaml:"name" validate:"max=200"`
	Maturity      *float64 `json:"maturity,omitempty" yaml:"maturity,omitempty"`
	EgoState      string   `json:"ego_state,omitempty" yaml:"ego_state,omitempty" validate:"omitempty,egostate"`
	Role          string   `json:"role,omitempty" yaml:"role,omitempty" validate:"omitempty,noderole"`
	Metacognition bool     `json:"metacognition,omitempty" yaml:"metacognition,omitempty"`
	History       string   `json:"history,omitempty" yaml:"history,omitempty"`
}

// EdgeRecord is the flat collaborator-supplied shape of an edge.
type EdgeRecord struct {
	SourceID    ID      `json:"source_id" yaml:"source_id" validate:"required"`
	TargetID    ID      `json:"target_id" yaml:"target_id" validate:"required,nefield=SourceID"`
	Polarity    float64 `json:"polarity" yaml:"polarity"`
	LightShadow string  `json:"light_shadow,omitempty" yaml:"light_shadow,omitempty" validate:"omitempty,lightshadow"`
	Role        string  `json:"role,omitempty" yaml:"role,omitempty" validate:"max=200"`
	Consent     bool    `json:"consent,omitempty" yaml:"consent,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// Float64 returns a pointer to v, for filling NodeRecord.Maturity.
func Float64(v float64) *float64 { return &v }

// historySeparator joins history entries in serialized records.
const historySeparator = "; "

// parseHistory splits a serialized history string into its entries,
// dropping empty fragments left by leading or trailing separators.
func parseHistory(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	entries := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			entries = append(entries, p)
		}
	}
	return entries
}

// formatHistory joins history entries into the serialized record form.
func formatHistory(entries []string) string {
	return strings.Join(entries, historySeparator)
}

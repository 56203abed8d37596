package models

import (
	"encoding/json"
	"errors"
)

// CopilotOper is an operator a copilot job requires
type CopilotOper struct {
	Name  string `json:"name"`
	Skill int    `json:"skill,omitempty"` // 0 or absent means skill 1
}

// RequiredSkill returns the skill slot the job needs, defaulting to 1
func (o CopilotOper) RequiredSkill() int {
	if o.Skill <= 0 {
		return 1
	}
	return o.Skill
}

// CopilotGroup is a named set of interchangeable operators; any one of
// them satisfies the group
type CopilotGroup struct {
	Name  string        `json:"name"`
	Opers []CopilotOper `json:"opers"`
}

// CopilotContent is the requirement part of a listing's content document.
// Other keys of the document are ignored.
type CopilotContent struct {
	Opers  []CopilotOper  `json:"opers,omitempty"`
	Groups []CopilotGroup `json:"groups,omitempty"`
}

// CopilotItem is the part of a listing the filter reads. Content is itself
// a JSON document encoded as a string; ID is kept as raw JSON.
type CopilotItem struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Content string          `json:"content"`
}

// Key returns the listing id as text: the string value for string ids,
// the literal otherwise
func (i CopilotItem) Key() string {
	if len(i.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(i.ID, &s); err == nil {
		return s
	}
	return string(i.ID)
}

// RawListing is one element of the query response's listing array, kept
// verbatim so it can be re-emitted unchanged
type RawListing []byte

// MarshalJSON returns the listing bytes as-is
func (l RawListing) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("null"), nil
	}
	return l, nil
}

// UnmarshalJSON stores a copy of data
func (l *RawListing) UnmarshalJSON(data []byte) error {
	if l == nil {
		return errors.New("models.RawListing: UnmarshalJSON on nil pointer")
	}
	*l = append((*l)[0:0], data...)
	return nil
}

package types

import (
	"encoding/json"
	"strings"
	"time"
)

type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

// FieldType is the closed set of input kinds the dialogue knows how to resolve.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldTel      FieldType = "tel"
	FieldDate     FieldType = "date"
	FieldTime     FieldType = "time"
	FieldRadio    FieldType = "radio"
	FieldCheckbox FieldType = "checkbox"
	FieldSelect   FieldType = "select"
	FieldOther    FieldType = "other"
)

// ParseFieldType maps an HTML-ish input type onto the closed enum.
func ParseFieldType(s string) FieldType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return FieldText
	case "email":
		return FieldEmail
	case "tel", "phone":
		return FieldTel
	case "date":
		return FieldDate
	case "time":
		return FieldTime
	case "radio":
		return FieldRadio
	case "checkbox":
		return FieldCheckbox
	case "select", "select-one", "select-multiple":
		return FieldSelect
	default:
		return FieldOther
	}
}

// Buffering reports whether answers of this type may span several utterances.
func (t FieldType) Buffering() bool { return t == FieldEmail || t == FieldTel }

func (t *FieldType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ParseFieldType(s)
	return nil
}

type Field struct {
	Name     string    `json:"name"`
	Label    string    `json:"label,omitempty"`
	Type     FieldType `json:"type"`
	Options  []string  `json:"options,omitempty"`
	Required bool      `json:"required"`
}

// DisplayName is the label when present, otherwise the field name.
func (f Field) DisplayName() string {
	if strings.TrimSpace(f.Label) != "" {
		return f.Label
	}
	return f.Name
}

type Form struct {
	ID        string            `json:"form_id"`
	Fields    []Field           `json:"fields"`
	Questions map[string]string `json:"questions"`
	CreatedAt time.Time         `json:"created_at"`
}

// Question returns the prompt for a field, falling back to its display name.
func (f *Form) Question(name string) string {
	if q := strings.TrimSpace(f.Questions[name]); q != "" {
		return q
	}
	for _, fd := range f.Fields {
		if fd.Name == name {
			return fd.DisplayName()
		}
	}
	return name
}

type Answer struct {
	Field    string    `json:"field"`
	Value    string    `json:"value"`
	Question string    `json:"question"`
	At       time.Time `json:"at"`
}

const (
	CmdFillField = "fill_field"
	CmdClarify   = "clarify"
)

// Command is the only outbound message shape sent to clients.
type Command struct {
	Type    string `json:"type"`
	Field   string `json:"field_name"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
	Retry   bool   `json:"retry,omitempty"`
}

func FillField(field, value string) Command {
	return Command{Type: CmdFillField, Field: field, Value: value}
}

func Clarify(field, message string) Command {
	return Command{Type: CmdClarify, Field: field, Message: message, Retry: true}
}

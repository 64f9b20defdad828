package activity

import (
	"encoding/json"
	"fmt"

	"crm-pipeline/internal/models"
	"crm-pipeline/internal/validation"
)

// Payload is the kind-specific part of an activity. Each kind has exactly one
// payload type.
type Payload interface {
	Kind() models.ActivityKind
}

type StatusChange struct {
	Status models.LeadStatus `json:"status"`

	// Lane move that caused the change, if any.
	ColumnID         *uint `json:"columnId,omitempty"`
	PreviousColumnID *uint `json:"previousColumnId,omitempty"`
}

type PipelineChange struct {
	Pipeline models.Pipeline `json:"pipeline"`

	ColumnID         *uint `json:"columnId,omitempty"`
	PreviousColumnID *uint `json:"previousColumnId,omitempty"`
}

type Note struct {
	Private bool `json:"private,omitempty"`
}

type Email struct {
	Subject   string   `json:"subject"`
	To        string   `json:"to"`
	From      string   `json:"from,omitempty"`
	CC        []string `json:"cc,omitempty"`
	MessageID string   `json:"messageId,omitempty"`
}

type File struct {
	FileName string `json:"fileName"`
	URL      string `json:"url"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

type Message struct {
	Platform  string           `json:"platform"`
	Direction models.Direction `json:"direction"`
	Status    string           `json:"status,omitempty"`
	Content   string           `json:"content,omitempty"`
}

func (StatusChange) Kind() models.ActivityKind   { return models.ActivityStatus }
func (PipelineChange) Kind() models.ActivityKind { return models.ActivityPipeline }
func (Note) Kind() models.ActivityKind           { return models.ActivityNote }
func (Email) Kind() models.ActivityKind          { return models.ActivityEmail }
func (File) Kind() models.ActivityKind           { return models.ActivityFile }
func (Message) Kind() models.ActivityKind        { return models.ActivityMessage }

// Entry is a decoded request to append one activity.
type Entry struct {
	Payload       Payload
	Notes         string
	InteractionID *uint
}

// PrivateNote builds the internal note other ledgers append next to their own rows.
func PrivateNote(text string) Entry {
	return Entry{Payload: Note{Private: true}, Notes: text}
}

type request struct {
	Status        models.LeadStatus `json:"status"`
	Pipeline      models.Pipeline   `json:"pipeline"`
	Notes         string            `json:"notes"`
	InteractionID *uint             `json:"interactionId"`
	Metadata      json.RawMessage   `json:"metadata"`
}

// Decode validates raw against the schema of kind and turns it into an Entry.
// Nothing is written; an unknown kind or a payload that does not match its
// schema is a validation error.
func Decode(kind models.ActivityKind, raw []byte) (Entry, error) {
	if !kind.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := validation.Validate("activity."+string(kind), raw); err != nil {
		return Entry{}, err
	}

	var req request
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			return Entry{}, models.Invalid("", "malformed payload: %v", err)
		}
	}

	entry := Entry{Notes: req.Notes, InteractionID: req.InteractionID}
	switch kind {
	case models.ActivityStatus:
		entry.Payload = StatusChange{Status: req.Status}
	case models.ActivityPipeline:
		entry.Payload = PipelineChange{Pipeline: req.Pipeline}
	case models.ActivityNote:
		var p Note
		if err := decodeMetadata(req.Metadata, &p); err != nil {
			return Entry{}, err
		}
		entry.Payload = p
	case models.ActivityEmail:
		var p Email
		if err := decodeMetadata(req.Metadata, &p); err != nil {
			return Entry{}, err
		}
		entry.Payload = p
	case models.ActivityFile:
		var p File
		if err := decodeMetadata(req.Metadata, &p); err != nil {
			return Entry{}, err
		}
		entry.Payload = p
	case models.ActivityMessage:
		var p Message
		if err := decodeMetadata(req.Metadata, &p); err != nil {
			return Entry{}, err
		}
		entry.Payload = p
	}
	return entry, nil
}

func decodeMetadata(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return models.Invalid("metadata", "%v", err)
	}
	return nil
}

// Validate checks an Entry built in code rather than decoded from JSON.
func (e Entry) Validate() error {
	switch p := e.Payload.(type) {
	case nil:
		return ErrMissingPayload
	case StatusChange:
		if !p.Status.Valid() {
			return models.Invalid("status", "unknown status %q", p.Status)
		}
	case PipelineChange:
		if !p.Pipeline.Valid() {
			return models.Invalid("pipeline", "unknown pipeline %q", p.Pipeline)
		}
	case Email:
		if p.Subject == "" || p.To == "" {
			return models.Invalid("metadata", "email requires subject and to")
		}
	case File:
		if p.FileName == "" || p.URL == "" {
			return models.Invalid("metadata", "file requires fileName and url")
		}
	case Message:
		if p.Platform == "" || !p.Direction.Valid() {
			return models.Invalid("metadata", "message requires platform and direction in|out")
		}
	}
	return nil
}

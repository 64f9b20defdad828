package interaction

import (
	"encoding/json"
	"strings"
	"time"

	"crm-pipeline/internal/models"
	"crm-pipeline/internal/validation"
)

// MessageData is the part only message interactions carry.
type MessageData struct {
	Platform   string           `json:"platform"`
	Direction  models.Direction `json:"direction"`
	Status     string           `json:"status,omitempty"`
	ExternalID string           `json:"externalId,omitempty"`
}

type RecordRequest struct {
	Type        models.InteractionType `json:"type"`
	Category    string                 `json:"category"`
	Priority    models.Priority        `json:"priority"`
	Notes       string                 `json:"notes"`
	Tags        []string               `json:"tags"`
	Attachments []models.Attachment    `json:"attachments"`
	IsPrivate   bool                   `json:"isPrivate"`

	NextFollowUp *time.Time     `json:"nextFollowUp"`
	Metadata     map[string]any `json:"metadata"`
	MessageData  *MessageData   `json:"messageData"`
}

// Inbound reports whether the interaction is a message from the customer.
func (r *RecordRequest) Inbound() bool {
	return r.Type == models.InteractionMessage && r.MessageData != nil && r.MessageData.Direction == models.DirectionIn
}

// Decode validates raw against the schema for its type and decodes it.
func Decode(raw []byte) (RecordRequest, error) {
	var head struct {
		Type models.InteractionType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return RecordRequest{}, models.Invalid("", "malformed payload: %v", err)
	}

	schema := "interaction.default"
	if head.Type == models.InteractionMessage {
		schema = "interaction.message"
	}
	if err := validation.Validate(schema, raw); err != nil {
		return RecordRequest{}, err
	}

	var req RecordRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return RecordRequest{}, models.Invalid("", "malformed payload: %v", err)
	}
	if err := req.normalize(); err != nil {
		return RecordRequest{}, err
	}
	return req, nil
}

func (r *RecordRequest) normalize() error {
	if !r.Type.Valid() {
		return ErrUnknownType
	}
	if r.Priority == "" {
		r.Priority = models.PriorityMedium
	}
	if !r.Priority.Valid() {
		return ErrInvalidPriority
	}
	r.Category = strings.TrimSpace(r.Category)
	if len([]rune(r.Category)) > 50 {
		return ErrCategoryTooLong
	}

	if r.Type == models.InteractionMessage {
		if r.MessageData == nil || r.MessageData.Platform == "" || !r.MessageData.Direction.Valid() {
			return ErrMissingMessage
		}
		if strings.TrimSpace(r.Notes) == "" {
			return ErrMissingContent
		}
	} else {
		r.MessageData = nil
	}
	return nil
}

// metadata folds messageData into the stored metadata object.
func (r *RecordRequest) metadata() ([]byte, error) {
	meta := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		meta[k] = v
	}
	if r.MessageData != nil {
		meta["messageData"] = r.MessageData
	}
	if len(meta) == 0 {
		return nil, nil
	}
	return json.Marshal(meta)
}

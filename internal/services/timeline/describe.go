package timeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"crm-pipeline/internal/models"
)

const unknown = "unknown"

type meta map[string]any

// parseMeta never fails: unreadable metadata reads as empty.
func parseMeta(raw []byte) meta {
	m := meta{}
	if len(raw) == 0 {
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return meta{}
	}
	return m
}

func (m meta) str(key, fallback string) string {
	if v, ok := m[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func (m meta) sub(key string) meta {
	if v, ok := m[key].(map[string]any); ok {
		return meta(v)
	}
	return meta{}
}

func (m meta) flag(key string) bool {
	v, _ := m[key].(bool)
	return v
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func describeActivity(a *models.Activity) (string, string) {
	m := parseMeta(a.Metadata)
	switch a.Kind {
	case models.ActivityStatus:
		return fmt.Sprintf("Updated Stage: %s → %s",
			orDefault(string(a.PreviousStatus), unknown), orDefault(string(a.Status), unknown)), "flag"
	case models.ActivityPipeline:
		return fmt.Sprintf("Changed Pipeline: %s → %s",
			orDefault(string(a.PreviousPipeline), unknown), orDefault(string(a.Pipeline), unknown)), "git-branch"
	case models.ActivityNote:
		return orDefault(a.Notes, "Note added"), "sticky-note"
	case models.ActivityEmail:
		return "Email: " + m.str("subject", "(no subject)"), "mail"
	case models.ActivityFile:
		return "File: " + m.str("fileName", "(unnamed file)"), "paperclip"
	case models.ActivityMessage:
		return fmt.Sprintf("%s: %s", m.str("platform", "message"), m.str("content", orDefault(a.Notes, "(no content)"))), "message-circle"
	}
	return orDefault(a.Notes, "Activity"), "activity"
}

func describeInteraction(i *models.Interaction) (string, string) {
	notes := orDefault(i.Notes, "(no notes)")
	switch i.Type {
	case models.InteractionMessage:
		md := parseMeta(i.Metadata).sub("messageData")
		return fmt.Sprintf("%s: %s", md.str("platform", "message"), notes), "message-circle"
	case models.InteractionCall:
		return "Call: " + notes, "phone"
	case models.InteractionMeeting:
		return "Meeting: " + notes, "calendar"
	case models.InteractionEmail:
		return "Email: " + notes, "mail"
	case models.InteractionFile:
		return "File: " + notes, "paperclip"
	case models.InteractionNote:
		return notes, "sticky-note"
	}
	return notes, "activity"
}

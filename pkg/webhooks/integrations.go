package webhooks

import (
	"fmt"
	"strings"

	"github.com/vincentdavis/league-gotta-bike/pkg/audit"
)

// SlackMessage is an incoming-webhook payload
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment is a colored block of fields
type SlackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Title  string       `json:"title,omitempty"`
	Text   string       `json:"text,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

// SlackField is one title/value pair
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// TeamsMessage is a connector MessageCard
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	Summary    string         `json:"summary,omitempty"`
	Title      string         `json:"title,omitempty"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

// TeamsSection groups facts
type TeamsSection struct {
	Facts []TeamsFact `json:"facts,omitempty"`
	Text  string      `json:"text,omitempty"`
}

// TeamsFact is one name/value pair
type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type fact struct{ name, value string }

func eventFacts(e *audit.Event) []fact {
	facts := []fact{
		{"Organization", fmt.Sprintf("%d", e.OrganizationID)},
		{"Subject", fmt.Sprintf("%s %d", e.SubjectType, e.SubjectID)},
		{"Actor", actorName(e.ActorID)},
	}
	if e.FromState != "" || e.ToState != "" {
		facts = append(facts, fact{"Change", fmt.Sprintf("%s → %s", orNone(e.FromState), orNone(e.ToState))})
	}
	facts = append(facts, fact{"Time", e.Timestamp.Format("2006-01-02 15:04:05 MST")})
	return facts
}

// FormatSlackMessage renders an audit event for Slack
func FormatSlackMessage(e *audit.Event) SlackMessage {
	facts := eventFacts(e)
	fields := make([]SlackField, 0, len(facts))
	for _, f := range facts {
		fields = append(fields, SlackField{Title: f.name, Value: f.value, Short: true})
	}
	return SlackMessage{
		Attachments: []SlackAttachment{{
			Color:  slackColor(e.Type),
			Title:  EventTitle(e.Type),
			Text:   e.Message,
			Fields: fields,
		}},
	}
}

// FormatTeamsMessage renders an audit event for Microsoft Teams
func FormatTeamsMessage(e *audit.Event) TeamsMessage {
	title := EventTitle(e.Type)
	facts := eventFacts(e)
	tf := make([]TeamsFact, 0, len(facts))
	for _, f := range facts {
		tf = append(tf, TeamsFact{Name: f.name, Value: f.value})
	}
	return TeamsMessage{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		Summary:    title,
		Title:      title,
		ThemeColor: teamsColor(e.Type),
		Sections:   []TeamsSection{{Facts: tf, Text: e.Message}},
	}
}

// EventTitle turns "registration.approved" into "Registration approved"
func EventTitle(t audit.EventType) string {
	s := strings.NewReplacer(".", " ", "_", " ").Replace(string(t))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func actorName(id *int64) string {
	if id == nil {
		return "system"
	}
	return fmt.Sprintf("user %d", *id)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

type tone int

const (
	toneInfo tone = iota
	toneGood
	toneWarn
	toneBad
)

func eventTone(t audit.EventType) tone {
	switch t {
	case audit.EventMembershipJoinApproved, audit.EventRegistrationApproved, audit.EventImportCompleted:
		return toneGood
	case audit.EventMembershipJoinRequested, audit.EventRegistrationRequested:
		return toneWarn
	case audit.EventMembershipJoinRejected, audit.EventMembershipRemoved,
		audit.EventRegistrationRejected, audit.EventRegistrationCancelled:
		return toneBad
	}
	return toneInfo
}

func slackColor(t audit.EventType) string {
	switch eventTone(t) {
	case toneGood:
		return "good"
	case toneWarn:
		return "warning"
	case toneBad:
		return "danger"
	}
	return "#439FE0"
}

func teamsColor(t audit.EventType) string {
	switch eventTone(t) {
	case toneGood:
		return "2EB886"
	case toneWarn:
		return "DAA038"
	case toneBad:
		return "A30200"
	}
	return "439FE0"
}

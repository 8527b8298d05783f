package websocket

import (
	"github.com/stemsi/hoa-backend/internal/model"
)

// Actions (client -> server)

type Action string

const (
	ActionAnswer     Action = "answer"
	ActionNavigate   Action = "navigate"
	ActionSubmit     Action = "submit"
	ActionVisibility Action = "visibility"
	ActionPing       Action = "ping"
)

// RequestPayload is every client message. Which fields matter depends on
// Action:
//
//	{"action":"answer","q":0,"text":"Electron"}
//	{"action":"answer","q":1,"choices":["Air","Salt solution"]}
//	{"action":"navigate","q":1}
//	{"action":"visibility","hidden":true,"kind":"tab_switch"}
//	{"action":"submit"}
type RequestPayload struct {
	Action  Action               `json:"action"`
	Q       *int                 `json:"q,omitempty"`
	Text    *string              `json:"text,omitempty"`
	Choices []string             `json:"choices,omitempty"`
	Hidden  bool                 `json:"hidden,omitempty"`
	Kind    model.VisibilityKind `json:"kind,omitempty"`
}

// AnswerValue returns the answer carried by an answer action.
func (p RequestPayload) AnswerValue() model.AnswerValue {
	return model.AnswerValue{Text: p.Text, Choices: p.Choices}
}

// Signal returns the visibility signal carried by a visibility action.
func (p RequestPayload) Signal() model.VisibilitySignal {
	kind := p.Kind
	if kind == "" {
		kind = model.VisibilityTabSwitch
	}
	return model.VisibilitySignal{Hidden: p.Hidden, Kind: kind}
}

// Events (server -> client)

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// Message is the envelope of every server message.
type Message struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// TickData is sent once per second while the attempt runs.
type TickData struct {
	Remaining int `json:"remaining_seconds"`
}

// ErrorData mirrors the HTTP error body.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

package worker

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-officehours-client/internal/utils"
)

// Defaults used when a push arrives without a usable payload
const (
	DefaultTitle = "Office Hours"
	DefaultBody  = "You have a new notification"
	DefaultIcon  = "/icon-192x192.png"
	DefaultURL   = "/"
)

// Payload is the JSON document the backend pushes
type Payload struct {
	Head               string   `json:"head"`
	Body               string   `json:"body"`
	Icon               string   `json:"icon,omitempty"`
	Tag                string   `json:"tag,omitempty"`
	RequireInteraction bool     `json:"requireInteraction,omitempty"`
	URL                string   `json:"url,omitempty"`
	Actions            []Action `json:"actions,omitempty"`
}

// Action is a button on a notification
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// Notification is what the worker asks the Notifier to display
type Notification struct {
	ID                 string
	Title              string
	Body               string
	Icon               string
	Tag                string
	RequireInteraction bool
	URL                string
	Actions            []Action
}

// Defaults fill in what a payload leaves out
type Defaults struct {
	Title string
	Body  string
	Icon  string
	URL   string
}

// BuildNotification turns push data into a notification. Empty data yields the
// defaults; data that is not a JSON payload is shown as the body text.
func BuildNotification(data []byte, d Defaults) Notification {
	n := Notification{
		ID:    uuid.NewString(),
		Title: d.Title,
		Body:  d.Body,
		Icon:  d.Icon,
		URL:   d.URL,
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return n
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		n.Body = text
		return n
	}
	n.Title = utils.FirstNonEmpty(p.Head, d.Title)
	n.Body = utils.FirstNonEmpty(p.Body, d.Body)
	n.Icon = utils.FirstNonEmpty(p.Icon, d.Icon)
	n.URL = utils.FirstNonEmpty(p.URL, d.URL)
	n.Tag = p.Tag
	n.RequireInteraction = p.RequireInteraction
	n.Actions = p.Actions
	return n
}

package worker

// Message is anything the worker mailbox accepts
type Message interface {
	isMessage()
}

// PushEvent carries a decrypted push payload. Data may be empty.
type PushEvent struct {
	Data []byte
}

// SkipWaiting is the control message that activates a waiting worker
type SkipWaiting struct{}

// NotificationClick reports a click on a displayed notification. Action is
// empty for a click on the notification body.
type NotificationClick struct {
	Notification Notification
	Action       string
}

func (PushEvent) isMessage()         {}
func (SkipWaiting) isMessage()       {}
func (NotificationClick) isMessage() {}

// Lifecycle is the worker's activation phase
type Lifecycle string

const (
	LifecycleWaiting Lifecycle = "waiting"
	LifecycleActive  Lifecycle = "active"
)

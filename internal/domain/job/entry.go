package job

import (
	"encoding/json"
	"time"
)

// Event names the reason a log entry was written.
type Event string

const (
	EventDispatch     Event = "dispatch"
	EventCancelled    Event = "cancelled"
	EventLimitReached Event = "limit_reached"
)

// Payload is the structured data carried by a log entry.
type Payload struct {
	Event   Event    `json:"event"`
	Title   string   `json:"title,omitempty"`
	Request string   `json:"request,omitempty"`
	Result  Response `json:"result,omitempty"`
	Error   string   `json:"error,omitempty"`
	Message string   `json:"message,omitempty"`
}

// DispatchPayload builds the entry written for one dispatched request.
func DispatchPayload(req Request, resp Response, err error) Payload {
	p := Payload{Event: EventDispatch, Title: req.DisplayTitle(), Request: req.URL}
	if err != nil {
		p.Error = err.Error()
		return p
	}
	p.Result = resp
	return p
}

// Entry is one immutable record in a job's log.
type Entry struct {
	Seq       uint64    `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	JobID     string    `json:"requestId"`
	Payload   Payload   `json:"data"`
}

// ArchivedEntry is an entry read back from the history archive.
type ArchivedEntry struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	JobID     string          `json:"requestId"`
	Event     Event           `json:"event"`
	Payload   json.RawMessage `json:"data"`
}

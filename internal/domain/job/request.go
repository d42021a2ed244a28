// Package job holds the domain types shared by the dispatcher, the log store,
// the scheduler and the registration use case.
package job

import "maps"

// Kind distinguishes jobs that run at once from jobs armed on a timer.
type Kind int

const (
	// Immediate jobs run synchronously inside the registration call.
	Immediate Kind = iota
	// Scheduled jobs run at a time of day, optionally repeating.
	Scheduled
)

func (k Kind) String() string {
	if k == Scheduled {
		return "scheduled"
	}
	return "immediate"
}

// Request describes one outbound HTTP call.
type Request struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Cookies string            `json:"cookies"`
	Body    string            `json:"data"`
	Title   string            `json:"title,omitempty"`
}

// DisplayTitle returns the title used in log entries.
func (r Request) DisplayTitle() string {
	if r.Title == "" {
		return "Untitled"
	}
	return r.Title
}

// Clone returns a copy that shares no mutable state with r.
func (r Request) Clone() Request {
	c := r
	if r.Headers != nil {
		c.Headers = maps.Clone(r.Headers)
	}
	return c
}

// CloneAll copies a batch so later mutation by the caller cannot leak into a job.
func CloneAll(reqs []Request) []Request {
	out := make([]Request, len(reqs))
	for i, r := range reqs {
		out[i] = r.Clone()
	}
	return out
}

package job

import "encoding/json"

// Response is the normalized outcome of a dispatched request that got an answer.
// It is either a StructuredResponse or a RawResponse.
type Response interface {
	StatusCode() int
	isResponse()
}

// StructuredResponse holds a response body that parsed as JSON.
type StructuredResponse struct {
	Status int
	Data   json.RawMessage
}

// RawResponse holds a response body that was not JSON.
type RawResponse struct {
	Status int
	Text   string
}

func (r StructuredResponse) StatusCode() int { return r.Status }
func (r RawResponse) StatusCode() int        { return r.Status }

func (StructuredResponse) isResponse() {}
func (RawResponse) isResponse()        {}

// NewResponse classifies a body: valid JSON becomes structured, anything else raw.
func NewResponse(status int, body []byte) Response {
	if json.Valid(body) {
		return StructuredResponse{Status: status, Data: json.RawMessage(append([]byte(nil), body...))}
	}
	return RawResponse{Status: status, Text: string(body)}
}

// MarshalJSON renders the parsed document itself.
func (r StructuredResponse) MarshalJSON() ([]byte, error) {
	if len(r.Data) == 0 {
		return []byte("null"), nil
	}
	return r.Data, nil
}

// MarshalJSON renders the fallback shape {"raw": text, "status": code}.
func (r RawResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Raw    string `json:"raw"`
		Status int    `json:"status"`
	}{r.Text, r.Status})
}

// Outcome is the per-request result of one firing.
type Outcome struct {
	Success bool     `json:"success"`
	Data    Response `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Succeeded counts successful outcomes.
func Succeeded(outs []Outcome) int {
	n := 0
	for _, o := range outs {
		if o.Success {
			n++
		}
	}
	return n
}

package job

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "20:00", want: TimeOfDay{20, 0, 0}},
		{in: "20:00:05", want: TimeOfDay{20, 0, 5}},
		{in: " 7:5:9 ", want: TimeOfDay{7, 5, 9}},
		{in: "00:00:00", want: TimeOfDay{}},
		{in: "23:59:59", want: TimeOfDay{23, 59, 59}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12:00:60", wantErr: true},
		{in: "12", wantErr: true},
		{in: "12:00:00:00", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "12::00", wantErr: true},
		{in: "-1:00", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeOfDay_Format(t *testing.T) {
	tod := TimeOfDay{Hour: 8, Minute: 5, Second: 3}
	assert.Equal(t, "08:05:03", tod.String())
	assert.Equal(t, "3 5 8 * * *", tod.CronSpec())
}

func TestNewResponse(t *testing.T) {
	structured := NewResponse(201, []byte(`{"ok":true}`))
	require.IsType(t, StructuredResponse{}, structured)
	assert.Equal(t, 201, structured.StatusCode())
	b, err := json.Marshal(structured)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(b))

	raw := NewResponse(502, []byte("<html>bad gateway</html>"))
	require.IsType(t, RawResponse{}, raw)
	b, err = json.Marshal(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"raw":"<html>bad gateway</html>","status":502}`, string(b))

	empty := NewResponse(204, nil)
	assert.Equal(t, RawResponse{Status: 204, Text: ""}, empty)
}

func TestNewResponse_CopiesBody(t *testing.T) {
	body := []byte(`[1,2]`)
	resp := NewResponse(200, body).(StructuredResponse)
	body[1] = '9'
	assert.Equal(t, `[1,2]`, string(resp.Data))
}

func TestDispatchPayload(t *testing.T) {
	req := Request{URL: "https://example.test/reg", Title: "Math"}

	ok := DispatchPayload(req, RawResponse{Status: 200, Text: "done"}, nil)
	assert.Equal(t, EventDispatch, ok.Event)
	assert.Equal(t, "Math", ok.Title)
	assert.Equal(t, req.URL, ok.Request)
	assert.Empty(t, ok.Error)

	failed := DispatchPayload(Request{URL: "https://x.test"}, nil, errors.New("connection refused"))
	assert.Equal(t, "Untitled", failed.Title)
	assert.Equal(t, "connection refused", failed.Error)
	assert.Nil(t, failed.Result)

	b, err := json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"dispatch","title":"Untitled","request":"https://x.test","error":"connection refused"}`, string(b))
}

func TestRequest_Clone(t *testing.T) {
	orig := []Request{{URL: "u", Headers: map[string]string{"A": "1"}}}
	cp := CloneAll(orig)
	orig[0].Headers["A"] = "2"
	assert.Equal(t, "1", cp[0].Headers["A"])

	assert.Nil(t, Request{}.Clone().Headers)
}

func TestSucceeded(t *testing.T) {
	outs := []Outcome{{Success: true}, {Success: false, Error: "x"}, {Success: true}}
	assert.Equal(t, 2, Succeeded(outs))
	assert.Equal(t, "scheduled", Scheduled.String())
	assert.Equal(t, "immediate", Immediate.String())
}

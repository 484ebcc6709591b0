package log

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Transport is an http.RoundTripper that propagates X-Request-ID and logs
// every outbound call with its status and latency.
type Transport struct {
	Base http.RoundTripper
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	reqID := req.Header.Get(HeaderRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
		req = req.Clone(req.Context())
		req.Header.Set(HeaderRequestID, reqID)
	}

	l := Ctx(req.Context())
	resp, err := t.Base.RoundTrip(req)
	latency := float64(time.Since(start).Milliseconds())

	if err != nil {
		l.Warn().Err(err).
			Str(FieldRequestID, reqID).
			Str(FieldMethod, req.Method).
			Str(FieldURL, req.URL.Redacted()).
			Float64(FieldLatency, latency).
			Msg("outbound request failed")
		return nil, err
	}

	l.Debug().
		Str(FieldRequestID, reqID).
		Str(FieldMethod, req.Method).
		Str(FieldURL, req.URL.Redacted()).
		Int(FieldStatus, resp.StatusCode).
		Float64(FieldLatency, latency).
		Msg("outbound request completed")
	return resp, nil
}

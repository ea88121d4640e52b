package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"brickforge/internal/host"
)

type request struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID     int64           `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Level  string          `json:"level,omitempty"`
	Msg    string          `json:"msg,omitempty"`
}

type wireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Error kinds the bridge script reports. Anything else maps to
// host.ErrOperatorFailed.
const (
	kindUnknownOperator = "unknown-operator"
	kindBadKeyword      = "bad-keyword"
	kindOperatorFailed  = "operator-failed"
)

func (e *wireError) toError() error {
	if e == nil {
		return host.ErrOperatorFailed
	}
	message := strings.TrimSpace(e.Message)
	var marker error
	switch e.Kind {
	case kindUnknownOperator:
		marker = host.ErrUnknownOperator
	case kindBadKeyword:
		marker = host.ErrBadKeyword
	default:
		marker = host.ErrOperatorFailed
	}
	if message == "" {
		return marker
	}
	return fmt.Errorf("%w: %s", marker, message)
}

// decodeFrame parses one stdout line. Lines that are not protocol frames are
// host chatter and return ok=false.
func decodeFrame(line []byte) (response, bool) {
	trimmed := strings.TrimSpace(string(line))
	if !strings.HasPrefix(trimmed, "{") {
		return response{}, false
	}
	var resp response
	if err := json.Unmarshal([]byte(trimmed), &resp); err != nil {
		return response{}, false
	}
	if resp.ID == 0 && resp.Event == "" {
		return response{}, false
	}
	return resp, true
}

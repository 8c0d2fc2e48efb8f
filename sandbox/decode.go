package sandbox

import (
	"encoding/json"
	"strings"
)

// DecodeCallOutput reconstructs a marshalled call result from the raw
// outcome of one sandboxed execution. A timeout dominates any partial
// output. Otherwise stdout is scanned for the success sentinel, then the
// error sentinel; the payload on the sentinel line is parsed as JSON.
// A sentinel followed by malformed JSON yields StatusCrashed together
// with a *MalformedPayloadError, so a broken bridge is never mistaken
// for a callee failure. No sentinel at all is StatusCrashed as well.
func DecodeCallOutput(raw ExecuteResult) (CallResult, error) {
	result := CallResult{ExecuteResult: raw}

	if raw.TimedOut {
		result.Status = StatusTimedOut
		return result, nil
	}

	if payload, ok := sentinelPayload(raw.Stdout, successSentinel); ok {
		var value any
		if err := json.Unmarshal([]byte(payload), &value); err != nil {
			result.Status = StatusCrashed
			return result, &MalformedPayloadError{Payload: payload, Err: err}
		}
		result.Status = StatusSucceeded
		result.Value = value
		return result, nil
	}

	if payload, ok := sentinelPayload(raw.Stdout, errorSentinel); ok {
		var raised struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(payload), &raised); err != nil {
			result.Status = StatusCrashed
			return result, &MalformedPayloadError{Payload: payload, Err: err}
		}
		result.Status = StatusRaised
		result.Raised = &RaisedError{Type: raised.Type, Message: raised.Message}
		return result, nil
	}

	result.Status = StatusCrashed
	return result, nil
}

// sentinelPayload returns the text between the first occurrence of the
// sentinel and the end of its line. The harness prints the payload as a
// single line and as its final statement, so end-of-line and
// end-of-stream coincide for well-formed output.
func sentinelPayload(stdout, sentinel string) (string, bool) {
	idx := strings.Index(stdout, sentinel)
	if idx < 0 {
		return "", false
	}
	rest := stdout[idx+len(sentinel):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest), true
}

// Package wsclose describes WebSocket close codes in plain words.
package wsclose

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var reasons = map[int]string{
	websocket.CloseNormalClosure:   "Normal closure.",
	websocket.CloseAbnormalClosure: "Abnormal closure.",
	websocket.ClosePolicyViolation: "Protocol error.",
	websocket.CloseServiceRestart:  "Service is restarting.",
}

// Reason returns a human-readable reason for a close code. Unknown codes
// get a generic reason that includes the code.
func Reason(code int) string {
	if r, ok := reasons[code]; ok {
		return r
	}
	return fmt.Sprintf("Unspecified connection closure reason, code=%d.", code)
}

// ReasonFromError describes err when it carries a WebSocket close frame.
// The second result is false for any other error.
func ReasonFromError(err error) (string, bool) {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return "", false
	}
	return Reason(ce.Code), true
}

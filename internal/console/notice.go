package console

import (
	"errors"
	"fmt"

	"github.com/alexsjones/agentconsole/internal/agentclient"
)

// NoticeKind classifies user feedback.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeError
)

// Notice is a message shown to the operator. Blocking notices are shown in a
// modal that must be dismissed.
type Notice struct {
	Kind     NoticeKind
	Text     string
	Blocking bool
}

// SaveSucceeded is the acknowledgment shown after a successful save.
func SaveSucceeded() Notice {
	return Notice{Kind: NoticeSuccess, Text: "Configuration saved!", Blocking: true}
}

// SaveFailed reports a failed save.
func SaveFailed(err error) Notice {
	return Notice{Kind: NoticeError, Text: "Save failed: " + Describe(err), Blocking: true}
}

// LoadFailed reports that the backend configuration could not be loaded.
func LoadFailed(err error) Notice {
	return Notice{Kind: NoticeError, Text: "Could not load configuration, using defaults: " + Describe(err)}
}

// ControlFailed reports a failed start or stop.
func ControlFailed(a Action, err error) Notice {
	return Notice{Kind: NoticeError, Text: fmt.Sprintf("Could not %s agent: %s", a, Describe(err))}
}

// StreamEnded reports that the log channel closed.
func StreamEnded(err error) Notice {
	if err == nil {
		return Notice{Kind: NoticeInfo, Text: "Log channel closed"}
	}
	return Notice{Kind: NoticeError, Text: "Log channel disconnected: " + Describe(err)}
}

// Describe renders err for the operator, preferring the backend status.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var se *agentclient.StatusError
	if errors.As(err, &se) {
		return se.Error()
	}
	if errors.Is(err, agentclient.ErrUnreachable) {
		return "agent backend unreachable"
	}
	return err.Error()
}

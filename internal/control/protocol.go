package control

import (
	"encoding/json"
	"fmt"
)

// Frame types sent by the IDE on the GUI control socket
const (
	FrameConnection = "connection"
)

// Frame is one JSON message on the control socket
type Frame struct {
	Event       string  `json:"event"`
	ProjectName *string `json:"projectName,omitempty"`
}

// ParseFrame decodes a control frame
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("invalid control frame: %w", err)
	}
	if f.Event == "" {
		return Frame{}, fmt.Errorf("control frame missing event")
	}
	return f, nil
}

package logger

import (
	"fmt"
	"time"

	"github.com/neoedge/gateway/internal/cache"
)

// hubPublisher is the minimal surface logger needs from the websocket hub
// — kept narrow so this package never imports internal/websocket directly.
type hubPublisher interface {
	Publish(nodeID string, payload cache.Payload)
}

// logNodeID is the synthetic cache key log lines are published under,
// distinct from any real tag's OPC UA node id.
const logNodeID = "_log"

// WireBroadcastToHub retargets the websocket bridge core at the gateway's
// own dashboard hub instead of a flow-engine LogPanel (DESIGN.md).
func WireBroadcastToHub(hub hubPublisher) {
	SetBroadcaster(func(level, message, source string, fields map[string]interface{}) {
		hub.Publish(logNodeID, cache.Payload{
			Name:   fmt.Sprintf("%s:%s", level, source),
			Value:  message,
			Time:   time.Now().Format("15:04:05"),
			Dir:    cache.DirInit,
			Status: cache.StatusOnline,
		})
	})
}

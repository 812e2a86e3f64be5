package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/offerscout/relay"
)

// Events returns a handler for GET /api/v1/events: a server-sent event
// stream of relay messages. ?request_id= narrows it to one query.
func Events(bus *relay.Bus) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, unsubscribe := bus.Subscribe()
		defer unsubscribe()

		filter := c.Query("request_id")

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(200)
		c.Writer.Flush()

		c.Stream(func(w io.Writer) bool {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return false
				}
				if filter != "" && msg.RequestID != filter {
					return true
				}
				c.SSEvent(msg.Action, msg)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}

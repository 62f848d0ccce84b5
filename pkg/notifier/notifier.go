package notifier

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Client announces state transitions to the notification sink. Delivery is
// strictly best-effort: Notify never blocks the caller and never reports an
// error back to it.
type Client interface {
	Notify(eventType string, data interface{})
}

type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

type notifierClient struct {
	logger  *logrus.Logger
	addr    string
	timeout time.Duration
}

func New(logger *logrus.Logger, host string, port int, timeout time.Duration) Client {
	return &notifierClient{
		logger:  logger,
		addr:    fmt.Sprintf("%s:%d", host, port),
		timeout: timeout,
	}
}

// Notify implements Client.
func (c *notifierClient) Notify(eventType string, data interface{}) {
	e := Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	go c.send(e)
}

func (c *notifierClient) send(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"object": "notifier",
			"type":   e.Type,
		}).Error(err)
		return
	}

	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"object": "notifier",
			"type":   e.Type,
			"addr":   c.addr,
		}).Error(err)
		return
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write(append(payload, '\n')); err != nil {
		c.logger.WithFields(logrus.Fields{
			"object": "notifier",
			"type":   e.Type,
			"addr":   c.addr,
		}).Error(err)
		return
	}

	c.logger.WithFields(logrus.Fields{
		"object": "notifier",
		"type":   e.Type,
	}).Debug("notification sent")
}

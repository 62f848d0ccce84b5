package stream

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestClientDeliversFramesAcrossChunks(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// split mid-frame on purpose
		conn.Write([]byte("{\"id\":\"A\"}\n{\"id\""))
		time.Sleep(10 * time.Millisecond)
		conn.Write([]byte(":\"B\"}\n"))
		time.Sleep(50 * time.Millisecond)
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	client := NewClient(testLogger(), "127.0.0.1", port, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 4)
	done := make(chan error, 1)

	go func() {
		done <- client.Listen(ctx, func(_ context.Context, message []byte) error {
			received <- string(message)
			return nil
		})
	}()

	assert.Equal(t, `{"id":"A"}`, <-received)
	assert.Equal(t, `{"id":"B"}`, <-received)

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop on cancellation")
	}
}

func TestClientRetriesUntilPeerAppears(t *testing.T) {
	// reserve a port, then release it so the first dials fail
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	client := NewClient(testLogger(), "127.0.0.1", port, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 1)
	go client.Listen(ctx, func(_ context.Context, message []byte) error {
		received <- string(message)
		return nil
	})

	time.Sleep(30 * time.Millisecond)

	ln, err = net.Listen("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("{\"id\":\"late\"}\n"))
		time.Sleep(50 * time.Millisecond)
	}()

	select {
	case msg := <-received:
		assert.Equal(t, `{"id":"late"}`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("client never reconnected")
	}
}

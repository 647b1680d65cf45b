package nats

import (
	"io"
	"log/slog"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectEmptyURL(t *testing.T) {
	conn, err := Connect("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Nil(t, conn)
}

func TestConnect(t *testing.T) {
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	srv.Start()
	defer srv.Shutdown()
	require.True(t, srv.ReadyForConnections(5*time.Second))

	conn, err := Connect(srv.ClientURL(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer conn.Close()

	sub, err := conn.SubscribeSync("ping")
	require.NoError(t, err)
	require.NoError(t, conn.Publish("ping", []byte("pong")))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(msg.Data))
}

func TestConnectUnreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

package ipc

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linuxsony/internal/headset"
	"linuxsony/internal/logging"
	"linuxsony/internal/protocol"
)

func startServer(t *testing.T, h Handler) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sock")
	srv, err := Listen(path, h, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return path
}

func TestCall_RoundTrip(t *testing.T) {
	var got []string
	path := startServer(t, func(req Request) Response {
		got = append(got, req.Command)
		if req.Command != CommandStatus {
			return Response{Error: fmt.Sprintf("unknown command: %q", req.Command)}
		}
		return Response{Connected: true, Device: "00:11:22:33:44:55"}
	})

	resp, err := Call(path, Request{Command: CommandStatus})
	require.NoError(t, err)
	assert.True(t, resp.Connected)
	assert.Equal(t, "00:11:22:33:44:55", resp.Device)

	resp, err = Call(path, Request{Command: "reboot"})
	require.NoError(t, err)
	assert.Contains(t, resp.Error, "unknown command")
	assert.Equal(t, []string{CommandStatus, "reboot"}, got)
}

func TestServer_InvalidRequest(t *testing.T) {
	path := startServer(t, func(Request) Response { return Response{} })

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	assert.Contains(t, resp.Error, "invalid request")
}

func TestCall_NoDaemon(t *testing.T) {
	_, err := Call(filepath.Join(t.TempDir(), "missing.sock"), Request{Command: CommandStatus})
	assert.Error(t, err)
}

func TestStatusFrom(t *testing.T) {
	st := headset.State{
		DeviceBattery: headset.SingleBattery{Level: 64, Charging: true},
		CaseBattery:   &headset.SingleBattery{Level: 10},
		Anc:           &protocol.AncSettings{Mode: protocol.AncAmbient, AmbientLevel: 17},
	}

	resp := StatusFrom("dev", st)
	assert.Equal(t, []Battery{
		{Name: "Device", Level: 64, Charging: true},
		{Name: "Case", Level: 10},
	}, resp.Batteries)
	require.NotNil(t, resp.Anc)
	assert.Equal(t, "Ambient", resp.Anc.Mode)
	assert.Equal(t, uint8(17), resp.Anc.AmbientLevel)

	out, err := json.Marshal(StatusFrom("dev", headset.State{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"connected":true,"device":"dev"}`, string(out))
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthview/tabletop/internal/bridge"
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/gateway"
)

// syncBuffer is a buffer safe to read while the command goroutine writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var wsURLPattern = regexp.MustCompile(`ws://[^\s]+/ws`)

func TestHost_ServesBootstrapAndSavesOnShutdown(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "board.db")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := NewRootCommand()
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"host", "--db", db, "--listen", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
	}()

	// Wait for the server to announce its bound address.
	var url string
	require.Eventually(t, func() bool {
		url = wsURLPattern.FindString(out.String())
		return url != ""
	}, 5*time.Second, 10*time.Millisecond, "host never printed its address")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The first frame is the full board image.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env bridge.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, bridge.EventBootstrap, env.Event)

	facts, err := fact.DecodeFacts(fact.DefaultSchema(), env.Payload)
	require.NoError(t, err)
	assert.NotEmpty(t, facts, "bootstrap carries the seeded board")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("host did not stop after cancel")
	}

	// The graceful shutdown saved the board.
	gw, err := gateway.Open(db)
	require.NoError(t, err)
	defer gw.Close()

	releases, err := gw.Releases(context.Background())
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Equal(t, fact.Release, releases[0].Release)
}

func TestHost_BadListenAddress(t *testing.T) {
	db := filepath.Join(t.TempDir(), "board.db")

	_, err := runCommand(t, "host", "--db", db, "--listen", "127.0.0.1:99999")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to listen")
}

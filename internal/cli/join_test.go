package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthview/tabletop/internal/bridge"
	"github.com/hearthview/tabletop/internal/fact"
)

func TestJoin_MirrorsUntilHostCloses(t *testing.T) {
	payload, err := fact.EncodeFacts([]fact.Fact{
		{Entity: "key-1", Attr: fact.AttrIdent, Value: fact.String(fact.IdentRoot)},
	})
	require.NoError(t, err)
	bootstrap, err := json.Marshal(bridge.Envelope{Event: bridge.EventBootstrap, Payload: payload})
	require.NoError(t, err)

	// A minimal host: one bootstrap frame, then a clean close.
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		if err := conn.WriteMessage(websocket.TextMessage, bootstrap); err != nil {
			t.Errorf("write bootstrap: %v", err)
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			t.Errorf("write close: %v", err)
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	output, err := runCommand(t, "join", url)
	require.NoError(t, err)
	assert.Contains(t, output, "Mirroring board from "+url)
}

func TestJoin_DialFailure(t *testing.T) {
	_, err := runCommand(t, "join", "ws://127.0.0.1:1/ws")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to dial host")
}

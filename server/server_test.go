package server

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

	"github.com/contoso/salesagent/agent"
	"github.com/contoso/salesagent/model"
	"github.com/contoso/salesagent/runner"
	"github.com/contoso/salesagent/session"
)

func newTestServer(t *testing.T, llm model.Model) *Server {
	t.Helper()
	a := agent.New("sales-agent", llm, func(o *agent.Options) {
		o.Instruction = agent.NewInstructionFromText("You are a sales assistant.")
	})
	r := runner.New(a, func(o *runner.Options) {
		o.SessionStore = session.NewInMemoryStore()
	})
	return New(r)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, model.NewMockModel("mock", "mock"))
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestWebsocketConversation(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("hello", "hi")

	s := newTestServer(t, llm)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	conn := dialWS(t, ts)

	hello := readMessage(t, conn)
	require.Equal(t, "session", hello.Type)
	require.NotEmpty(t, hello.SessionID)

	require.NoError(t, conn.WriteJSON(Message{Type: "text", Content: "hello"}))

	var tokens []string
	var final string
	for {
		msg := readMessage(t, conn)
		switch msg.Type {
		case "token":
			tokens = append(tokens, msg.Content)
		case "message":
			final = msg.Content
		case "done":
			goto done
		case "error":
			t.Fatalf("unexpected error message: %s", msg.Content)
		}
	}
done:
	assert.Equal(t, "hi", strings.Join(tokens, ""))
	// streamed turns terminate with the final accumulated text
	assert.Equal(t, "hi", final)
}

func TestWebsocketToolEvents(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddToolCall(model.MockToolCall{
		Trigger:   "revenue",
		ID:        "call-1",
		Name:      "fetch_sales_data_using_sqlite_query",
		Arguments: `{"query":"SELECT 1"}`,
		FollowUp:  "It is 42.",
	})

	s := newTestServer(t, llm)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	conn := dialWS(t, ts)
	readMessage(t, conn) // session hello

	require.NoError(t, conn.WriteJSON(Message{Type: "text", Content: "revenue"}))

	var sawToolCall, sawToolResult bool
	for {
		msg := readMessage(t, conn)
		switch msg.Type {
		case "tool_call":
			sawToolCall = true
			assert.Equal(t, "fetch_sales_data_using_sqlite_query", msg.Name)
		case "tool_result":
			sawToolResult = true
		case "done":
			goto done
		case "error":
			t.Fatalf("unexpected error message: %s", msg.Content)
		}
	}
done:
	assert.True(t, sawToolCall)
	assert.True(t, sawToolResult)
}

func TestWebsocketRejectsUnknownType(t *testing.T) {
	s := newTestServer(t, model.NewMockModel("mock", "mock"))
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	conn := dialWS(t, ts)
	readMessage(t, conn) // session hello

	require.NoError(t, conn.WriteJSON(Message{Type: "audio", Content: "x"}))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
}

func TestClientWriteAfterUnregister(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	client := &Client{Hub: hub, Send: make(chan []byte, 4), SessionID: "s1"}
	hub.register <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.unregister <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	// A handler still streaming a run must get a clean refusal, not a panic
	// on the closed send channel.
	assert.NotPanics(t, func() {
		assert.False(t, client.Write([]byte(`{"type":"token"}`)))
	})
	assert.NotPanics(t, client.closeSend)
}

func TestClientWriteFullBuffer(t *testing.T) {
	client := &Client{Send: make(chan []byte, 1)}
	assert.True(t, client.Write([]byte("a")))
	assert.False(t, client.Write([]byte("b")))
}

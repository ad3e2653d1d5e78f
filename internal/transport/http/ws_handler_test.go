package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/gridspace/gridspace-server/internal/auth"
	"github.com/gridspace/gridspace-server/internal/config"
	"github.com/gridspace/gridspace-server/internal/core"
	"github.com/gridspace/gridspace-server/internal/proto"
	"github.com/gridspace/gridspace-server/internal/store"
	"github.com/gridspace/gridspace-server/internal/store/sqlite"
)

type testServer struct {
	ts     *httptest.Server
	auth   *auth.Service
	store  *sqlite.SQLiteStore
	spawns chan [2]int
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	})

	// Scripted spawn points keep proximity geometry deterministic.
	spawns := make(chan [2]int, 16)
	hub := core.NewHub(st, nil, core.Options{
		Spawn: func(*store.Space) (int, int) {
			at := <-spawns
			return at[0], at[1]
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	disabledLogger := zerolog.Nop()
	server := NewServer(hub, authService, st, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, auth: authService, store: st, spawns: spawns}
}

func (s *testServer) wsURL() string {
	return strings.Replace(s.ts.URL, "http", "ws", 1) + "/ws"
}

// registerUser creates an account and a space owned by it, returning the token.
func (s *testServer) registerUser(t *testing.T, username string) string {
	t.Helper()

	token, err := s.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return token
}

func (s *testServer) createSpace(t *testing.T, name string) *store.Space {
	t.Helper()

	owner, err := s.store.CreateUser(context.Background(), name+"-owner", "hash")
	if err != nil {
		t.Fatalf("failed to create owner: %v", err)
	}
	space, err := s.store.CreateSpace(context.Background(), name, 10, 10, owner.ID)
	if err != nil {
		t.Fatalf("failed to create space: %v", err)
	}
	return space
}

type outboundFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readFrame reads frames until one of the wanted type arrives.
func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) outboundFrame {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read while waiting for %q: %v", wantType, err)
		}
		if frame.Type == wantType {
			return frame
		}
	}
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s data: %v", frameType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: payload}); err != nil {
		t.Fatalf("write %s frame: %v", frameType, err)
	}
}

// dialAndJoin connects a client and joins it to the space at the given cell.
func dialAndJoin(t *testing.T, ctx context.Context, s *testServer, token, spaceID string, x, y int) (*websocket.Conn, proto.SpaceJoinedData) {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, s.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	s.spawns <- [2]int{x, y}
	sendFrame(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{SpaceID: spaceID, Token: token})

	frame := readFrame(t, ctx, conn, proto.OutboundTypeSpaceJoined)
	var joined proto.SpaceJoinedData
	if err := json.Unmarshal(frame.Data, &joined); err != nil {
		t.Fatalf("unmarshal space-joined: %v", err)
	}
	return conn, joined
}

func TestHealthEndpoint(t *testing.T) {
	s := startTestServer(t)

	resp, err := s.ts.Client().Get(s.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketRequiresJoinFirst(t *testing.T) {
	s := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, s.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	sendFrame(t, ctx, conn, proto.InboundTypeMove, proto.MoveData{X: 1, Y: 0})

	frame := readFrame(t, ctx, conn, proto.OutboundTypeError)
	if frame.Error == nil || frame.Error.Code != core.ErrCodeAuthenticationFailed {
		t.Fatalf("expected authentication_failed, got %+v", frame.Error)
	}
}

func TestWebSocketRejectsInvalidToken(t *testing.T) {
	s := startTestServer(t)
	space := s.createSpace(t, "office")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, s.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	sendFrame(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{SpaceID: space.ID, Token: "garbage"})

	frame := readFrame(t, ctx, conn, proto.OutboundTypeError)
	if frame.Error == nil || frame.Error.Code != core.ErrCodeAuthenticationFailed {
		t.Fatalf("expected authentication_failed, got %+v", frame.Error)
	}
}

func TestWebSocketJoinUnknownSpace(t *testing.T) {
	s := startTestServer(t)
	token := s.registerUser(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, s.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	sendFrame(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{SpaceID: "no-such-space", Token: token})

	frame := readFrame(t, ctx, conn, proto.OutboundTypeError)
	if frame.Error == nil || frame.Error.Code != core.ErrCodeSpaceNotFound {
		t.Fatalf("expected space_not_found, got %+v", frame.Error)
	}
}

func TestWebSocketPresenceAndProximityCall(t *testing.T) {
	s := startTestServer(t)
	space := s.createSpace(t, "office")
	aliceToken := s.registerUser(t, "alice")
	bobToken := s.registerUser(t, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aliceConn, aliceJoined := dialAndJoin(t, ctx, s, aliceToken, space.ID, 0, 0)
	if aliceJoined.Spawn.X != 0 || aliceJoined.Spawn.Y != 0 {
		t.Fatalf("unexpected spawn: %+v", aliceJoined.Spawn)
	}
	if len(aliceJoined.Users) != 0 {
		t.Fatalf("first joiner should see empty roster, got %v", aliceJoined.Users)
	}

	bobConn, bobJoined := dialAndJoin(t, ctx, s, bobToken, space.ID, 1, 0)
	if len(bobJoined.Users) != 1 || bobJoined.Users[0].Username != "alice" {
		t.Fatalf("bob's roster should contain alice, got %v", bobJoined.Users)
	}

	joinFrame := readFrame(t, ctx, aliceConn, proto.OutboundTypeUserJoin)
	var userJoin proto.UserJoinData
	if err := json.Unmarshal(joinFrame.Data, &userJoin); err != nil {
		t.Fatalf("unmarshal user-join: %v", err)
	}
	if userJoin.Username != "bob" || userJoin.X != 1 || userJoin.Y != 0 {
		t.Fatalf("unexpected user-join: %+v", userJoin)
	}

	// Spawning adjacent puts both straight into a proximity call.
	for name, conn := range map[string]*websocket.Conn{"alice": aliceConn, "bob": bobConn} {
		frame := readFrame(t, ctx, conn, proto.OutboundTypeCallCreated)
		var call proto.CallData
		if err := json.Unmarshal(frame.Data, &call); err != nil {
			t.Fatalf("%s: unmarshal call data: %v", name, err)
		}
		if call.CallID == "" || len(call.Participants) != 2 {
			t.Fatalf("%s: unexpected call: %+v", name, call)
		}
	}

	// Bob walks out of range; alice is told he left the call.
	sendFrame(t, ctx, bobConn, proto.InboundTypeMove, proto.MoveData{X: 2, Y: 0})
	sendFrame(t, ctx, bobConn, proto.InboundTypeMove, proto.MoveData{X: 3, Y: 0})

	leftFrame := readFrame(t, ctx, aliceConn, proto.OutboundTypeUserLeftCall)
	var left proto.UserLeftCallData
	if err := json.Unmarshal(leftFrame.Data, &left); err != nil {
		t.Fatalf("unmarshal user-left-proximity-call: %v", err)
	}
	if left.LeftUserID != userJoin.UserID || len(left.RemainingParticipants) != 1 {
		t.Fatalf("unexpected call leave: %+v", left)
	}
}

func TestWebSocketChat(t *testing.T) {
	s := startTestServer(t)
	space := s.createSpace(t, "office")
	aliceToken := s.registerUser(t, "alice")
	bobToken := s.registerUser(t, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aliceConn, _ := dialAndJoin(t, ctx, s, aliceToken, space.ID, 0, 0)
	bobConn, _ := dialAndJoin(t, ctx, s, bobToken, space.ID, 5, 5)

	sendFrame(t, ctx, aliceConn, proto.InboundTypeSendChatMessage, proto.SendChatData{Message: "hi there"})

	frame := readFrame(t, ctx, bobConn, proto.OutboundTypeChatMessage)
	var msg proto.ChatMessageData
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		t.Fatalf("unmarshal chat-message: %v", err)
	}
	if msg.Username != "alice" || msg.Message != "hi there" || msg.ID == 0 {
		t.Fatalf("unexpected chat message: %+v", msg)
	}

	// History replays the stored message.
	sendFrame(t, ctx, bobConn, proto.InboundTypeGetChatMessages, struct{}{})
	historyFrame := readFrame(t, ctx, bobConn, proto.OutboundTypeChatMessages)
	var history proto.ChatMessagesData
	if err := json.Unmarshal(historyFrame.Data, &history); err != nil {
		t.Fatalf("unmarshal chat-messages: %v", err)
	}
	if len(history.Messages) != 1 || history.Messages[0].ID != msg.ID {
		t.Fatalf("unexpected history: %+v", history.Messages)
	}
}

func TestWebSocketSignalRelay(t *testing.T) {
	s := startTestServer(t)
	space := s.createSpace(t, "office")
	aliceToken := s.registerUser(t, "alice")
	bobToken := s.registerUser(t, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aliceConn, aliceJoined := dialAndJoin(t, ctx, s, aliceToken, space.ID, 0, 0)
	bobConn, _ := dialAndJoin(t, ctx, s, bobToken, space.ID, 1, 0)

	sendFrame(t, ctx, bobConn, proto.InboundTypeSessionDescription, proto.SignalData{
		TargetUserID: aliceJoined.UserID,
		Payload:      json.RawMessage(`{"sdp":"v=0..."}`),
	})

	frame := readFrame(t, ctx, aliceConn, proto.OutboundTypeSessionDescription)
	var signal proto.SignalForwardData
	if err := json.Unmarshal(frame.Data, &signal); err != nil {
		t.Fatalf("unmarshal session-description: %v", err)
	}
	if signal.FromUsername != "bob" || string(signal.Payload) != `{"sdp":"v=0..."}` {
		t.Fatalf("unexpected signal: %+v", signal)
	}
}

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/httpapi"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/ws"
)

const secret = "integration-secret"

type stack struct {
	server   *httptest.Server
	registry *runtime.PresenceRegistry
	users    repositories.UserRepository
}

func newStack(t *testing.T) stack {
	t.Helper()
	req := require.New(t)

	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelError)
	metrics := observability.NopCollector{}

	messages := repositories.NewMessageRepository(db, log, nil)
	conversations := repositories.NewConversationRepository(db, log)
	users := repositories.NewUserRepository(db, log)

	registry := runtime.NewPresenceRegistry(log, 16)
	rooms := runtime.NewRoomMembership()
	typing := runtime.NewTypingRelay(log, rooms, metrics, time.Second)
	fanout := runtime.NewFanout(log, registry, metrics, time.Second)

	readState := services.NewReadStateTracker(log, messages)
	chat := services.NewChatService(log, messages, conversations, users, fanout, readState)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	supervisor := runtime.NewSupervisor(log, 100*time.Millisecond)
	supervisor.Add(runtime.NewPresenceWorker(log, registry, users, metrics, time.Second))
	go supervisor.Run(ctx)
	t.Cleanup(supervisor.Stop)

	verifier := auth.NewVerifier(secret)
	wsHandler := ws.NewHandler(log, registry, rooms, typing, verifier, 16)
	router := httpapi.NewRouter(log, chat, verifier, wsHandler, prometheus.NewRegistry())

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return stack{server: server, registry: registry, users: users}
}

func (s stack) connect(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	req := require.New(t)

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	socket, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	t.Cleanup(func() { _ = socket.Close() })

	token, err := auth.GenerateToken(secret, userID, time.Hour)
	req.NoError(err)
	req.NoError(socket.WriteJSON(ws.ClientFrame{Type: ws.FrameSetup, Token: token}))

	var frame ws.ServerFrame
	req.NoError(socket.ReadJSON(&frame))
	req.Equal("connected", frame.Type)
	return socket
}

func (s stack) call(t *testing.T, method, path, userID string, body any) *http.Response {
	t.Helper()
	req := require.New(t)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		req.NoError(err)
		reader = bytes.NewReader(payload)
	}
	request, err := http.NewRequest(method, s.server.URL+path, reader)
	req.NoError(err)
	token, err := auth.GenerateToken(secret, userID, time.Hour)
	req.NoError(err)
	request.Header.Set("Authorization", "Bearer "+token)

	response, err := http.DefaultClient.Do(request)
	req.NoError(err)
	t.Cleanup(func() { _ = response.Body.Close() })
	return response
}

func readFrame(t *testing.T, socket *websocket.Conn, frameType string) ws.ServerFrame {
	t.Helper()
	req := require.New(t)
	req.NoError(socket.SetReadDeadline(time.Now().Add(2 * time.Second)))
	for {
		var frame ws.ServerFrame
		req.NoError(socket.ReadJSON(&frame))
		if frame.Type == frameType {
			return frame
		}
	}
}

// The full send/receive cycle: push while connected, pull after a missed
// push, with the same committed record visible through both channels.
func Test_Message_Delivery_Scenario(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	s.connect(t, "alice")
	bobSocket := s.connect(t, "bob")

	// Alice opens the conversation with bob over REST
	response := s.call(t, http.MethodPost, "/api/conversations", "alice",
		map[string]string{"userId": "bob"})
	req.Equal(http.StatusCreated, response.StatusCode)
	var conversation domain.Conversation
	req.NoError(json.NewDecoder(response.Body).Decode(&conversation))

	messagesPath := fmt.Sprintf("/api/conversations/%s/messages", conversation.ID)

	// When alice sends m1, bob's live connection is pushed the committed
	// record
	response = s.call(t, http.MethodPost, messagesPath, "alice",
		map[string]string{"content": "first message"})
	req.Equal(http.StatusCreated, response.StatusCode)
	var m1 domain.Message
	req.NoError(json.NewDecoder(response.Body).Decode(&m1))

	pushed := readFrame(t, bobSocket, "message_received")
	req.NotNil(pushed.Message)
	req.Equal(m1.ID, pushed.Message.ID)
	req.Equal("first message", pushed.Message.Content)
	req.Equal("alice", pushed.Message.SenderID)

	// Bob disconnects; m2 is sent into the void
	req.NoError(bobSocket.Close())
	req.Eventually(func() bool { return !s.registry.IsOnline("bob") },
		2*time.Second, 10*time.Millisecond)

	response = s.call(t, http.MethodPost, messagesPath, "alice",
		map[string]string{"content": "second message"})
	req.Equal(http.StatusCreated, response.StatusCode)

	// On reconnect, the pull channel has everything, push loss included
	response = s.call(t, http.MethodGet, messagesPath, "bob", nil)
	req.Equal(http.StatusOK, response.StatusCode)
	var history []domain.Message
	req.NoError(json.NewDecoder(response.Body).Decode(&history))
	req.Len(history, 2)
	req.Equal(m1.ID, history[0].ID)
	req.Equal("first message", history[0].Content)
	req.Equal("second message", history[1].Content)

	// And his unread badge counts both until he acknowledges
	response = s.call(t, http.MethodGet, "/api/conversations", "bob", nil)
	var summaries []services.ConversationSummary
	req.NoError(json.NewDecoder(response.Body).Decode(&summaries))
	req.Len(summaries, 1)
	req.Equal(2, summaries[0].UnreadCount)

	response = s.call(t, http.MethodPut,
		fmt.Sprintf("/api/conversations/%s/read", conversation.ID), "bob", nil)
	req.Equal(http.StatusOK, response.StatusCode)

	response = s.call(t, http.MethodGet, "/api/conversations", "bob", nil)
	req.NoError(json.NewDecoder(response.Body).Decode(&summaries))
	req.Equal(0, summaries[0].UnreadCount)
}

// Presence transitions flow registry -> worker -> user store and are
// broadcast to other connections.
func Test_Presence_Scenario(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	aliceSocket := s.connect(t, "alice")

	// Bob's connection makes him online for everyone
	bobSocket := s.connect(t, "bob")
	online := readFrame(t, aliceSocket, "user_online")
	req.Equal("bob", online.UserID)

	req.Eventually(func() bool {
		user, err := s.users.Get("bob")
		return err == nil && user.IsOnline
	}, 2*time.Second, 10*time.Millisecond)

	// His disconnect is observed with a lastSeen timestamp
	req.NoError(bobSocket.Close())
	offline := readFrame(t, aliceSocket, "user_offline")
	req.Equal("bob", offline.UserID)
	req.NotNil(offline.LastSeen)

	req.Eventually(func() bool {
		user, err := s.users.Get("bob")
		return err == nil && !user.IsOnline
	}, 2*time.Second, 10*time.Millisecond)
}

// A second device keeps the user online until the last one is gone.
func Test_MultiDevice_Presence(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	phone := s.connect(t, "alice")
	laptop := s.connect(t, "alice")
	req.True(s.registry.IsOnline("alice"))

	req.NoError(phone.Close())
	// Give teardown a moment to land, then the laptop still counts
	time.Sleep(100 * time.Millisecond)
	req.True(s.registry.IsOnline("alice"))

	req.NoError(laptop.Close())
	req.Eventually(func() bool { return !s.registry.IsOnline("alice") },
		2*time.Second, 10*time.Millisecond)
}

// internal/handler/handler_test.go
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"register-terminal/internal/config"
	"register-terminal/internal/events"
	"register-terminal/internal/protocol"
	"register-terminal/internal/service"
)

type deviceStub struct {
	open      bool
	openErr   error
	responses []string
	readErr   error
}

func (d *deviceStub) Open(protocol.ConnectionConfig) error {
	if d.openErr != nil {
		return d.openErr
	}
	d.open = true
	return nil
}

func (d *deviceStub) Close() error {
	d.open = false
	return nil
}

func (d *deviceStub) IsOpen() bool { return d.open }

func (d *deviceStub) WriteLine(string) error { return nil }

func (d *deviceStub) ReadLine(time.Duration) (string, error) {
	if d.readErr != nil {
		return "", d.readErr
	}
	if len(d.responses) == 0 {
		return "", nil
	}
	resp := d.responses[0]
	d.responses = d.responses[1:]
	return resp, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	engine   *gin.Engine
	terminal *service.TerminalService
	device   *deviceStub
	bus      *events.EventBus
}

func newTestServer(t *testing.T, device *deviceStub) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client := protocol.NewClient(device, protocol.WithGraceDelay(0))
	bus := events.NewEventBus(nil)
	go bus.Start()
	t.Cleanup(bus.Stop)

	terminal := service.NewTerminalService(client, bus, service.ServiceOptions{}, nil)
	cfg := &config.Config{App: config.AppConfig{Name: "register-terminal", Version: "test"}}

	engine := gin.New()
	ws := NewWebSocketHandler(terminal, bus, nil, zap.NewNop())
	t.Cleanup(ws.Stop)

	NewHealthHandler(terminal, ws, cfg, zap.NewNop()).RegisterRoutes(&engine.RouterGroup)
	NewRegisterHandler(terminal, 115200, zap.NewNop()).RegisterRoutes(engine.Group("/api/v1"))
	ws.RegisterRoutes(engine.Group("/ws"))

	return &testServer{engine: engine, terminal: terminal, device: device, bus: bus}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestListRegisters(t *testing.T) {
	s := newTestServer(t, &deviceStub{})

	w, env := s.do(t, http.MethodGet, "/api/v1/registers", "")
	require.Equal(t, http.StatusOK, w.Code)

	var regs []RegisterView
	require.NoError(t, json.Unmarshal(env.Data, &regs))
	require.Len(t, regs, 6)
	assert.Equal(t, RegisterView{Name: "CPUID", Address: "0xE000ED00"}, regs[0])
}

func TestConnectionLifecycle(t *testing.T) {
	s := newTestServer(t, &deviceStub{})

	w, env := s.do(t, http.MethodPost, "/api/v1/connection", `{"port":"COM5"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Connected to COM5 at 115200 baud.", env.Message)

	w, env = s.do(t, http.MethodGet, "/api/v1/connection", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"connected":true`)

	w, env = s.do(t, http.MethodDelete, "/api/v1/connection", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Disconnected.", env.Message)
}

func TestOpenConnectionErrors(t *testing.T) {
	s := newTestServer(t, &deviceStub{openErr: errors.New("Port busy")})

	w, env := s.do(t, http.MethodPost, "/api/v1/connection", `{"baud_rate":9600}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(protocol.KindInvalidConfig), env.Error.Code)

	w, env = s.do(t, http.MethodPost, "/api/v1/connection", `{"port":"COM5","baud_rate":1234}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(protocol.KindInvalidConfig), env.Error.Code)

	w, env = s.do(t, http.MethodPost, "/api/v1/connection", `{"port":"COM5"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, string(protocol.KindPortUnavailable), env.Error.Code)
}

func TestReadWriteRegisters(t *testing.T) {
	s := newTestServer(t, &deviceStub{responses: []string{"0x00000001", "OK"}})
	s.do(t, http.MethodPost, "/api/v1/connection", `{"port":"COM5"}`)

	w, env := s.do(t, http.MethodPost, "/api/v1/registers/read", `{"address":"0x48000010"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Read 0x48000010: 0x00000001", env.Message)
	assert.Contains(t, string(env.Data), `"response":"0x00000001"`)

	w, env = s.do(t, http.MethodPost, "/api/v1/registers/write", `{"address":"0x20000000","value":"0xDEADBEEF"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Wrote 0xDEADBEEF to 0x20000000: OK", env.Message)
}

func TestRegisterErrorStatuses(t *testing.T) {
	s := newTestServer(t, &deviceStub{})

	w, env := s.do(t, http.MethodPost, "/api/v1/registers/read", `{"address":"0x1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(protocol.KindNotConnected), env.Error.Code)
	assert.Equal(t, "Serial port not open.", env.Message)

	w, env = s.do(t, http.MethodPost, "/api/v1/registers/read", `{"address":"zz"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(protocol.KindInvalidFormat), env.Error.Code)

	w, env = s.do(t, http.MethodPost, "/api/v1/registers/write", `{"address":"0x1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(protocol.KindInvalidFormat), env.Error.Code)

	w, env = s.do(t, http.MethodPost, "/api/v1/registers/read", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	w, env = s.do(t, http.MethodPost, "/api/v1/registers/named/BOGUS/read", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(protocol.KindUnknownRegister), env.Error.Code)
}

func TestEmptyFieldsAreLogged(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		code    protocol.ErrorKind
		message string
	}{
		{"empty port", "/api/v1/connection", `{"port":""}`, protocol.KindInvalidConfig, "Please enter a COM port (e.g., COM5)."},
		{"blank port", "/api/v1/connection", `{"port":"   "}`, protocol.KindInvalidConfig, "Please enter a COM port (e.g., COM5)."},
		{"empty read address", "/api/v1/registers/read", `{"address":""}`, protocol.KindInvalidFormat, "Invalid address format. Use hex (e.g., 0x48000010)."},
		{"empty write value", "/api/v1/registers/write", `{"address":"0x1","value":""}`, protocol.KindInvalidFormat, "Invalid address or value format. Use hex (e.g., 0x48000010)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &deviceStub{})

			w, env := s.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, string(tt.code), env.Error.Code)
			assert.Equal(t, tt.message, env.Message)

			entries := s.terminal.Log(0)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.code, entries[0].Kind())
		})
	}
}

func TestTransportErrorKeepsResponse(t *testing.T) {
	s := newTestServer(t, &deviceStub{readErr: errors.New("input/output error")})
	s.do(t, http.MethodPost, "/api/v1/connection", `{"port":"COM5"}`)

	w, env := s.do(t, http.MethodPost, "/api/v1/registers/named/cpuid/read", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, string(protocol.KindTransport), env.Error.Code)
	assert.Contains(t, string(env.Data), `"response":"ERROR"`)
}

func TestGetLog(t *testing.T) {
	s := newTestServer(t, &deviceStub{})
	s.do(t, http.MethodPost, "/api/v1/connection", `{"port":"COM5"}`)
	s.do(t, http.MethodPost, "/api/v1/registers/read", `{"address":"0x1"}`)

	w, env := s.do(t, http.MethodGet, "/api/v1/log?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Count   int `json:"count"`
		Entries []struct {
			Line string `json:"line"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, 1, data.Count)
	assert.Equal(t, "Read 0x1: (no response)", data.Entries[0].Line)

	w, _ = s.do(t, http.MethodGet, "/api/v1/log?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, &deviceStub{})

	w, _ := s.do(t, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, _ = s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "disconnected", health.Checks["serial"].Status)
	assert.Equal(t, float64(0), health.Checks["log_stream"].Data["total_connections"])

	s.terminal.Open(context.Background(), "COM5", 115200)

	w, _ = s.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogWebSocket(t *testing.T) {
	s := newTestServer(t, &deviceStub{responses: []string{"0x410FC241"}})
	server := httptest.NewServer(s.engine)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/log"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg WebSocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "initial_log", msg.Type)

	w, _ := s.do(t, http.MethodGet, "/health", "")
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, float64(1), health.Checks["log_stream"].Data["total_connections"])

	s.terminal.Open(context.Background(), "COM5", 115200)
	s.terminal.ReadNamed(context.Background(), "CPUID")

	var lines []string
	for len(lines) < 2 {
		var entry struct {
			Type string `json:"type"`
			Data struct {
				Line string `json:"line"`
			} `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&entry))
		require.Equal(t, events.EventLogEntry, entry.Type)
		lines = append(lines, entry.Data.Line)
	}
	assert.Equal(t, []string{"Connected to COM5 at 115200 baud.", "CPUID: 0x410FC241"}, lines)
}

func TestOriginChecker(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/log", nil)
	req.Header.Set("Origin", "http://evil.example")

	assert.True(t, originChecker(nil)(req))
	assert.True(t, originChecker([]string{"*"})(req))
	assert.False(t, originChecker([]string{"http://localhost:3000"})(req))

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, originChecker([]string{"http://localhost:3000"})(req))
}

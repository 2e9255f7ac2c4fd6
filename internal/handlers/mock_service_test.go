package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"still_controller/internal/models"
	"still_controller/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockControl struct {
	err       error
	calls     []string
	lastDuty  int
	lastColor [3]uint8
}

func (m *mockControl) record(name string) error {
	m.calls = append(m.calls, name)
	return m.err
}

func (m *mockControl) Start(ctx context.Context) error       { return m.record("start") }
func (m *mockControl) Stop(ctx context.Context) error        { return m.record("stop") }
func (m *mockControl) Reset(ctx context.Context) error       { return m.record("reset") }
func (m *mockControl) Shutdown(ctx context.Context) error    { return m.record("shutdown") }
func (m *mockControl) ClearManual(ctx context.Context) error { return m.record("clear_manual") }
func (m *mockControl) SetManualDuty(ctx context.Context, duty int) error {
	m.lastDuty = duty
	return m.record("manual")
}
func (m *mockControl) SetIndicator(ctx context.Context, r, g, b uint8) error {
	m.lastColor = [3]uint8{r, g, b}
	return m.record("indicator")
}
func (m *mockControl) ClearIndicator(ctx context.Context) error {
	return m.record("clear_indicator")
}

type mockMonitoring struct {
	state models.SystemSnapshot
	err   error
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.SystemSnapshot, error) {
	return m.state, m.err
}

type mockEventLog struct {
	resp      []models.StillEvent
	err       error
	lastFrom  time.Time
	lastTo    time.Time
	lastType  string
	lastLimit int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.StillEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastLimit = f.Limit
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

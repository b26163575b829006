package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ir-relay/internal/audit"
	"github.com/nerrad567/ir-relay/internal/device"
	"github.com/nerrad567/ir-relay/internal/emitter"
	"github.com/nerrad567/ir-relay/internal/hub"
	"github.com/nerrad567/ir-relay/internal/infrastructure/config"
	"github.com/nerrad567/ir-relay/internal/infrastructure/logging"
	"github.com/nerrad567/ir-relay/internal/infrastructure/mqtt"
)

// stubSender records IR emissions and can fail on demand.
type stubSender struct {
	mu        sync.Mutex
	emissions []string
	err       error
}

func (s *stubSender) Emit(_ context.Context, endpointID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.emissions = append(s.emissions, endpointID+"|"+key)
	return nil
}

func (s *stubSender) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.emissions...)
}

// stubHubCommander records forwarded hub commands.
type stubHubCommander struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *stubHubCommander) Command(_ context.Context, deviceID, command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, deviceID+"|"+command)
	return nil
}

// fakeAudit is an in-memory audit.Repository.
type fakeAudit struct {
	mu      sync.Mutex
	records map[string]*audit.CommandRecord
	order   []string
	n       int
}

func newFakeAudit() *fakeAudit {
	return &fakeAudit{records: make(map[string]*audit.CommandRecord)}
}

func (f *fakeAudit) Create(_ context.Context, rec *audit.CommandRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	rec.ID = fmt.Sprintf("cmd-test-%d", f.n)
	rec.Status = audit.StatusPending
	rec.CreatedAt = time.Now().UTC()
	clone := *rec
	f.records[rec.ID] = &clone
	f.order = append(f.order, rec.ID)
	return nil
}

func (f *fakeAudit) UpdateStatus(_ context.Context, id, status, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return fmt.Errorf("command record %s not found", id)
	}
	rec.Status = status
	rec.Detail = detail
	return nil
}

func (f *fakeAudit) List(_ context.Context, _ audit.Filter) (*audit.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	commands := make([]audit.CommandRecord, 0, len(f.order))
	for i := len(f.order) - 1; i >= 0; i-- {
		commands = append(commands, *f.records[f.order[i]])
	}
	return &audit.ListResult{Commands: commands, Total: len(commands), Limit: 50}, nil
}

func (f *fakeAudit) get(id string) *audit.CommandRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id]; ok {
		clone := *rec
		return &clone
	}
	return nil
}

// fakeEvents captures published command events.
type fakeEvents struct {
	mu     sync.Mutex
	events []mqtt.CommandEvent
}

func (f *fakeEvents) PublishCommandEvent(event mqtt.CommandEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

// testEnv bundles the server under test with its stubs.
type testEnv struct {
	srv    *httptest.Server
	sender *stubSender
	hub    *stubHubCommander
	audit  *fakeAudit
	events *fakeEvents
	token  string
}

const testSecret = "test-secret-key-at-least-32-chars!"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sender := &stubSender{}
	hubStub := &stubHubCommander{}
	auditStub := newFakeAudit()
	eventsStub := &fakeEvents{}

	repeater := emitter.NewRepeater(sender, config.EmitterConfig{
		MaxRepeat:    50,
		PaceInterval: 1, // keep multi-step tests fast
	}, logging.Default())

	secCfg := config.SecurityConfig{
		JWT: config.JWTConfig{
			Secret:         testSecret,
			AccessTokenTTL: 15,
			Username:       "admin",
			Password:       "operator-secret",
		},
	}

	server, err := New(Deps{
		Config:   config.APIConfig{},
		Security: secCfg,
		Logger:   logging.Default(),
		Registry: device.NewRegistry(nil, logging.Default()),
		Hub:      hubStub,
		Repeater: repeater,
		Audit:    auditStub,
		Events:   eventsStub,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	srv := httptest.NewServer(server.buildRouter())
	t.Cleanup(srv.Close)

	env := &testEnv{
		srv:    srv,
		sender: sender,
		hub:    hubStub,
		audit:  auditStub,
		events: eventsStub,
	}
	env.token = env.login(t, "admin", "operator-secret")
	return env
}

// login obtains a JWT through the real login handler.
func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(e.srv.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	return lr.AccessToken
}

// do issues an authenticated request and returns the response.
func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// waitForSettled polls until the record leaves pending or the deadline passes.
func (e *testEnv) waitForSettled(t *testing.T, id string) *audit.CommandRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec := e.audit.get(id); rec != nil && rec.Status != audit.StatusPending {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("command %s never settled", id)
	return nil
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return m
}

func TestHealth_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	body := decodeBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, err := http.Post(env.srv.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestProtectedRoute_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/api/v1/endpoints")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestProtectedRoute_RejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)
	env.token = "not-a-jwt"

	resp := env.do(t, http.MethodGet, "/api/v1/endpoints", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestListEndpoints_StaticSet(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/v1/endpoints", "")
	body := decodeBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}
}

func TestPower_Television(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/tv/power", `{"state":"off"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	emissions := env.sender.all()
	if len(emissions) != 1 || emissions[0] != "tv|power" {
		t.Errorf("emissions = %v, want [tv|power]", emissions)
	}
	if len(env.hub.calls) != 0 {
		t.Errorf("hub should not be called for the television")
	}
}

func TestPower_HubManaged(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/ZWayVDev_zway_7-0-37/power", `{"state":"on"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if len(env.hub.calls) != 1 || env.hub.calls[0] != "ZWayVDev_zway_7-0-37|on" {
		t.Errorf("hub calls = %v, want [ZWayVDev_zway_7-0-37|on]", env.hub.calls)
	}
	if len(env.sender.all()) != 0 {
		t.Errorf("emitter should not be called for hub-managed endpoints")
	}
}

func TestPower_HubFailure(t *testing.T) {
	env := newTestEnv(t)
	env.hub.err = hub.ErrAuth

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/some-device/power", `{"state":"on"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestPower_MissingState(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/tv/power", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPower_EmitterFailure(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = emitter.ErrTransport

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/tv/power", `{"state":"on"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestVolume_Mute(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/tv/volume", `{"mute":true}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	emissions := env.sender.all()
	if len(emissions) != 1 || emissions[0] != "tv|mute" {
		t.Errorf("emissions = %v, want [tv|mute]", emissions)
	}
}

func TestVolume_StepsDispatchesDetached(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/tv/volume", `{"volumeSteps":3}`)
	body := decodeBody(t, resp)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	id, _ := body["command_id"].(string)
	if id == "" {
		t.Fatal("response missing command_id")
	}

	rec := env.waitForSettled(t, id)
	if rec.Status != audit.StatusDone {
		t.Errorf("command status = %q, want done (%s)", rec.Status, rec.Detail)
	}

	emissions := env.sender.all()
	if len(emissions) != 3 {
		t.Fatalf("emissions = %d, want 3: %v", len(emissions), emissions)
	}
	for _, e := range emissions {
		if e != "tv|volume up" {
			t.Errorf("unexpected emission %q", e)
		}
	}
}

func TestVolume_NegativeStepsUseVolumeDown(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/tv/volume", `{"volumeSteps":-2}`)
	body := decodeBody(t, resp)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	id, _ := body["command_id"].(string)
	env.waitForSettled(t, id)

	emissions := env.sender.all()
	if len(emissions) != 2 {
		t.Fatalf("emissions = %d, want 2: %v", len(emissions), emissions)
	}
	for _, e := range emissions {
		if e != "tv|volume down" {
			t.Errorf("unexpected emission %q", e)
		}
	}
}

func TestVolume_DetachedFailureLandsInAudit(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = emitter.ErrTransport

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/tv/volume", `{"volumeSteps":3}`)
	body := decodeBody(t, resp)

	// The 202 goes out before the sequence runs; the failure is only
	// observable through the audit record.
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	id, _ := body["command_id"].(string)
	rec := env.waitForSettled(t, id)
	if rec.Status != audit.StatusFailed {
		t.Errorf("command status = %q, want failed", rec.Status)
	}
	if !strings.Contains(rec.Detail, "transport") {
		t.Errorf("detail = %q, want transport failure text", rec.Detail)
	}
}

func TestVolume_MissingBothFields(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/tv/volume", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestVolume_UnsupportedOnStreamingDevice(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/roku/volume", `{"volumeSteps":2}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUnknownResource_Unsupported(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/roku/channel", `{"channel":5}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListCommands(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/tv/power", `{"state":"on"}`)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/v1/commands", "")
	body := decodeBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["total"] != float64(1) {
		t.Errorf("total = %v, want 1", body["total"])
	}
}

func TestCommandEventsPublished(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPut, "/api/v1/endpoints/tv/power", `{"state":"on"}`)
	resp.Body.Close()

	env.events.mu.Lock()
	defer env.events.mu.Unlock()
	if len(env.events.events) != 1 {
		t.Fatalf("events = %d, want 1", len(env.events.events))
	}
	ev := env.events.events[0]
	if ev.EndpointID != "tv" || ev.Target != "emitter" || ev.Status != audit.StatusDone {
		t.Errorf("unexpected event: %+v", ev)
	}
}

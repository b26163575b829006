package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/ir-relay/internal/infrastructure/config"
)

func testMQTTConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "ir-relay-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testMQTTConfig()
	cfg.Auth.Username = "user"
	cfg.Auth.Password = "pass"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("expected 1 broker, got %d", len(opts.Servers))
	}
	if opts.Servers[0].Scheme != "tcp" {
		t.Errorf("scheme = %q, want tcp", opts.Servers[0].Scheme)
	}
	if opts.Servers[0].Host != "localhost:1883" {
		t.Errorf("host = %q, want localhost:1883", opts.Servers[0].Host)
	}
	if opts.ClientID != "ir-relay-test" {
		t.Errorf("client ID = %q, want ir-relay-test", opts.ClientID)
	}
	if opts.Username != "user" {
		t.Errorf("username = %q, want user", opts.Username)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testMQTTConfig()
	cfg.Broker.TLS = true

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLS config not set")
	}
}

func TestConfigureLWT(t *testing.T) {
	cfg := testMQTTConfig()
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	if opts.WillTopic != TopicSystemStatus {
		t.Errorf("will topic = %q, want %q", opts.WillTopic, TopicSystemStatus)
	}
	if !opts.WillRetained {
		t.Error("will message should be retained")
	}
	if !strings.Contains(string(opts.WillPayload), `"status":"offline"`) {
		t.Errorf("will payload missing offline status: %s", opts.WillPayload)
	}
	if !strings.Contains(string(opts.WillPayload), `"reason":"unexpected_disconnect"`) {
		t.Errorf("will payload missing disconnect reason: %s", opts.WillPayload)
	}
}

func TestStatusPayloads(t *testing.T) {
	var online, offline map[string]any

	if err := json.Unmarshal([]byte(buildOnlinePayload("test-id")), &online); err != nil {
		t.Fatalf("online payload is not valid JSON: %v", err)
	}
	if online["status"] != "online" || online["client_id"] != "test-id" {
		t.Errorf("unexpected online payload: %v", online)
	}

	if err := json.Unmarshal([]byte(buildOfflinePayload("test-id")), &offline); err != nil {
		t.Fatalf("offline payload is not valid JSON: %v", err)
	}
	if offline["status"] != "offline" || offline["reason"] != "graceful_shutdown" {
		t.Errorf("unexpected offline payload: %v", offline)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{cfg: testMQTTConfig()}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", TopicCommandEvent, []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", TopicCommandEvent, make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublish_NotConnected(t *testing.T) {
	c := &Client{cfg: testMQTTConfig()}
	err := c.Publish(TopicCommandEvent, []byte("{}"), 1, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestCommandEvent_Marshal(t *testing.T) {
	event := CommandEvent{
		EndpointID: "tv-lounge",
		Resource:   "volume",
		Command:    "volume up",
		Count:      5,
		Target:     "emitter",
		Status:     "accepted",
		Timestamp:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshalling event: %v", err)
	}

	var decoded CommandEvent
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshalling event: %v", err)
	}
	if decoded.EndpointID != "tv-lounge" || decoded.Count != 5 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := &Client{cfg: testMQTTConfig()}
	err := c.HealthCheck(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
}

func TestClose_NilClient(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}

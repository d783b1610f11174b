package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/clubledger-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	tests := []struct {
		project, name, want string
	}{
		{"club", "club-notifications", "projects/club/topics/club-notifications"},
		{"club", " projects/other/topics/t ", "projects/other/topics/t"},
		{"", "club-notifications", ""},
		{"club", "  ", ""},
	}
	for _, tt := range tests {
		if got := TopicResourceName(tt.project, tt.name); got != tt.want {
			t.Fatalf("TopicResourceName(%q, %q) = %q, want %q", tt.project, tt.name, got, tt.want)
		}
	}
}

func TestNewClientRequiresProjectAndTopic(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{NotificationTopic: "t"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "club"}, config.PubSubConfig{}, nil); err != errTopicRequired {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{}, config.PubSubConfig{}); len(opts) != 0 {
		t.Fatalf("expected default credentials, got %d options", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}, config.PubSubConfig{}); len(opts) != 1 {
		t.Fatalf("expected credentials option, got %d", len(opts))
	}
	emu := clientOptions(config.GCPConfig{CredentialsJSON: "{}"}, config.PubSubConfig{EmulatorHost: "localhost:8085"})
	if len(emu) != 3 {
		t.Fatalf("expected emulator options to replace credentials, got %d", len(emu))
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("t") != nil {
		t.Fatal("nil client should return nil publisher")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("ping on nil client should fail")
	}
}

package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"gds_terminal/internal/gds"
	"gds_terminal/internal/pnr"
)

var testAt = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func confirmed() *gds.PNR {
	p := gds.NewPNR(testAt)
	p.Locator = "KXQ7TB"
	p.Status = gds.StatusConfirmed
	return p
}

func TestNewMessage(t *testing.T) {
	m := NewMessage("s1", pnr.Event{Type: "finalized", PNR: confirmed()}, testAt)

	if m.Type != "finalized" || m.Locator != "KXQ7TB" || m.Status != "CONFIRMED" || m.Session != "s1" {
		t.Errorf("message = %+v", m)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["locator"] != "KXQ7TB" {
		t.Errorf("locator = %v, want KXQ7TB", decoded["locator"])
	}
	if _, ok := decoded["pnr"].(map[string]interface{}); !ok {
		t.Errorf("pnr field missing: %s", data)
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), Message{Type: "finalized"}); err != nil {
		t.Errorf("Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNATSPublisher(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	pub, err := NewNATSPublisher(url, "gds.test")
	if err != nil {
		t.Skipf("No NATS connection available: %v", err)
	}
	defer func() { _ = pub.Close() }()

	sub, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect subscriber: %v", err)
	}
	defer sub.Close()
	ch := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe("gds.test.*", ch)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer func() { _ = s.Unsubscribe() }()
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush subscriber: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, NewMessage("s1", pnr.Event{Type: "cancelled", PNR: confirmed()}, testAt)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-ch:
		if msg.Subject != "gds.test.cancelled" {
			t.Errorf("subject = %q, want gds.test.cancelled", msg.Subject)
		}
		var m Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if m.Locator != "KXQ7TB" {
			t.Errorf("locator = %q", m.Locator)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

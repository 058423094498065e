package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type delivery struct {
	event     Event
	signature string
	eventHdr  string
	payload   []byte
}

type receiver struct {
	mu         sync.Mutex
	deliveries []delivery
	failFirst  int
	calls      int
}

func (r *receiver) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls++
		if r.calls <= r.failFirst {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		payload, _ := io.ReadAll(req.Body)
		var event Event
		_ = json.Unmarshal(payload, &event)
		r.deliveries = append(r.deliveries, delivery{
			event:     event,
			signature: req.Header.Get("X-Popsmart-Signature"),
			eventHdr:  req.Header.Get("X-Popsmart-Event"),
			payload:   payload,
		})
		w.WriteHeader(http.StatusOK)
	}
}

func (r *receiver) received() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

func newTestDispatcher(subs []Subscription) *Dispatcher {
	d := NewDispatcher(subs, zerolog.Nop())
	d.sleep = func(time.Duration) {}
	d.Start()
	return d
}

func TestDispatch_DeliversSignedEvent(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv.handler())
	defer srv.Close()

	d := newTestDispatcher([]Subscription{{URL: srv.URL, Secret: "s3cret"}})
	d.Dispatch(Event{
		Type:     EventCampaignCreated,
		StoreID:  "shop-1",
		Resource: Resource{Type: "campaign", ID: "camp-1"},
	})
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := rcv.received()
	if len(got) != 1 {
		t.Fatalf("Expected 1 delivery, got %d", len(got))
	}
	if got[0].event.Type != EventCampaignCreated || got[0].event.Resource.ID != "camp-1" {
		t.Errorf("Unexpected event %+v", got[0].event)
	}
	if got[0].eventHdr != EventCampaignCreated {
		t.Errorf("Expected event header, got %q", got[0].eventHdr)
	}
	if !VerifySignature(got[0].payload, got[0].signature, "s3cret") {
		t.Error("Expected a valid HMAC signature")
	}
	if got[0].event.Timestamp.IsZero() {
		t.Error("Expected a stamped timestamp")
	}
}

func TestDispatch_RetriesFailedDeliveries(t *testing.T) {
	rcv := &receiver{failFirst: 2}
	srv := httptest.NewServer(rcv.handler())
	defer srv.Close()

	d := newTestDispatcher([]Subscription{{URL: srv.URL, Secret: "s", MaxRetries: 3}})
	d.Dispatch(Event{Type: EventCampaignUpdated, StoreID: "shop-1"})
	_ = d.Close()

	if len(rcv.received()) != 1 {
		t.Fatalf("Expected delivery after retries, got %d", len(rcv.received()))
	}
	if rcv.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", rcv.calls)
	}
}

func TestDispatch_GivesUpAfterMaxRetries(t *testing.T) {
	rcv := &receiver{failFirst: 100}
	srv := httptest.NewServer(rcv.handler())
	defer srv.Close()

	d := newTestDispatcher([]Subscription{{URL: srv.URL, Secret: "s", MaxRetries: 2}})
	d.Dispatch(Event{Type: EventCampaignDeleted, StoreID: "shop-1"})
	_ = d.Close()

	if rcv.calls != 3 {
		t.Errorf("Expected 3 attempts then give up, got %d", rcv.calls)
	}
	if len(rcv.received()) != 0 {
		t.Errorf("Expected no successful delivery, got %d", len(rcv.received()))
	}
}

func TestDispatch_FiltersByEventType(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv.handler())
	defer srv.Close()

	d := newTestDispatcher([]Subscription{{
		URL:    srv.URL,
		Secret: "s",
		Events: []string{EventLeadCaptured},
	}})
	d.Dispatch(Event{Type: EventCampaignCreated, StoreID: "shop-1"})
	d.Dispatch(Event{Type: EventLeadCaptured, StoreID: "shop-1"})
	_ = d.Close()

	got := rcv.received()
	if len(got) != 1 || got[0].event.Type != EventLeadCaptured {
		t.Fatalf("Expected only the lead event, got %+v", got)
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	d := newTestDispatcher(nil)
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"event":"campaign.created"}`)
	sig := ComputeHMAC(payload, "secret")

	if !VerifySignature(payload, sig, "secret") {
		t.Error("Expected signature to verify")
	}
	if VerifySignature(payload, sig, "wrong") {
		t.Error("Expected wrong secret to fail")
	}
	if VerifySignature([]byte("tampered"), sig, "secret") {
		t.Error("Expected tampered payload to fail")
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := GenerateSecret()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a == b {
		t.Error("Expected distinct secrets")
	}
	if len(a) < 10 || a[:6] != "whsec_" {
		t.Errorf("Unexpected secret format %q", a)
	}
}

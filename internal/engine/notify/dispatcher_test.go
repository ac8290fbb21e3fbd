package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"iotgate/internal/platform/models"
)

func TestDeliverWebhook(t *testing.T) {
	var gotSignature, gotEvent, gotCustom string
	var gotPayload []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Iotgate-Signature")
		gotEvent = r.Header.Get("X-Iotgate-Event")
		gotCustom = r.Header.Get("X-Custom")
		gotPayload, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(5 * time.Second)
	ep := &models.Endpoint{
		ID:             "ep_1",
		OrganizationID: "org_1",
		EndpointType:   models.EndpointWebhook,
		Config: models.EndpointConfig{
			Webhook: &models.WebhookConfig{
				URL:     srv.URL,
				Secret:  "hook-secret",
				Headers: map[string]string{"X-Custom": "yes"},
			},
		},
	}

	result := d.Deliver(ep, "endpoint.test", map[string]string{"hello": "world"})
	if !result.Delivered {
		t.Fatalf("expected delivery, got %+v", result)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", result.StatusCode)
	}
	if gotEvent != "endpoint.test" {
		t.Errorf("expected event header, got %q", gotEvent)
	}
	if gotCustom != "yes" {
		t.Errorf("expected custom header to pass through, got %q", gotCustom)
	}
	if gotSignature != Sign("hook-secret", gotPayload) {
		t.Error("signature does not verify against the delivered payload")
	}

	var event Event
	if err := json.Unmarshal(gotPayload, &event); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if event.OrganizationID != "org_1" || event.Event != "endpoint.test" {
		t.Errorf("unexpected event payload: %+v", event)
	}
}

func TestDeliverWebhookServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(5 * time.Second)
	ep := &models.Endpoint{
		EndpointType: models.EndpointWebhook,
		Config:       models.EndpointConfig{Webhook: &models.WebhookConfig{URL: srv.URL}},
	}

	result := d.Deliver(ep, "endpoint.test", nil)
	if result.Delivered {
		t.Error("expected failed delivery on 5xx")
	}
	if result.StatusCode != http.StatusBadGateway || result.Error == "" {
		t.Errorf("expected recorded failure, got %+v", result)
	}
}

func TestDeliverWebhookUnreachable(t *testing.T) {
	d := NewDispatcher(time.Second)
	ep := &models.Endpoint{
		EndpointType: models.EndpointWebhook,
		Config:       models.EndpointConfig{Webhook: &models.WebhookConfig{URL: "http://127.0.0.1:1"}},
	}

	result := d.Deliver(ep, "endpoint.test", nil)
	if result.Delivered || result.Error == "" {
		t.Errorf("expected connection failure, got %+v", result)
	}
}

func TestDeliverSlack(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(5 * time.Second)
	ep := &models.Endpoint{
		EndpointType: models.EndpointSlack,
		Config: models.EndpointConfig{
			Slack: &models.SlackConfig{WebhookURL: srv.URL, Channel: "#alerts"},
		},
	}

	result := d.Deliver(ep, "endpoint.test", nil)
	if !result.Delivered {
		t.Fatalf("expected delivery, got %+v", result)
	}
	if gotBody["channel"] != "#alerts" || gotBody["text"] == "" {
		t.Errorf("unexpected slack body: %v", gotBody)
	}
}

func TestDeliverStubVariants(t *testing.T) {
	d := NewDispatcher(time.Second)

	for _, epType := range []string{models.EndpointEmail, models.EndpointMQTT} {
		ep := &models.Endpoint{EndpointType: epType}
		if result := d.Deliver(ep, "endpoint.test", nil); !result.Delivered {
			t.Errorf("%s delivery must be accepted, got %+v", epType, result)
		}
	}

	ep := &models.Endpoint{EndpointType: "telegraph"}
	if result := d.Deliver(ep, "endpoint.test", nil); result.Delivered || result.Error == "" {
		t.Errorf("unknown type must fail, got %+v", result)
	}
}

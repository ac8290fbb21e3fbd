package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	EndpointWebhook = "webhook"
	EndpointEmail   = "email"
	EndpointSlack   = "slack"
	EndpointMQTT    = "mqtt"
)

// Endpoint is a notification integration owned by one organization.
// Config is a tagged variant: exactly one payload, matching EndpointType,
// must be set. Validation happens at the API boundary before storage.
type Endpoint struct {
	ID              string         `json:"id"`
	OrganizationID  string         `json:"organization_id"`
	Name            string         `json:"name"`
	EndpointType    string         `json:"endpoint_type"`
	Config          EndpointConfig `json:"config"`
	Active          bool           `json:"active"`
	LastTriggeredAt *int64         `json:"last_triggered_at,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
	CreatedAt       int64          `json:"created_at"`
	UpdatedAt       int64          `json:"updated_at"`
}

type EndpointConfig struct {
	Webhook *WebhookConfig `json:"webhook,omitempty"`
	Email   *EmailConfig   `json:"email,omitempty"`
	Slack   *SlackConfig   `json:"slack,omitempty"`
	MQTT    *MQTTConfig    `json:"mqtt,omitempty"`
}

type WebhookConfig struct {
	URL     string            `json:"url"`
	Secret  string            `json:"secret,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type EmailConfig struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject,omitempty"`
}

type SlackConfig struct {
	WebhookURL string `json:"webhook_url"`
	Channel    string `json:"channel,omitempty"`
}

type MQTTConfig struct {
	BrokerURL string `json:"broker_url"`
	Topic     string `json:"topic"`
	QoS       int    `json:"qos"`
}

// Validate checks that the config carries exactly the payload for
// endpointType and that the payload's required fields are usable.
func (c *EndpointConfig) Validate(endpointType string) error {
	set := 0
	if c.Webhook != nil {
		set++
	}
	if c.Email != nil {
		set++
	}
	if c.Slack != nil {
		set++
	}
	if c.MQTT != nil {
		set++
	}
	if set != 1 {
		return errors.New("config must carry exactly one payload")
	}

	switch endpointType {
	case EndpointWebhook:
		if c.Webhook == nil {
			return fmt.Errorf("config payload does not match endpoint type %q", endpointType)
		}
		return validateHTTPURL(c.Webhook.URL)
	case EndpointEmail:
		if c.Email == nil {
			return fmt.Errorf("config payload does not match endpoint type %q", endpointType)
		}
		if len(c.Email.Recipients) == 0 {
			return errors.New("email config requires at least one recipient")
		}
		for _, addr := range c.Email.Recipients {
			if !strings.Contains(addr, "@") {
				return fmt.Errorf("invalid recipient address %q", addr)
			}
		}
		return nil
	case EndpointSlack:
		if c.Slack == nil {
			return fmt.Errorf("config payload does not match endpoint type %q", endpointType)
		}
		return validateHTTPURL(c.Slack.WebhookURL)
	case EndpointMQTT:
		if c.MQTT == nil {
			return fmt.Errorf("config payload does not match endpoint type %q", endpointType)
		}
		if c.MQTT.Topic == "" {
			return errors.New("mqtt config requires a topic")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return errors.New("mqtt qos must be 0, 1 or 2")
		}
		u, err := url.Parse(c.MQTT.BrokerURL)
		if err != nil || u.Host == "" {
			return errors.New("invalid mqtt broker url")
		}
		return nil
	default:
		return fmt.Errorf("unknown endpoint type %q", endpointType)
	}
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("invalid http(s) url")
	}
	return nil
}

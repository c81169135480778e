package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/collabute-be/internal/domain"
)

const defaultBaseURL = "https://api.resend.com"

// Config holds email provider settings
type Config struct {
	APIKey  string
	From    string
	BaseURL string
}

// Message is one transactional email to render and send
type Message struct {
	To       string
	Subject  string
	Template string
	Data     map[string]any
}

// Service sends templated transactional email through the Resend HTTP API.
// With no API key configured the service runs disabled: sends are logged and
// reported as not sent instead of failing.
type Service struct {
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewService creates the email service
func NewService(cfg *Config, logger *slog.Logger) *Service {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	if cfg.APIKey == "" {
		logger.Warn("Email API key not configured, email sending is disabled")
	}

	return &Service{
		apiKey:  cfg.APIKey,
		from:    cfg.From,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// Enabled reports whether the service has a provider credential
func (s *Service) Enabled() bool {
	return s.apiKey != ""
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send renders the message template and delivers it through the provider.
// Returns the provider message id, or empty when the service is disabled.
func (s *Service) Send(ctx context.Context, msg Message) (string, error) {
	html, err := renderTemplate(msg.Template, msg.Data)
	if err != nil {
		return "", err
	}

	if !s.Enabled() {
		s.logger.Warn("Email sending disabled, dropping message",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
		)
		return "", nil
	}

	body, err := json.Marshal(sendRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    html,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", domain.NewExternalServiceError("email", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", domain.NewExternalServiceError("email",
			fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(detail)))
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.NewExternalServiceError("email", fmt.Errorf("failed to decode provider response: %w", err))
	}

	s.logger.Info("Email sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("email_id", out.ID),
	)
	return out.ID, nil
}

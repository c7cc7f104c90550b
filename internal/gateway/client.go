package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/config"
	"github.com/PromoBrothers/Projeto-2026/internal/metrics"
	"go.uber.org/zap"
)

var (
	// ErrNoSession means the gateway is up but has no logged-in WhatsApp
	// session. Nothing will go through until someone scans the QR code.
	ErrNoSession    = errors.New("gateway has no active session")
	ErrCircuitOpen  = errors.New("gateway circuit open")
	ErrNotConnected = errors.New("gateway not connected")
)

// HTTPError is a non-2xx answer from the gateway.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway status=%d body=%s", e.Status, e.Body)
}

type sendPayload struct {
	GroupID  string `json:"groupId"`
	Message  string `json:"message"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Client talks to the WhatsApp monitor gateway.
type Client struct {
	baseURL string
	status  *http.Client
	send    *http.Client
	br      *Breaker
	log     *zap.Logger
}

func NewClient(cfg config.GatewayConfig, log *zap.Logger) *Client {
	st := cfg.StatusTimeout
	if st <= 0 {
		st = 5 * time.Second
	}
	sd := cfg.SendTimeout
	if sd <= 0 {
		sd = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		status:  &http.Client{Timeout: st},
		send:    &http.Client{Timeout: sd},
		br:      NewBreaker(cfg.Breaker.FailThreshold, time.Duration(cfg.Breaker.OpenForMs)*time.Millisecond),
		log:     log.Named("gateway"),
	}
}

// Connected asks the gateway whether a session is up. Any failure reads as false.
func (c *Client) Connected(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	res, err := c.status.Do(req)
	if err != nil {
		c.log.Warn("status check failed", zap.Error(err))
		metrics.GatewayRequestsTotal.WithLabelValues("status", "error").Inc()
		return false
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		metrics.GatewayRequestsTotal.WithLabelValues("status", "error").Inc()
		return false
	}
	var body struct {
		Connected bool `json:"connected"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		metrics.GatewayRequestsTotal.WithLabelValues("status", "error").Inc()
		return false
	}
	metrics.GatewayRequestsTotal.WithLabelValues("status", "ok").Inc()
	return body.Connected
}

// SendMessage posts one message to one group. imageURL may be empty.
func (c *Client) SendMessage(ctx context.Context, groupID, text, imageURL string) error {
	if !c.br.Allow() {
		metrics.GatewayRequestsTotal.WithLabelValues("send", "circuit_open").Inc()
		return ErrCircuitOpen
	}

	err := c.post(ctx, sendPayload{GroupID: groupID, Message: text, ImageURL: imageURL})

	var he *HTTPError
	switch {
	case err == nil:
		c.br.OnSuccess()
		metrics.GatewayRequestsTotal.WithLabelValues("send", "ok").Inc()
		return nil
	case errors.Is(err, ErrNoSession):
		c.br.OnFailure()
		metrics.GatewayRequestsTotal.WithLabelValues("send", "no_session").Inc()
	case errors.As(err, &he) && he.Status < 500:
		// the gateway answered; the request itself was bad
		c.br.OnSuccess()
		metrics.GatewayRequestsTotal.WithLabelValues("send", "error").Inc()
	default:
		c.br.OnFailure()
		metrics.GatewayRequestsTotal.WithLabelValues("send", "error").Inc()
	}
	return err
}

func (c *Client) post(ctx context.Context, p sendPayload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/groups/send-message", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.send.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK || res.StatusCode == http.StatusCreated {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	if res.StatusCode == http.StatusInternalServerError {
		var eb struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &eb) == nil && eb.Error == "No sessions" {
			return ErrNoSession
		}
	}
	return &HTTPError{Status: res.StatusCode, Body: strings.TrimSpace(string(raw))}
}

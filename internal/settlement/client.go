package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/goodnatureofminers/smartinvoice/internal/model"
	"github.com/google/uuid"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single live transfer call.
	DefaultTimeout = 30 * time.Second

	transferPath       = "/w3s/transactions/transfer"
	maxResponseBytes   = 1 << 20
	noBody             = "<no body>"
	forbiddenMessage   = "403 Forbidden — check API key."
	simulatedSucceeded = "succeeded"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RPS caps outbound live calls per second; zero or less disables the cap.
	RPS int
}

// Client calls the wallet-transfer API. Each call is a single attempt with a
// fresh idempotency key; retrying is up to the caller.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    ratelimit.Limiter
	newID      func() string
	logger     *zap.Logger
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse settlement api base: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("settlement api base scheme %q not supported", base.Scheme)
	}
	if base.Host == "" {
		return nil, errors.New("settlement api base missing host")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limiter := ratelimit.NewUnlimited()
	if cfg.RPS > 0 {
		limiter = ratelimit.New(cfg.RPS)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint:   base.String() + transferPath,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		newID:      uuid.NewString,
		logger:     logger,
	}, nil
}

// Transfer moves req.Amount from the source wallet to the destination address.
// With req.Simulate set no request leaves the process.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) Result {
	amount := model.FormatAmount(req.Amount)
	if req.Simulate {
		return success(Transfer{
			ID:          c.newID(),
			Amount:      amount,
			Currency:    Currency,
			Source:      req.SourceWalletID,
			Destination: req.DestinationAddress,
			Status:      simulatedSucceeded,
		})
	}

	key := c.newID()
	logger := c.logger.With(zap.String("idempotency_key", key), zap.String("chain", req.Chain))

	payload, err := json.Marshal(transferBody{
		Source:         transferSource{Type: "wallet", ID: req.SourceWalletID},
		Destination:    transferDestination{Type: "blockchain_address", Address: req.DestinationAddress, Chain: req.Chain},
		Amount:         transferAmount{Amount: amount, Currency: Currency},
		IdempotencyKey: key,
	})
	if err != nil {
		return failure(FailureUnexpected, 0, "Unexpected error: "+err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return failure(FailureUnexpected, 0, "Unexpected error: "+err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	c.limiter.Take()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Warn("transfer request failed", zap.Error(err))
		if isNetworkError(err) {
			return failure(FailureNetwork, 0, "Network error: "+err.Error())
		}
		return failure(FailureUnexpected, 0, "Unexpected error: "+err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	text := noBody
	if body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes)); readErr == nil {
		text = string(body)
	} else {
		logger.Warn("read transfer response failed", zap.Error(readErr))
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return failure(FailureCredential, resp.StatusCode, forbiddenMessage)
	case resp.StatusCode >= http.StatusBadRequest:
		return failure(FailureUpstream, resp.StatusCode, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, upstreamMessage(text)))
	}

	transfer := Transfer{
		ID:             key,
		Amount:         amount,
		Currency:       Currency,
		Source:         req.SourceWalletID,
		Destination:    req.DestinationAddress,
		IdempotencyKey: key,
	}
	if !json.Valid([]byte(text)) {
		transfer.RawText = text
		return success(transfer)
	}
	transfer.Body = json.RawMessage(text)
	if desc, ok := parseDescriptor(transfer.Body); ok {
		if desc.ID != "" {
			transfer.ID = desc.ID
		}
		transfer.Status = desc.status()
	}
	return success(transfer)
}

// isNetworkError reports whether err came from the connection rather than from
// building or routing the request. Client.Do wraps everything in *url.Error, so
// the cause is inspected instead.
func isNetworkError(err error) bool {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr):
		return true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, syscall.ECONNRESET):
		return true
	}
	return false
}

type (
	transferBody struct {
		Source         transferSource      `json:"source"`
		Destination    transferDestination `json:"destination"`
		Amount         transferAmount      `json:"amount"`
		IdempotencyKey string              `json:"idempotencyKey"`
	}
	transferSource struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	transferDestination struct {
		Type    string `json:"type"`
		Address string `json:"address"`
		Chain   string `json:"chain"`
	}
	transferAmount struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
)

// descriptor is the subset of a transaction descriptor we read back. The API
// wraps it in "data"; a bare object is accepted too.
type descriptor struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Status string `json:"status"`
}

func (d descriptor) status() string {
	if d.State != "" {
		return d.State
	}
	return d.Status
}

func parseDescriptor(body json.RawMessage) (descriptor, bool) {
	var envelope struct {
		Data *descriptor `json:"data"`
		descriptor
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return descriptor{}, false
	}
	if envelope.Data != nil {
		return *envelope.Data, true
	}
	return envelope.descriptor, true
}

// upstreamMessage picks "message", then "error", then the whole body.
func upstreamMessage(text string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return text
	}
	for _, key := range []string{"message", "error"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		if string(raw) != "null" {
			return string(raw)
		}
	}
	compact := &bytes.Buffer{}
	if err := json.Compact(compact, []byte(text)); err != nil {
		return text
	}
	return compact.String()
}

// Package settlement issues single-shot wallet transfers through the external
// transfer API.
package settlement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is the only settlement currency supported.
const Currency = "USD"

// Mode labels how a transfer was executed.
type Mode string

var (
	ModeSimulate Mode = "simulate"
	ModeLive     Mode = "live"
)

// FailureKind classifies a failed transfer.
type FailureKind string

var (
	// FailureCredential is an HTTP 403: the API key is missing or wrong.
	FailureCredential FailureKind = "credential"
	// FailureUpstream is any other HTTP status >= 400.
	FailureUpstream FailureKind = "upstream"
	// FailureNetwork covers connection, DNS and timeout errors.
	FailureNetwork FailureKind = "network"
	// FailureUnexpected is anything else that stopped the call.
	FailureUnexpected FailureKind = "unexpected"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Transferer performs one transfer attempt.
	Transferer interface {
		Transfer(ctx context.Context, req TransferRequest) Result
	}
	Metrics interface {
		Observe(mode, outcome string, started time.Time)
	}
)

// TransferRequest describes a single transfer.
type TransferRequest struct {
	SourceWalletID     string
	DestinationAddress string
	Amount             decimal.Decimal
	Chain              string
	Simulate           bool
}

// Mode reports whether req is simulated or sent to the API.
func (r TransferRequest) Mode() Mode {
	if r.Simulate {
		return ModeSimulate
	}
	return ModeLive
}

// Result is either a Transfer or a Failure, never both.
type Result struct {
	Transfer *Transfer
	Failure  *Failure
}

// OK reports whether the transfer succeeded.
func (r Result) OK() bool {
	return r.Failure == nil && r.Transfer != nil
}

// Outcome is a short label for metrics and logs.
func (r Result) Outcome() string {
	if r.Failure != nil {
		return string(r.Failure.Kind)
	}
	return "success"
}

// Transfer describes an accepted transfer.
type Transfer struct {
	ID             string
	Amount         string
	Currency       string
	Source         string
	Destination    string
	Status         string
	IdempotencyKey string
	// Body is the parsed 2xx response; RawText is set instead when the body
	// was not JSON.
	Body    json.RawMessage
	RawText string
}

// Failure describes why a transfer did not go through.
type Failure struct {
	Kind       FailureKind
	StatusCode int
	Message    string
}

func (f *Failure) Error() string {
	return f.Message
}

func success(t Transfer) Result {
	return Result{Transfer: &t}
}

func failure(kind FailureKind, status int, msg string) Result {
	return Result{Failure: &Failure{Kind: kind, StatusCode: status, Message: msg}}
}

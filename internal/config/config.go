// Package config holds go-flags option groups shared by the binaries.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/smartinvoice/internal/model"
	"github.com/goodnatureofminers/smartinvoice/internal/service"
	"github.com/goodnatureofminers/smartinvoice/internal/settlement"
)

// Settlement configures the transfer API and the payment a verified document triggers.
type Settlement struct {
	APIBase            string        `long:"settlement-api-base" env:"CIRCLE_API_BASE" description:"settlement API base URL" default:"https://api.circle.com/v1"`
	APIKey             string        `long:"settlement-api-key" env:"CIRCLE_API_KEY" description:"settlement API bearer key"`
	Chain              string        `long:"settlement-chain" env:"SETTLEMENT_CHAIN" description:"destination chain" default:"ARC-TESTNET"`
	Amount             string        `long:"payment-amount" env:"PAYMENT_AMOUNT" description:"amount paid per verified document" default:"2.0"`
	Mode               string        `long:"settlement-mode" env:"SETTLEMENT_MODE" description:"simulate transfers or call the API" choice:"simulate" choice:"live" default:"simulate"`
	SourceWalletID     string        `long:"source-wallet-id" env:"SOURCE_WALLET_ID" description:"source wallet id" default:"SRC1234567890"`
	DestinationAddress string        `long:"destination-address" env:"DESTINATION_WALLET_ADDRESS" description:"destination wallet address" default:"DEST9876543210"`
	Timeout            time.Duration `long:"settlement-timeout" env:"SETTLEMENT_TIMEOUT" description:"timeout for one transfer call" default:"30s"`
	RPS                int           `long:"settlement-rps" env:"SETTLEMENT_RPS" description:"max outbound transfers per second, <=0 for unlimited" default:"10"`
}

// Simulate reports whether transfers skip the network.
func (s Settlement) Simulate() bool {
	return s.Mode != string(settlement.ModeLive)
}

// ClientConfig returns the settlement client configuration.
func (s Settlement) ClientConfig() settlement.Config {
	return settlement.Config{
		BaseURL: s.APIBase,
		APIKey:  s.APIKey,
		Timeout: s.Timeout,
		RPS:     s.RPS,
	}
}

// PipelineSettings parses the payment amount and returns the pipeline settings.
func (s Settlement) PipelineSettings() (service.Settings, error) {
	amount, err := model.ParseAmount(s.Amount)
	if err != nil {
		return service.Settings{}, fmt.Errorf("payment amount: %w", err)
	}
	settings := service.Settings{
		SourceWalletID:     s.SourceWalletID,
		DestinationAddress: s.DestinationAddress,
		Amount:             amount,
		Chain:              s.Chain,
		Simulate:           s.Simulate(),
	}
	if err := settings.Validate(); err != nil {
		return service.Settings{}, err
	}
	return settings, nil
}

// Warnings lists non-fatal configuration problems.
func (s Settlement) Warnings() []string {
	var out []string
	if !s.Simulate() && s.APIKey == "" {
		out = append(out, "live settlement without an API key; every transfer will be rejected")
	}
	return out
}

// Ledger configures the history file.
type Ledger struct {
	Path string `long:"ledger-path" env:"LEDGER_PATH" description:"path of the JSON history file" default:"data/history.json"`
}

// Validate checks the ledger options.
func (l Ledger) Validate() error {
	if l.Path == "" {
		return errors.New("ledger path is required")
	}
	return nil
}

// Extractor configures text extraction.
type Extractor struct {
	OCRCommand string `long:"ocr-command" env:"OCR_COMMAND" description:"OCR binary used for images, empty disables OCR" default:"tesseract"`
}


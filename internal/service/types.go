package service

import (
	"context"
	"time"

	"github.com/goodnatureofminers/smartinvoice/internal/model"
	"github.com/goodnatureofminers/smartinvoice/internal/scoring"
	"github.com/goodnatureofminers/smartinvoice/internal/settlement"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Extractor interface {
		Extract(ctx context.Context, body []byte, filename string) (string, error)
	}
	Scorer interface {
		Score(text string) scoring.Result
	}
	Settler interface {
		Transfer(ctx context.Context, req settlement.TransferRequest) settlement.Result
	}
	Ledger interface {
		Append(build func(invoice int) model.VerificationRecord) (model.VerificationRecord, error)
	}
	PipelineMetrics interface {
		ObserveDecision(status, stage string, confidence int, started time.Time)
	}
)

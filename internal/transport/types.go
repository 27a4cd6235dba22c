package transport

import (
	"context"

	"github.com/goodnatureofminers/smartinvoice/internal/model"
	"github.com/goodnatureofminers/smartinvoice/internal/service"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Processor interface {
		Process(ctx context.Context, doc service.Document) service.Outcome
	}
	History interface {
		All() []model.VerificationRecord
		ByInvoice(invoice int) (model.VerificationRecord, error)
	}
)

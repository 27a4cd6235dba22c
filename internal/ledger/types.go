package ledger

import (
	"time"

	"github.com/goodnatureofminers/smartinvoice/internal/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Store persists the whole ledger, newest-first, as one unit.
	Store interface {
		Load() ([]model.VerificationRecord, error)
		Save(records []model.VerificationRecord) error
	}
	Metrics interface {
		ObserveAppend(err error, size int, started time.Time)
		ObserveLoad(err error, size int)
	}
)

// Package service wires extraction, scoring, settlement and the ledger into the
// verification pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/smartinvoice/internal/clock"
	"github.com/goodnatureofminers/smartinvoice/internal/model"
	"github.com/goodnatureofminers/smartinvoice/internal/settlement"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	stageScoring    = "scoring"
	stageSettlement = "settlement"
	stageInternal   = "internal"

	rejectedPrefix      = "Invoice not verified as delivered. "
	paymentFailedPrefix = "Payment failed: "
)

// Settings describes the single payment a verified document triggers.
type Settings struct {
	SourceWalletID     string
	DestinationAddress string
	Amount             decimal.Decimal
	Chain              string
	Simulate           bool
}

// Validate checks that a transfer can be built from s.
func (s Settings) Validate() error {
	if s.SourceWalletID == "" {
		return errors.New("source wallet id is required")
	}
	if s.DestinationAddress == "" {
		return errors.New("destination address is required")
	}
	if !s.Amount.IsPositive() {
		return fmt.Errorf("payment amount %s must be positive", s.Amount)
	}
	if s.Chain == "" {
		return errors.New("chain is required")
	}
	return nil
}

// Document is an uploaded file.
type Document struct {
	Name string
	Body []byte
	// ReadErr reports that Body could not be read. The document is then scored
	// as empty text like any other extraction failure.
	ReadErr error
}

// Outcome is what the caller gets back for one document. Record is always
// populated and already appended to the ledger.
type Outcome struct {
	Record model.VerificationRecord
	// Message is a user-facing explanation for a Failed record.
	Message string
	// Settlement is set when a transfer was attempted.
	Settlement *settlement.Result
	// PersistErr reports that the ledger kept the record but could not write it.
	PersistErr error
}

// CredentialProblem reports a settlement rejected for bad credentials.
func (o Outcome) CredentialProblem() bool {
	return o.Settlement != nil && o.Settlement.Failure != nil &&
		o.Settlement.Failure.Kind == settlement.FailureCredential
}

// Pipeline processes one document per call. It holds no per-document state and
// is safe for concurrent use as long as its collaborators are.
type Pipeline struct {
	extractor Extractor
	scorer    Scorer
	settler   Settler
	ledger    Ledger
	metrics   PipelineMetrics
	settings  Settings
	now       clock.Func
	logger    *zap.Logger
}

// NewPipeline builds a Pipeline with the given dependencies.
func NewPipeline(
	extractor Extractor,
	scorer Scorer,
	settler Settler,
	ledger Ledger,
	metrics PipelineMetrics,
	settings Settings,
	logger *zap.Logger,
) (*Pipeline, error) {
	switch {
	case extractor == nil:
		return nil, errors.New("pipeline extractor is required")
	case scorer == nil:
		return nil, errors.New("pipeline scorer is required")
	case settler == nil:
		return nil, errors.New("pipeline settler is required")
	case ledger == nil:
		return nil, errors.New("pipeline ledger is required")
	case metrics == nil:
		return nil, errors.New("pipeline metrics is required")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline settings: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		extractor: extractor,
		scorer:    scorer,
		settler:   settler,
		ledger:    ledger,
		metrics:   metrics,
		settings:  settings,
		now:       clock.NowUTC,
		logger:    logger.Named("pipeline"),
	}, nil
}

// decision is the pre-ledger result of one document.
type decision struct {
	stage      string
	status     model.Status
	confidence int
	reason     string
	payment    model.Payment
	message    string
	settlement *settlement.Result
}

// Process extracts, scores and, when verified, settles doc, then appends the
// resulting record. Every path ends in an appended record.
func (p *Pipeline) Process(ctx context.Context, doc Document) Outcome {
	started := time.Now()
	ref := &model.DocumentRef{
		Name: doc.Name,
		Hash: chainhash.DoubleHashH(doc.Body).String(),
	}

	d := p.decide(ctx, doc)

	rec, err := p.ledger.Append(func(invoice int) model.VerificationRecord {
		return model.VerificationRecord{
			Invoice:    invoice,
			Timestamp:  model.NewTimestamp(p.now()),
			Status:     d.status,
			Confidence: d.confidence,
			Reason:     d.reason,
			Payment:    d.payment,
			Document:   ref,
		}
	})
	if err != nil {
		p.logger.Error("record not persisted", zap.Int("invoice", rec.Invoice), zap.Error(err))
	}

	p.metrics.ObserveDecision(string(rec.Status), d.stage, rec.Confidence, started)
	p.logger.Info("document processed",
		zap.Int("invoice", rec.Invoice),
		zap.String("document", doc.Name),
		zap.String("status", string(rec.Status)),
		zap.Int("confidence", rec.Confidence),
		zap.String("tx_id", rec.Payment.TxID),
		zap.String("stage", d.stage),
	)

	return Outcome{
		Record:     rec,
		Message:    d.message,
		Settlement: d.settlement,
		PersistErr: err,
	}
}

func (p *Pipeline) decide(ctx context.Context, doc Document) (d decision) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("document processing panicked", zap.String("document", doc.Name), zap.Any("panic", r))
			reason := fmt.Sprintf("Internal error: %v", r)
			d = decision{
				stage:      stageInternal,
				status:     model.StatusFailed,
				confidence: d.confidence,
				reason:     reason,
				payment:    model.NoPayment(),
				message:    rejectedPrefix + reason,
				settlement: d.settlement,
			}
		}
	}()

	text, err := "", doc.ReadErr
	if err == nil {
		text, err = p.extractor.Extract(ctx, doc.Body, doc.Name)
	}
	extractNote := ""
	if err != nil {
		p.logger.Warn("extraction failed, scoring empty text", zap.String("document", doc.Name), zap.Error(err))
		text = ""
		extractNote = " (extraction failed: " + err.Error() + ")"
	}

	score := p.scorer.Score(text)
	d.confidence = score.Confidence
	if !score.Verified {
		reason := score.Reason + extractNote
		return decision{
			stage:      stageScoring,
			status:     model.StatusFailed,
			confidence: score.Confidence,
			reason:     reason,
			payment:    model.NoPayment(),
			message:    rejectedPrefix + reason,
		}
	}

	res := p.settler.Transfer(ctx, settlement.TransferRequest{
		SourceWalletID:     p.settings.SourceWalletID,
		DestinationAddress: p.settings.DestinationAddress,
		Amount:             p.settings.Amount,
		Chain:              p.settings.Chain,
		Simulate:           p.settings.Simulate,
	})
	d.settlement = &res

	txCode := model.NoTransaction
	if res.OK() {
		txCode = model.TransactionCode(res.Transfer.ID)
		if txCode == model.NoTransaction {
			res = settlement.Result{Failure: &settlement.Failure{
				Kind:    settlement.FailureUnexpected,
				Message: "Unexpected error: settlement returned no usable transaction id",
			}}
		}
	}
	if res.Failure != nil {
		p.logger.Warn("settlement failed",
			zap.String("kind", string(res.Failure.Kind)),
			zap.Int("status_code", res.Failure.StatusCode),
			zap.String("message", res.Failure.Message),
		)
		return decision{
			stage:      stageSettlement,
			status:     model.StatusFailed,
			confidence: score.Confidence,
			reason:     score.Reason + "; settlement failed: " + res.Failure.Message,
			payment:    model.NoPayment(),
			message:    paymentFailedPrefix + res.Failure.Message,
			settlement: &res,
		}
	}

	return decision{
		stage:      stageSettlement,
		status:     model.StatusPaid,
		confidence: score.Confidence,
		reason:     score.Reason,
		payment: model.Payment{
			TxID:   txCode,
			Amount: model.FormatAmount(p.settings.Amount),
		},
		settlement: &res,
	}
}

// Package scoring rates extracted document text for delivery-confirmation evidence.
package scoring

import "strings"

const (
	// Threshold is the minimum confidence for a document to count as verified.
	Threshold = 80

	keywordPoints   = 30
	signaturePoints = 10
	maxConfidence   = 100

	noKeywordsReason = "No delivery keywords detected."
)

// Keywords lists the delivery-confirmation phrases in match order. Phrases are
// matched as substrings, so "delivered" and "delivered and signed" both hit on
// the same span.
var Keywords = []string{
	"delivered",
	"signed",
	"received",
	"delivered and signed",
	"proof of delivery",
	"package received",
	"received and signed",
}

var signatureMarkers = []string{"signature", "signed by"}

// Result is the outcome of scoring one text.
type Result struct {
	Confidence int
	Verified   bool
	Reason     string
	Hits       []string
}

// Scorer is stateless; the zero value is ready to use.
type Scorer struct{}

// New returns a Scorer.
func New() Scorer {
	return Scorer{}
}

// Score rates text. It never fails; empty or garbage input scores zero.
func (Scorer) Score(text string) Result {
	return Score(text)
}

// Score rates text with the package keyword table.
func Score(text string) Result {
	normalized := strings.ToLower(text)

	var hits []string
	confidence := 0
	for _, kw := range Keywords {
		if strings.Contains(normalized, kw) {
			hits = append(hits, kw)
			confidence += keywordPoints
		}
	}
	for _, marker := range signatureMarkers {
		if strings.Contains(normalized, marker) {
			confidence += signaturePoints
			break
		}
	}
	confidence = min(confidence, maxConfidence)

	reason := noKeywordsReason
	if len(hits) > 0 {
		reason = "Keywords: " + strings.Join(hits, ", ")
	}

	return Result{
		Confidence: confidence,
		Verified:   confidence >= Threshold,
		Reason:     reason,
		Hits:       hits,
	}
}

package verification

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentAnalysis is the analyzer verdict on one uploaded document.
type DocumentAnalysis struct {
	ConfidenceScore decimal.Decimal
	TamperSigns     bool
}

// DocumentAnalyzer scores an uploaded identity document. Implementations are
// opaque collaborators; the session manager only consumes the verdict.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, storedReference string, content []byte) (DocumentAnalysis, error)
}

// FaceMatcher compares a selfie against the session's document portrait and
// returns a 0..100 match score.
type FaceMatcher interface {
	Match(ctx context.Context, selfieReference, documentReference string) (decimal.Decimal, error)
}

// SimulatedAnalyzer stands in for the vendor OCR engine: confidence drawn
// from 70..99.5 with a small tamper probability.
type SimulatedAnalyzer struct {
	r *rand.Rand
}

func NewSimulatedAnalyzer() *SimulatedAnalyzer {
	return &SimulatedAnalyzer{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (a *SimulatedAnalyzer) Analyze(ctx context.Context, storedReference string, content []byte) (DocumentAnalysis, error) {
	confidence := 70 + a.r.Float64()*29.5
	return DocumentAnalysis{
		ConfidenceScore: decimal.NewFromFloat(confidence).Round(1),
		TamperSigns:     a.r.Float64() < 0.1,
	}, nil
}

// SimulatedFaceMatcher stands in for the vendor biometric engine: scores
// drawn from 82..98.
type SimulatedFaceMatcher struct {
	r *rand.Rand
}

func NewSimulatedFaceMatcher() *SimulatedFaceMatcher {
	return &SimulatedFaceMatcher{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (m *SimulatedFaceMatcher) Match(ctx context.Context, selfieReference, documentReference string) (decimal.Decimal, error) {
	score := 82 + m.r.Float64()*16
	return decimal.NewFromFloat(score).Round(1), nil
}

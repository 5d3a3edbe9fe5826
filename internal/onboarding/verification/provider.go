package verification

import (
	"context"

	"github.com/MeridianTrust/MeridianTrust-Backend/providers/verify"
	"github.com/shopspring/decimal"
)

// VendorAnalyzer runs document forensics through the TrustLens API.
type VendorAnalyzer struct {
	client *verify.TRUSTLENSProvider
}

func NewVendorAnalyzer(client *verify.TRUSTLENSProvider) *VendorAnalyzer {
	return &VendorAnalyzer{client: client}
}

func (a *VendorAnalyzer) Analyze(ctx context.Context, storedReference string, content []byte) (DocumentAnalysis, error) {
	entity, err := a.client.AnalyzeDocument(storedReference, content)
	if err != nil {
		return DocumentAnalysis{}, err
	}
	return DocumentAnalysis{
		ConfidenceScore: decimal.NewFromFloat(entity.ConfidenceValue).Round(1),
		TamperSigns:     len(entity.TamperFlags) > 0,
	}, nil
}

// VendorFaceMatcher scores selfie to document matches through TrustLens.
type VendorFaceMatcher struct {
	client *verify.TRUSTLENSProvider
}

func NewVendorFaceMatcher(client *verify.TRUSTLENSProvider) *VendorFaceMatcher {
	return &VendorFaceMatcher{client: client}
}

func (m *VendorFaceMatcher) Match(ctx context.Context, selfieReference, documentReference string) (decimal.Decimal, error) {
	entity, err := m.client.MatchSelfie(selfieReference, documentReference)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(entity.ConfidenceValue).Round(1), nil
}

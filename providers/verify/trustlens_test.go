package verify

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeridianTrust/MeridianTrust-Backend/providers"
	verifymodels "github.com/MeridianTrust/MeridianTrust-Backend/providers/verify/verify_models"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/monitoring/logging"
	"github.com/sirupsen/logrus"
)

func testProvider(baseURL string) *TRUSTLENSProvider {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return &TRUSTLENSProvider{
		BaseProvider: providers.BaseProvider{
			Name:    providers.TrustLens,
			BaseURL: baseURL,
			APIKey:  "test-key",
			Client:  &http.Client{},
			Logger:  &logging.Logger{Logger: log},
		},
		config: &VerifyConfig{
			VerifyProviderName: providers.TrustLens,
			VerifyProviderID:   "app-0001",
			VerifyProviderKey:  "test-key",
		},
	}
}

func TestAnalyzeDocument(t *testing.T) {
	content := []byte("jpeg-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/document/analyze" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("AppId") != "app-0001" {
			t.Errorf("missing AppId header, got %q", r.Header.Get("AppId"))
		}
		if r.Header.Get("Authorization") != "test-key" {
			t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
		}

		var req verifymodels.DocumentAnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Image != base64.StdEncoding.EncodeToString(content) {
			t.Error("expected the document bytes base64 encoded")
		}
		if req.ImageURL != "s3://bucket/doc.jpg" {
			t.Errorf("unexpected image_url %q", req.ImageURL)
		}

		json.NewEncoder(w).Encode(verifymodels.DocumentAnalysisResponse{
			Entity: verifymodels.DocumentEntity{
				DocumentType:    "passport",
				ConfidenceValue: 91.4,
				TamperFlags:     []string{},
				Status:          "analyzed",
			},
		})
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	entity, err := p.AnalyzeDocument("s3://bucket/doc.jpg", content)
	if err != nil {
		t.Fatalf("analyze document: %v", err)
	}
	if entity.ConfidenceValue != 91.4 {
		t.Fatalf("expected confidence 91.4, got %v", entity.ConfidenceValue)
	}
	if entity.DocumentType != "passport" {
		t.Fatalf("unexpected document type %q", entity.DocumentType)
	}
	if len(entity.TamperFlags) != 0 {
		t.Fatalf("expected no tamper flags, got %v", entity.TamperFlags)
	}
}

func TestAnalyzeDocumentSurfacesVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": "image unreadable"}`))
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	if _, err := p.AnalyzeDocument("s3://bucket/doc.jpg", []byte("blurry")); err == nil {
		t.Fatal("expected an error for a vendor rejection")
	}
}

func TestMatchSelfie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/selfie/match" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req verifymodels.SelfieMatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.SelfieURL != "s3://bucket/selfie.jpg" || req.DocumentURL != "s3://bucket/doc.jpg" {
			t.Errorf("unexpected references %q %q", req.SelfieURL, req.DocumentURL)
		}

		json.NewEncoder(w).Encode(verifymodels.SelfieMatchResponse{
			Entity: verifymodels.SelfieEntity{
				Match:           true,
				ConfidenceValue: 88.5,
			},
		})
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	entity, err := p.MatchSelfie("s3://bucket/selfie.jpg", "s3://bucket/doc.jpg")
	if err != nil {
		t.Fatalf("match selfie: %v", err)
	}
	if !entity.Match {
		t.Fatal("expected a match verdict")
	}
	if entity.ConfidenceValue != 88.5 {
		t.Fatalf("expected confidence 88.5, got %v", entity.ConfidenceValue)
	}
}

func TestConfigured(t *testing.T) {
	p := testProvider("https://api.trustlens.example/")
	if !p.Configured() {
		t.Fatal("expected provider with URL and key to report configured")
	}

	p.BaseURL = ""
	if p.Configured() {
		t.Fatal("expected provider without a base URL to report unconfigured")
	}
}

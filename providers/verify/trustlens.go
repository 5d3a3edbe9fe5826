package verify

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/providers"
	verifymodels "github.com/MeridianTrust/MeridianTrust-Backend/providers/verify/verify_models"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/monitoring/logging"
	"github.com/MeridianTrust/MeridianTrust-Backend/utils"
	"github.com/sirupsen/logrus"
)

// TRUSTLENSProvider calls the TrustLens document forensics API for document
// analysis and selfie matching. When the provider is not configured the
// server falls back to the simulated engines.
type TRUSTLENSProvider struct {
	providers.BaseProvider
	config *VerifyConfig
}

type VerifyConfig struct {
	VerifyProviderName    string `mapstructure:"VERIFY_PROVIDER_NAME"`
	VerifyProviderID      string `mapstructure:"TRUSTLENS_APP_ID"`
	VerifyProviderKey     string `mapstructure:"TRUSTLENS_KEY"`
	VerifyProviderBaseUrl string `mapstructure:"TRUSTLENS_BASE_URL"`
}

func NewVerifyProvider(logger *logging.Logger) *TRUSTLENSProvider {

	var c VerifyConfig

	err := utils.LoadCustomConfig(utils.EnvPath, &c)
	if err != nil {
		panic(fmt.Sprintf("Could not load config: %v", err))
	}

	if c.VerifyProviderName == "" {
		c.VerifyProviderName = providers.TrustLens
	}

	return &TRUSTLENSProvider{
		BaseProvider: providers.BaseProvider{
			Name:    c.VerifyProviderName,
			BaseURL: c.VerifyProviderBaseUrl,
			APIKey:  c.VerifyProviderKey,
			Client: &http.Client{
				Timeout: time.Second * 30,
			},
			Logger: logger,
		},
		config: &c,
	}
}

// Configured reports whether the vendor credentials are present.
func (p *TRUSTLENSProvider) Configured() bool {
	return p.BaseURL != "" && p.APIKey != ""
}

// AnalyzeDocument submits an uploaded identity document for forensics.
// TrustLens classifies the document itself, so no type hint is sent.
func (p *TRUSTLENSProvider) AnalyzeDocument(storedReference string, content []byte) (*verifymodels.DocumentEntity, error) {

	var requiredHeaders = make(map[string]string)
	requiredHeaders["AppId"] = p.config.VerifyProviderID
	requiredHeaders["Authorization"] = p.config.VerifyProviderKey

	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %v", err.Error())
	}

	// Path params
	base.Path += "api/v1/document/analyze"

	request := verifymodels.DocumentAnalysisRequest{
		Image:    base64.StdEncoding.EncodeToString(content),
		ImageURL: storedReference,
	}

	resp, err := p.MakeRequest("POST", base.String(), request, requiredHeaders)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	// Log outcomes without the body, analysis responses carry applicant data
	logFields := logrus.Fields{
		"status_code": resp.StatusCode,
		"url":         resp.Request.URL,
	}

	if resp.StatusCode == http.StatusOK {
		p.Logger.WithFields(logFields).Info("Successful response from TrustLens API")
	} else {
		logFields["body"] = string(bodyBytes)
		p.Logger.WithFields(logFields).Error("Unexpected response from TrustLens API")
	}

	// Reset the response body for subsequent reads
	resp.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d \nURL: %s", resp.StatusCode, resp.Request.URL)
	}

	var newModel verifymodels.DocumentAnalysisResponse
	decoder := json.NewDecoder(resp.Body)
	err = decoder.Decode(&newModel)
	if err != nil {
		return nil, fmt.Errorf("error decoding response body: %w", err)
	}

	return &newModel.Entity, nil
}

// MatchSelfie compares the stored selfie capture against the document
// portrait and returns the vendor match verdict.
func (p *TRUSTLENSProvider) MatchSelfie(selfieReference string, documentReference string) (*verifymodels.SelfieEntity, error) {

	var requiredHeaders = make(map[string]string)
	requiredHeaders["AppId"] = p.config.VerifyProviderID
	requiredHeaders["Authorization"] = p.config.VerifyProviderKey

	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %v", err.Error())
	}

	// Path params
	base.Path += "api/v1/selfie/match"

	request := verifymodels.SelfieMatchRequest{
		SelfieURL:   selfieReference,
		DocumentURL: documentReference,
	}

	resp, err := p.MakeRequest("POST", base.String(), request, requiredHeaders)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	logFields := logrus.Fields{
		"status_code": resp.StatusCode,
		"url":         resp.Request.URL,
	}

	if resp.StatusCode == http.StatusOK {
		p.Logger.WithFields(logFields).Info("Successful response from TrustLens API")
	} else {
		logFields["body"] = string(bodyBytes)
		p.Logger.WithFields(logFields).Error("Unexpected response from TrustLens API")
	}

	// Reset the response body for subsequent reads
	resp.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d \nURL: %s", resp.StatusCode, resp.Request.URL)
	}

	var newModel verifymodels.SelfieMatchResponse
	decoder := json.NewDecoder(resp.Body)
	err = decoder.Decode(&newModel)
	if err != nil {
		return nil, fmt.Errorf("error decoding response body: %w", err)
	}

	return &newModel.Entity, nil
}

package verify_models

// DocumentAnalysisRequest is the forensics payload. Image travels base64
// encoded, the stored reference lets the vendor re-fetch on its side.
type DocumentAnalysisRequest struct {
	Image        string `json:"image"`
	ImageURL     string `json:"image_url,omitempty"`
	DocumentType string `json:"document_type"`
}

type DocumentAnalysisResponse struct {
	Entity DocumentEntity `json:"entity"`
}

type DocumentEntity struct {
	DocumentType    string   `json:"document_type"`
	ConfidenceValue float64  `json:"confidence_value"`
	TamperFlags     []string `json:"tamper_flags"`
	Status          string   `json:"status"`
}

// SelfieMatchRequest points the vendor at the two stored captures.
type SelfieMatchRequest struct {
	SelfieURL   string `json:"selfie_url"`
	DocumentURL string `json:"photoid_url"`
}

type SelfieMatchResponse struct {
	Entity SelfieEntity `json:"entity"`
}

type SelfieEntity struct {
	Match           bool    `json:"match"`
	ConfidenceValue float64 `json:"confidence_value"`
}

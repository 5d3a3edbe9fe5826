package domain

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// DateOfBirthLayout is the wire format for applicant birth dates.
const DateOfBirthLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json field names, not Go struct fields, in failures
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func fieldsFromValidation(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{"payload"}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

// NormalizePhone strips the separators applicants habitually type so the
// remainder can be held to E.164.
func NormalizePhone(raw string) string {
	r := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	return r.Replace(strings.TrimSpace(raw))
}

// StepPayload is one step's validated submission. Apply writes it into the
// session; it never touches Status, the service owns transitions.
type StepPayload interface {
	Kind() StepKind
	Validate() error
	Apply(s *OnboardingSession)
}

type IdentityPayload struct {
	FullName    string `json:"full_name" validate:"required,min=2"`
	DateOfBirth string `json:"date_of_birth" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required"`
	AddressLine string `json:"address_line"`
}

func (p *IdentityPayload) Kind() StepKind { return StepIdentity }

func (p *IdentityPayload) Validate() error {
	var fields []string
	if err := validate.Struct(p); err != nil {
		fields = append(fields, fieldsFromValidation(err)...)
	}
	if p.DateOfBirth != "" {
		if _, err := time.Parse(DateOfBirthLayout, p.DateOfBirth); err != nil {
			fields = append(fields, "date_of_birth")
		}
	}
	if p.Phone != "" {
		if err := validate.Var(NormalizePhone(p.Phone), "e164"); err != nil {
			fields = append(fields, "phone")
		}
	}
	if len(fields) > 0 {
		return NewInvalidPayloadError(StepIdentity, fields...)
	}
	return nil
}

func (p *IdentityPayload) Apply(s *OnboardingSession) {
	dob, _ := time.Parse(DateOfBirthLayout, p.DateOfBirth) // validated upstream
	s.Identity = &Identity{
		FullName:    strings.TrimSpace(p.FullName),
		DateOfBirth: dob,
		Email:       strings.ToLower(strings.TrimSpace(p.Email)),
		Phone:       NormalizePhone(p.Phone),
		AddressLine: strings.TrimSpace(p.AddressLine),
	}
}

// DocumentTypes the wizard accepts.
const (
	DocumentTypePassport       = "passport"
	DocumentTypeNationalID     = "national_id"
	DocumentTypeDrivingLicense = "driving_license"
)

// DocumentPayload arrives assembled by the transport layer: the raw upload
// already sits in object storage and the analyzer has scored it.
type DocumentPayload struct {
	Type            string          `json:"id_type" validate:"required,oneof=passport national_id driving_license"`
	Number          string          `json:"id_number" validate:"required,min=4"`
	StoredReference string          `json:"stored_reference" validate:"required"`
	ConfidenceScore decimal.Decimal `json:"confidence_score"`
	TamperSigns     bool            `json:"tamper_signs"`
}

func (p *DocumentPayload) Kind() StepKind { return StepDocument }

func (p *DocumentPayload) Validate() error {
	var fields []string
	if err := validate.Struct(p); err != nil {
		fields = append(fields, fieldsFromValidation(err)...)
	}
	if p.ConfidenceScore.IsNegative() || p.ConfidenceScore.GreaterThan(decimal.NewFromInt(100)) {
		fields = append(fields, "confidence_score")
	}
	if len(fields) > 0 {
		return NewInvalidPayloadError(StepDocument, fields...)
	}
	return nil
}

func (p *DocumentPayload) Apply(s *OnboardingSession) {
	s.Document = &Document{
		Type:            p.Type,
		Number:          strings.TrimSpace(p.Number),
		StoredReference: p.StoredReference,
		ConfidenceScore: p.ConfidenceScore,
		TamperSigns:     p.TamperSigns,
	}
}

type SelfiePayload struct {
	StoredReference string          `json:"stored_reference" validate:"required"`
	MatchScore      decimal.Decimal `json:"match_score"`
}

func (p *SelfiePayload) Kind() StepKind { return StepSelfie }

func (p *SelfiePayload) Validate() error {
	var fields []string
	if err := validate.Struct(p); err != nil {
		fields = append(fields, fieldsFromValidation(err)...)
	}
	if p.MatchScore.IsNegative() || p.MatchScore.GreaterThan(decimal.NewFromInt(100)) {
		fields = append(fields, "match_score")
	}
	if len(fields) > 0 {
		return NewInvalidPayloadError(StepSelfie, fields...)
	}
	return nil
}

func (p *SelfiePayload) Apply(s *OnboardingSession) {
	s.Biometric = &Biometric{
		SelfieReference: p.StoredReference,
		MatchScore:      p.MatchScore,
	}
}

// OTP channels.
const (
	OTPChannelEmail = "email"
	OTPChannelSMS   = "sms"
)

// OTPRequestPayload issues (or re-issues) a code. CodeHash and ExpiresAt are
// filled by the service after generating the code; only Channel comes off the
// wire.
type OTPRequestPayload struct {
	Channel   string    `json:"channel" validate:"required,oneof=email sms"`
	CodeHash  string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

func (p *OTPRequestPayload) Kind() StepKind { return StepOTPRequest }

func (p *OTPRequestPayload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return NewInvalidPayloadError(StepOTPRequest, fieldsFromValidation(err)...)
	}
	return nil
}

func (p *OTPRequestPayload) Apply(s *OnboardingSession) {
	// A re-request replaces the previous code outright
	s.OTP = &OTP{
		CodeHash:  p.CodeHash,
		Channel:   p.Channel,
		Verified:  false,
		ExpiresAt: p.ExpiresAt,
		Attempts:  0,
	}
}

// OTPVerifyPayload carries the applicant's code. The service performs the
// hash comparison; Apply only records the successful outcome.
type OTPVerifyPayload struct {
	Code string `json:"code" validate:"required,len=6,number"`
}

func (p *OTPVerifyPayload) Kind() StepKind { return StepOTPVerify }

func (p *OTPVerifyPayload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return NewInvalidPayloadError(StepOTPVerify, fieldsFromValidation(err)...)
	}
	return nil
}

func (p *OTPVerifyPayload) Apply(s *OnboardingSession) {
	if s.OTP == nil {
		return
	}
	s.OTP.Verified = true
}

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/api/apistrings"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/domain"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/repository"
	basemodels "github.com/MeridianTrust/MeridianTrust-Backend/models"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Upload cap for document and selfie files.
const maxUploadBytes = 8 << 20

// Accepted upload formats, scans and photos only.
var allowedUploadExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".pdf":  true,
}

type Onboarding struct {
	server *Server
}

func (o Onboarding) router(server *Server) {
	o.server = server

	serverGroupV1 := server.router.Group("/api/v1/onboarding")
	serverGroupV1.POST("sessions", o.ensureSession)
	serverGroupV1.GET("sessions/:id", o.getSession)
	serverGroupV1.POST("sessions/:id/identity", o.submitIdentity)
	serverGroupV1.POST("sessions/:id/document", o.uploadDocument)
	serverGroupV1.POST("sessions/:id/selfie", o.uploadSelfie)
	serverGroupV1.POST("sessions/:id/otp", o.requestOTP)
	serverGroupV1.POST("sessions/:id/otp/verify", o.verifyOTP)
	serverGroupV1.POST("sessions/:id/evaluate", o.evaluateRisk)
	serverGroupV1.GET("sessions/:id/account", o.accountSummary)
}

// ensureSession resolves one durable session per client installation. When
// the store is down the client still gets an identifier to move the wizard
// forward, flagged degraded and never persisted.
func (o *Onboarding) ensureSession(ctx *gin.Context) {
	clientRef := ctx.GetHeader("X-Client-Reference")
	if clientRef == "" {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.MissingClientRef))
		return
	}

	request := struct {
		ExistingSessionID string `json:"existing_session_id"`
		DevicePlatform    string `json:"device_platform"`
		DevicePushToken   string `json:"device_push_token"`
	}{}
	// Body is optional, a bare POST is a fresh start
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&request); err != nil {
			ctx.JSON(http.StatusBadRequest, basemodels.NewError(err.Error()))
			return
		}
	}

	sess, created, err := o.server.onboarding.EnsureSession(ctx, clientRef, request.ExistingSessionID, repository.DeviceInfo{
		Platform:  request.DevicePlatform,
		PushToken: request.DevicePushToken,
	})
	if err != nil {
		if errors.Is(err, domain.ErrSessionStoreUnavailable) {
			o.server.logger.Log(logrus.WarnLevel, fmt.Sprintf("session store unavailable, issuing offline identifier: %v", err))
			offline := domain.ToOfflineSessionResponse(domain.NewOfflineSessionID(), time.Now().UTC())
			ctx.JSON(http.StatusOK, basemodels.NewSuccess(apistrings.SessionDegraded, offline))
			return
		}
		o.respondError(ctx, err)
		return
	}

	status := http.StatusOK
	message := "Onboarding session resumed"
	if created {
		status = http.StatusCreated
		message = "Onboarding session created"
	}
	ctx.JSON(status, basemodels.NewSuccess(message, domain.ToSessionResponse(sess)))
}

func (o *Onboarding) getSession(ctx *gin.Context) {
	sess, err := o.server.onboarding.GetSession(ctx, ctx.Param("id"))
	if err != nil {
		o.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Onboarding session", domain.ToSessionResponse(sess)))
}

func (o *Onboarding) submitIdentity(ctx *gin.Context) {
	payload := new(domain.IdentityPayload)

	if err := ctx.ShouldBindJSON(payload); err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(err.Error()))
		return
	}

	o.applyStep(ctx, payload, "Identity details saved")
}

// uploadDocument stores the raw file, runs the analyzer over it and applies
// the document step with the verdict attached.
func (o *Onboarding) uploadDocument(ctx *gin.Context) {
	sessionID := ctx.Param("id")

	data, filename, contentType, ok := o.readUpload(ctx)
	if !ok {
		return
	}

	reference, err := o.server.storage.Store(ctx, sessionID, storage.DocumentKind, filename, contentType, data)
	if err != nil {
		o.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.UploadFailed))
		return
	}

	analysis, err := o.server.analyzer.Analyze(ctx, reference, data)
	if err != nil {
		o.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	payload := &domain.DocumentPayload{
		Type:            ctx.PostForm("id_type"),
		Number:          ctx.PostForm("id_number"),
		StoredReference: reference,
		ConfidenceScore: analysis.ConfidenceScore,
		TamperSigns:     analysis.TamperSigns,
	}
	o.applyStep(ctx, payload, "Identity document received")
}

// uploadSelfie stores the selfie and scores it against the document portrait
// already on the session.
func (o *Onboarding) uploadSelfie(ctx *gin.Context) {
	sessionID := ctx.Param("id")

	data, filename, contentType, ok := o.readUpload(ctx)
	if !ok {
		return
	}

	current, err := o.server.onboarding.GetSession(ctx, sessionID)
	if err != nil {
		o.respondError(ctx, err)
		return
	}
	documentReference := ""
	if current.Document != nil {
		documentReference = current.Document.StoredReference
	}

	reference, err := o.server.storage.Store(ctx, sessionID, storage.SelfieKind, filename, contentType, data)
	if err != nil {
		o.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.UploadFailed))
		return
	}

	score, err := o.server.matcher.Match(ctx, reference, documentReference)
	if err != nil {
		o.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	payload := &domain.SelfiePayload{
		StoredReference: reference,
		MatchScore:      score,
	}
	o.applyStep(ctx, payload, "Selfie received")
}

func (o *Onboarding) requestOTP(ctx *gin.Context) {
	payload := new(domain.OTPRequestPayload)

	if err := ctx.ShouldBindJSON(payload); err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(err.Error()))
		return
	}

	o.applyStep(ctx, payload, "Verification code sent")
}

func (o *Onboarding) verifyOTP(ctx *gin.Context) {
	payload := new(domain.OTPVerifyPayload)

	if err := ctx.ShouldBindJSON(payload); err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(err.Error()))
		return
	}

	o.applyStep(ctx, payload, "Contact details verified")
}

func (o *Onboarding) evaluateRisk(ctx *gin.Context) {
	sess, err := o.server.onboarding.EvaluateRisk(ctx, ctx.Param("id"))
	if err != nil {
		o.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Application evaluated", domain.ToSessionResponse(sess)))
}

func (o *Onboarding) accountSummary(ctx *gin.Context) {
	summary, err := o.server.onboarding.AccountSummary(ctx, ctx.Param("id"))
	if err != nil {
		o.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Account summary", summary))
}

// applyStep runs one validated wizard step and answers with the refreshed
// session so the client never needs a follow-up read.
func (o *Onboarding) applyStep(ctx *gin.Context, payload domain.StepPayload, message string) {
	sess, err := o.server.onboarding.ApplyStep(ctx, ctx.Param("id"), payload)
	if err != nil {
		o.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess(message, domain.ToSessionResponse(sess)))
}

func (o *Onboarding) readUpload(ctx *gin.Context) (data []byte, filename, contentType string, ok bool) {
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.MissingUpload))
		return nil, "", "", false
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.UploadTooLarge))
		return nil, "", "", false
	}

	if !allowedUploadExt[strings.ToLower(filepath.Ext(header.Filename))] {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.UnsupportedFileType))
		return nil, "", "", false
	}

	data, err = io.ReadAll(file)
	if err != nil {
		o.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return nil, "", "", false
	}

	return data, header.Filename, header.Header.Get("Content-Type"), true
}

func (o *Onboarding) respondError(ctx *gin.Context, err error) {
	if payloadErr, ok := domain.IsInvalidPayload(err); ok {
		ctx.JSON(http.StatusBadRequest, basemodels.NewFieldError(payloadErr.Error(), payloadErr.Fields))
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnknownSession):
		ctx.JSON(http.StatusNotFound, basemodels.NewError(apistrings.SessionNotFound))
	case errors.Is(err, domain.ErrOutOfOrderStep):
		ctx.JSON(http.StatusConflict, basemodels.NewError(apistrings.OutOfOrderStep))
	case errors.Is(err, domain.ErrPrerequisiteNotMet):
		ctx.JSON(http.StatusConflict, basemodels.NewError(apistrings.VerificationNeeded))
	case errors.Is(err, domain.ErrPersistenceVerificationFailed):
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.StepNotSaved))
	case errors.Is(err, domain.ErrSessionStoreUnavailable):
		ctx.JSON(http.StatusServiceUnavailable, basemodels.NewError(apistrings.SessionDegraded))
	default:
		o.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
	}
}

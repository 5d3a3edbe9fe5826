package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MeridianTrust/MeridianTrust-Backend/api/apistrings"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/domain"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/repository"
	basemodels "github.com/MeridianTrust/MeridianTrust-Backend/models"
	admin_service "github.com/MeridianTrust/MeridianTrust-Backend/services/admin"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/security"
	"github.com/MeridianTrust/MeridianTrust-Backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Admin struct {
	server *Server
}

func (a Admin) router(server *Server) {
	a.server = server

	serverGroup := server.router.Group("/admin")
	serverGroup.POST("login", a.login)
	serverGroup.POST("logout", AuthenticatedMiddleware(), a.logout)
	serverGroup.GET("me", AuthenticatedMiddleware(), a.me)
	serverGroup.GET("applications", AuthenticatedMiddleware(), a.listApplications)
	serverGroup.GET("applications/:id", AuthenticatedMiddleware(), a.getApplication)
	serverGroup.POST("applications/:id/decision", AuthenticatedMiddleware(), a.decide)
	serverGroup.GET("applications/:id/audit", AuthenticatedMiddleware(), a.auditTrail)
	serverGroup.GET("audit", AuthenticatedMiddleware(), a.recentAudit)
	serverGroup.GET("stats", AuthenticatedMiddleware(), a.stats)
}

func (a *Admin) login(ctx *gin.Context) {
	request := struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}{}

	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.IncorrectEmailPass))
		return
	}

	adm, err := a.server.admin.Authenticate(ctx, request.Email, request.Password)
	if err != nil {
		var adminErr *admin_service.AdminError
		if errors.As(err, &adminErr) {
			ctx.JSON(http.StatusUnauthorized, basemodels.NewError(apistrings.IncorrectEmailPass))
			return
		}
		a.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	token, err := TokenController.CreateToken(utils.TokenObject{
		AdminID: adm.ID,
		Email:   adm.Email,
		Role:    adm.Role,
	})
	if err != nil {
		a.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Login successful", gin.H{
		"token": token,
		"admin": admin_service.ToAdminResponse(adm),
	}))
}

func (a *Admin) logout(ctx *gin.Context) {
	if token, exists := ctx.Get("admin_token"); exists {
		if t, ok := token.(string); ok {
			security.NewCache().RevokeToken(t)
		}
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Logged out", nil))
}

func (a *Admin) me(ctx *gin.Context) {
	adm, err := utils.GetActiveAdmin(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(err.Error()))
		return
	}

	record, err := a.server.admin.GetByEmail(ctx, adm.Email)
	if err != nil {
		if errors.Is(err, admin_service.ErrAdminNotFound) {
			ctx.JSON(http.StatusNotFound, basemodels.NewError(apistrings.AdminNotFound))
			return
		}
		a.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Admin profile", admin_service.ToAdminResponse(record)))
}

func (a *Admin) listApplications(ctx *gin.Context) {
	filter := repository.ListFilter{Limit: 20}

	if raw := ctx.Query("status"); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidListFilter))
			return
		}
		filter.Status = string(status)
	}
	if raw := ctx.Query("risk_level"); raw != "" {
		level, err := domain.ParseRiskLevel(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidListFilter))
			return
		}
		filter.RiskLevel = string(level)
	}
	if n, err := strconv.Atoi(ctx.Query("limit")); err == nil && n > 0 && n <= 100 {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(ctx.Query("offset")); err == nil && n > 0 {
		filter.Offset = n
	}

	sessions, total, err := a.server.admin.ListApplications(ctx, filter)
	if err != nil {
		a.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	applications := make([]*domain.SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		applications = append(applications, domain.ToSessionResponse(sess))
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Applications", gin.H{
		"applications": applications,
		"total":        total,
		"limit":        filter.Limit,
		"offset":       filter.Offset,
	}))
}

func (a *Admin) getApplication(ctx *gin.Context) {
	sess, err := a.server.admin.GetApplication(ctx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSession) {
			ctx.JSON(http.StatusNotFound, basemodels.NewError(apistrings.ApplicationNotFound))
			return
		}
		a.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	decisions, err := a.server.admin.Decisions(ctx, sess.ID)
	if err != nil {
		a.server.logger.Log(logrus.ErrorLevel, err.Error())
		decisions = nil
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Application", gin.H{
		"application": domain.ToSessionResponse(sess),
		"decisions":   admin_service.ToDecisionResponses(decisions),
	}))
}

func (a *Admin) decide(ctx *gin.Context) {
	request := struct {
		Action string `json:"action" binding:"required"`
		Note   string `json:"note"`
	}{}

	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidDecision))
		return
	}

	adm, err := utils.GetActiveAdmin(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, basemodels.NewError(err.Error()))
		return
	}

	updated, err := a.server.admin.Decide(ctx, ctx.Param("id"), adm, request.Action, request.Note)
	if err != nil {
		switch {
		case errors.Is(err, admin_service.ErrUnknownAction):
			ctx.JSON(http.StatusBadRequest, basemodels.NewError(apistrings.InvalidDecision))
		case errors.Is(err, admin_service.ErrDecisionNotAllowed):
			ctx.JSON(http.StatusConflict, basemodels.NewError(apistrings.DecisionNotAllowed))
		case errors.Is(err, domain.ErrUnknownSession):
			ctx.JSON(http.StatusNotFound, basemodels.NewError(apistrings.ApplicationNotFound))
		default:
			a.server.logger.Log(logrus.ErrorLevel, err.Error())
			ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		}
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Decision recorded", domain.ToSessionResponse(updated)))
}

func (a *Admin) auditTrail(ctx *gin.Context) {
	limit, offset := paging(ctx)

	entries, err := a.server.audit.ListBySession(ctx, ctx.Param("id"), limit, offset)
	if err != nil {
		a.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Audit trail", entries))
}

func (a *Admin) recentAudit(ctx *gin.Context) {
	limit, offset := paging(ctx)

	entries, err := a.server.audit.ListRecent(ctx, limit, offset)
	if err != nil {
		a.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Recent activity", entries))
}

func (a *Admin) stats(ctx *gin.Context) {
	stats, err := a.server.admin.Stats(ctx)
	if err != nil {
		a.server.logger.Log(logrus.ErrorLevel, err.Error())
		ctx.JSON(http.StatusInternalServerError, basemodels.NewError(apistrings.ServerError))
		return
	}

	ctx.JSON(http.StatusOK, basemodels.NewSuccess("Onboarding stats", stats))
}

func paging(ctx *gin.Context) (limit, offset int32) {
	limit = 50
	if n, err := strconv.Atoi(ctx.Query("limit")); err == nil && n > 0 && n <= 200 {
		limit = int32(n)
	}
	if n, err := strconv.Atoi(ctx.Query("offset")); err == nil && n > 0 {
		offset = int32(n)
	}
	return limit, offset
}

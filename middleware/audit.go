package middleware

import (
	"context"
	"fmt"
	"time"

	"slices"

	"github.com/MeridianTrust/MeridianTrust-Backend/services/audit"
	"github.com/MeridianTrust/MeridianTrust-Backend/utils"
	"github.com/gin-gonic/gin"
)

type AuditMiddleware struct {
	service *audit.AuditService
}

func NewAuditMiddleware(service *audit.AuditService) *AuditMiddleware {
	return &AuditMiddleware{
		service: service,
	}
}

// RequestAuditor records review-panel requests that change or inspect an
// application. Lifecycle events raised by the onboarding service itself are
// written separately so this only covers the HTTP surface.
func (a *AuditMiddleware) RequestAuditor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !shouldAudit(c.FullPath()) {
			c.Next()
			return
		}

		// Process request first
		c.Next()

		actor := "anonymous"
		if adm, err := utils.GetActiveAdmin(c); err == nil {
			actor = adm.Email
		}

		var sessionID *string
		if id := c.Param("id"); id != "" {
			sessionID = &id
		}

		description := fmt.Sprintf("%s %s -> %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status())
		ip := c.ClientIP()
		userAgent := c.Request.UserAgent()

		// Create log in background to not block the response
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = a.service.Create(ctx, audit.CreateEntryParams{
				SessionID:   sessionID,
				Actor:       actor,
				EventType:   "admin.request",
				Description: description,
				IPAddress:   ip,
				UserAgent:   userAgent,
				CreatedAt:   time.Now().UTC(),
			})
		}()
	}
}

func shouldAudit(fullPath string) bool {
	// Should stay in sync with the review-panel routes in api/admin.go
	auditedPaths := []string{
		"/admin/login",
		"/admin/logout",
		"/admin/applications/:id/decision",
	}
	return slices.Contains(auditedPaths, fullPath)
}

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeridianTrust/MeridianTrust-Backend/services/security"
	"github.com/MeridianTrust/MeridianTrust-Backend/utils"
	"github.com/gin-gonic/gin"
)

func newAuthTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	TokenController = utils.NewJWTToken(&utils.Config{SigningKey: "middleware-test-key"})
	if err := security.NewCache().Start(); err != nil {
		t.Fatalf("start revocation cache: %v", err)
	}

	r := gin.New()
	r.GET("/protected", AuthenticatedMiddleware(), func(ctx *gin.Context) {
		adm, err := utils.GetActiveAdmin(ctx)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"email": adm.Email})
	})
	return r
}

func getProtected(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	r := newAuthTestRouter(t)

	rec := getProtected(r, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsNonBearerScheme(t *testing.T) {
	r := newAuthTestRouter(t)

	rec := getProtected(r, "Basic abc123")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsGarbageToken(t *testing.T) {
	r := newAuthTestRouter(t)

	rec := getProtected(r, "Bearer not-a-jwt")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsTokenSignedWithOtherKey(t *testing.T) {
	r := newAuthTestRouter(t)

	forged, err := utils.NewJWTToken(&utils.Config{SigningKey: "some-other-key"}).CreateToken(utils.TokenObject{
		AdminID: 7,
		Email:   "reviewer@meridiantrust.example",
		Role:    "reviewer",
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	rec := getProtected(r, "Bearer "+forged)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewarePassesValidToken(t *testing.T) {
	r := newAuthTestRouter(t)

	token, err := TokenController.CreateToken(utils.TokenObject{
		AdminID: 7,
		Email:   "reviewer@meridiantrust.example",
		Role:    "reviewer",
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	rec := getProtected(r, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareRejectsRevokedToken(t *testing.T) {
	r := newAuthTestRouter(t)

	token, err := TokenController.CreateToken(utils.TokenObject{
		AdminID: 7,
		Email:   "reviewer@meridiantrust.example",
		Role:    "reviewer",
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	if rec := getProtected(r, "Bearer "+token); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 before logout, got %d", rec.Code)
	}

	security.NewCache().RevokeToken(token)

	rec := getProtected(r, "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestCORSMiddlewareShortCircuitsPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware())
	r.POST("/anything", func(ctx *gin.Context) {
		ctx.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/anything", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected the CORS origin header")
	}
}

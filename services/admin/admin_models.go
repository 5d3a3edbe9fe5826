package admin_service

import (
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/models"
)

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

type AdminUser struct {
	ID             int64
	Email          string
	FullName       string
	HashedPassword string
	Role           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type AdminResponse struct {
	ID        models.ID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func ToAdminResponse(a *AdminUser) *AdminResponse {
	return &AdminResponse{
		ID:        models.ID(a.ID),
		Email:     a.Email,
		FullName:  a.FullName,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}

// Decision is one reviewer ruling on an escalated application. Rows are
// append-only; the latest ruling wins.
type Decision struct {
	ID           int64
	SessionID    string
	AdminID      int64
	AdminEmail   string
	Action       string
	Note         string
	AIOverridden bool
	CreatedAt    time.Time
}

type DecisionResponse struct {
	ID           models.ID `json:"id"`
	SessionID    string    `json:"session_id"`
	AdminID      models.ID `json:"admin_id"`
	AdminEmail   string    `json:"admin_email,omitempty"`
	Action       string    `json:"action"`
	Note         string    `json:"note,omitempty"`
	AIOverridden bool      `json:"ai_overridden"`
	CreatedAt    time.Time `json:"created_at"`
}

func ToDecisionResponse(d Decision) DecisionResponse {
	return DecisionResponse{
		ID:           models.ID(d.ID),
		SessionID:    d.SessionID,
		AdminID:      models.ID(d.AdminID),
		AdminEmail:   d.AdminEmail,
		Action:       d.Action,
		Note:         d.Note,
		AIOverridden: d.AIOverridden,
		CreatedAt:    d.CreatedAt,
	}
}

func ToDecisionResponses(decisions []Decision) []DecisionResponse {
	out := make([]DecisionResponse, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, ToDecisionResponse(d))
	}
	return out
}

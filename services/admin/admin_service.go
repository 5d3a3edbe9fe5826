package admin_service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/db"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/domain"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/repository"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/risk"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/service"
	"github.com/MeridianTrust/MeridianTrust-Backend/services"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/monitoring/logging"
	"github.com/MeridianTrust/MeridianTrust-Backend/utils"
	"github.com/lib/pq"
)

const statsCacheTTL = 30 * time.Second

// AdminService backs the review panel: reviewer accounts, the application
// queue, rulings on escalated sessions and the dashboard counters.
type AdminService struct {
	store    *db.Store
	repo     repository.SessionRepository
	cache    *services.RedisService
	logger   *logging.Logger
	notifier service.Notifier
	auditor  service.Auditor
}

func NewAdminService(
	store *db.Store,
	repo repository.SessionRepository,
	cache *services.RedisService,
	logger *logging.Logger,
	notifier service.Notifier,
	auditor service.Auditor,
) *AdminService {
	return &AdminService{
		store:    store,
		repo:     repo,
		cache:    cache,
		logger:   logger,
		notifier: notifier,
		auditor:  auditor,
	}
}

// Bootstrap provisions the seed reviewer account from the environment so a
// fresh deployment is never locked out of its own review panel. Skips when
// the account already exists.
func (a *AdminService) Bootstrap(ctx context.Context, email, password, fullName string) error {
	if email == "" || password == "" {
		a.logger.Warn("admin bootstrap skipped, ADMIN_EMAIL or ADMIN_PASSWORD not set")
		return nil
	}

	hashed, err := utils.GenerateHashValue(password)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	_, err = a.store.DB.ExecContext(ctx,
		`INSERT INTO admin_users (email, full_name, hashed_password, role) VALUES ($1, $2, $3, 'admin')`,
		strings.ToLower(email), fullName, hashed,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == db.DuplicateEntry {
				// 23505 --> account already provisioned
				return nil
			}
		}
		return err
	}

	a.logger.Info(fmt.Sprintf("bootstrapped reviewer account %s", strings.ToLower(email)))
	return nil
}

// Authenticate verifies reviewer credentials. A missing account and a wrong
// password both answer ErrInvalidCredentials so the response never reveals
// which half failed.
func (a *AdminService) Authenticate(ctx context.Context, email, password string) (*AdminUser, error) {
	adm, err := a.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAdminNotFound) {
			return nil, NewAdminError(ErrInvalidCredentials, email)
		}
		return nil, err
	}

	if err := utils.VerifyHashValue(password, adm.HashedPassword); err != nil {
		return nil, NewAdminError(ErrInvalidCredentials, email, err)
	}

	return adm, nil
}

const getAdminByEmailQuery = `SELECT id, email, full_name, hashed_password, role, created_at, updated_at
FROM admin_users WHERE email = $1`

func (a *AdminService) GetByEmail(ctx context.Context, email string) (*AdminUser, error) {
	var adm AdminUser
	err := a.store.DB.QueryRowContext(ctx, getAdminByEmailQuery, strings.ToLower(email)).Scan(
		&adm.ID,
		&adm.Email,
		&adm.FullName,
		&adm.HashedPassword,
		&adm.Role,
		&adm.CreatedAt,
		&adm.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return &adm, nil
}

// ListApplications pages through sessions for the review queue, optionally
// narrowed by status or risk level.
func (a *AdminService) ListApplications(ctx context.Context, filter repository.ListFilter) ([]*domain.OnboardingSession, int64, error) {
	return a.repo.ListSessions(ctx, filter)
}

func (a *AdminService) GetApplication(ctx context.Context, sessionID string) (*domain.OnboardingSession, error) {
	return a.repo.GetSession(ctx, sessionID)
}

// Decide records a reviewer ruling on an escalated application. Approve
// opens the account the scorer withheld and marks the scorer overridden;
// reject leaves the session escalated with the ruling on file. Only
// escalated sessions accept rulings.
func (a *AdminService) Decide(ctx context.Context, sessionID string, admin utils.TokenObject, action, note string) (*domain.OnboardingSession, error) {
	if action != DecisionApprove && action != DecisionReject {
		return nil, ErrUnknownAction
	}

	var overrode bool
	var updated *domain.OnboardingSession
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		overrode = false
		updated, err = a.repo.UpdateSession(ctx, sessionID, func(sess *domain.OnboardingSession) error {
			if sess.Status != domain.StatusEscalated || sess.Risk == nil {
				return ErrDecisionNotAllowed
			}
			if action == DecisionApprove {
				if sess.Risk.AccountNumber == "" {
					sess.Risk.AccountNumber = risk.NewAccountNumber()
					sess.Risk.RoutingCode = risk.RoutingCode
				}
				sess.Status = domain.StatusApproved
				overrode = true
			}
			// A reject keeps the session escalated, the ruling below is the record
			return nil
		})
		if isDuplicateAccountNumber(err) {
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	_, err = a.store.DB.ExecContext(ctx,
		`INSERT INTO admin_decisions (session_id, admin_id, action, note, ai_overridden) VALUES ($1, $2, $3, $4, $5)`,
		sessionID, admin.AdminID, action, note, overrode,
	)
	if err != nil {
		// The session state already moved, surface the bookkeeping failure loudly
		a.logger.Error(fmt.Sprintf("failed to record decision for %s: %v", sessionID, err))
		return nil, err
	}

	if a.auditor != nil {
		a.auditor.RecordSessionEvent(ctx, sessionID, admin.Email, "admin.decision",
			fmt.Sprintf("reviewer ruled %s, status now %s", action, updated.Status))
	}
	if overrode && a.notifier != nil {
		if nerr := a.notifier.SendDecision(ctx, updated); nerr != nil {
			a.logger.Error(fmt.Sprintf("failed to deliver decision notice for %s: %v", sessionID, nerr))
		}
	}

	// Rulings move the status counters, drop the cached dashboard numbers
	if a.cache != nil {
		if cerr := a.cache.InvalidateOnboardingStats(ctx); cerr != nil {
			a.logger.Error(fmt.Sprintf("failed to invalidate stats cache: %v", cerr))
		}
	}

	return updated, nil
}

const listDecisionsQuery = `SELECT d.id, d.session_id, d.admin_id, u.email, d.action, d.note, d.ai_overridden, d.created_at
FROM admin_decisions d
JOIN admin_users u ON u.id = d.admin_id
WHERE d.session_id = $1
ORDER BY d.created_at DESC`

// Decisions lists the rulings on file for an application, newest first.
func (a *AdminService) Decisions(ctx context.Context, sessionID string) ([]Decision, error) {
	rows, err := a.store.DB.QueryContext(ctx, listDecisionsQuery, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var d Decision
		var note sql.NullString
		err := rows.Scan(&d.ID, &d.SessionID, &d.AdminID, &d.AdminEmail, &d.Action, &note, &d.AIOverridden, &d.CreatedAt)
		if err != nil {
			return nil, err
		}
		d.Note = note.String
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// Stats serves the dashboard counters cache-first. Cache trouble degrades to
// a direct database read rather than failing the dashboard.
func (a *AdminService) Stats(ctx context.Context) (*repository.Stats, error) {
	if a.cache != nil {
		stats, ok, err := a.cache.GetCachedOnboardingStats(ctx)
		if err != nil {
			a.logger.Error(fmt.Sprintf("stats cache read failed: %v", err))
		} else if ok {
			return &stats, nil
		}
	}

	stats, err := a.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if err := a.cache.CacheOnboardingStats(ctx, *stats, statsCacheTTL); err != nil {
			a.logger.Error(fmt.Sprintf("stats cache write failed: %v", err))
		}
	}
	return stats, nil
}

// RefreshStats recomputes and re-caches the counters, run on a schedule so
// the dashboard stays warm between requests.
func (a *AdminService) RefreshStats(ctx context.Context) error {
	stats, err := a.repo.Stats(ctx)
	if err != nil {
		return err
	}
	if a.cache == nil {
		return nil
	}
	return a.cache.CacheOnboardingStats(ctx, *stats, statsCacheTTL)
}

func isDuplicateAccountNumber(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == db.DuplicateEntry && pqErr.Constraint == "onboarding_sessions_account_number_key"
}

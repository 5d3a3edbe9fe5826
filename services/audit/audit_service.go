package audit

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/db"
	"github.com/MeridianTrust/MeridianTrust-Backend/models"
	"github.com/MeridianTrust/MeridianTrust-Backend/services/monitoring/logging"
	"github.com/sqlc-dev/pqtype"
)

// AuditService writes the append-only trail of onboarding events. Writes
// never block the request that produced them.
type AuditService struct {
	store  *db.Store
	logger *logging.Logger
}

func NewAuditService(store *db.Store, logger *logging.Logger) *AuditService {
	return &AuditService{
		store:  store,
		logger: logger,
	}
}

type Entry struct {
	ID          models.ID `json:"id"`
	SessionID   *string   `json:"session_id,omitempty"`
	Actor       string    `json:"actor"`
	EventType   string    `json:"event_type"`
	Description string    `json:"description,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateEntryParams struct {
	SessionID   *string
	Actor       string
	EventType   string
	Description string
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
}

const insertEntryQuery = `INSERT INTO audit_log (session_id, actor, event_type, description, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (a *AuditService) Create(ctx context.Context, params CreateEntryParams) error {
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := a.store.DB.ExecContext(ctx, insertEntryQuery,
		toNullString(params.SessionID),
		params.Actor,
		params.EventType,
		toNullString(&params.Description),
		toInet(params.IPAddress),
		toNullString(&params.UserAgent),
		createdAt,
	)
	return err
}

// RecordSessionEvent logs a lifecycle event for a session in the background
// so the caller's response is never held up by the audit write.
func (a *AuditService) RecordSessionEvent(ctx context.Context, sessionID, actor, eventType, description string) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := a.Create(bgCtx, CreateEntryParams{
			SessionID:   &sessionID,
			Actor:       actor,
			EventType:   eventType,
			Description: description,
		})
		if err != nil {
			a.logger.WithSession(sessionID).Error("failed to write audit entry: ", err)
		}
	}()
}

const listBySessionQuery = `SELECT id, session_id, actor, event_type, description, ip_address, user_agent, created_at
FROM audit_log
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

func (a *AuditService) ListBySession(ctx context.Context, sessionID string, limit, offset int32) ([]Entry, error) {
	rows, err := a.store.DB.QueryContext(ctx, listBySessionQuery, sessionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

const listRecentQuery = `SELECT id, session_id, actor, event_type, description, ip_address, user_agent, created_at
FROM audit_log
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

func (a *AuditService) ListRecent(ctx context.Context, limit, offset int32) ([]Entry, error) {
	rows, err := a.store.DB.QueryContext(ctx, listRecentQuery, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteBefore prunes entries older than the cutoff and returns how many rows
// were removed. Scheduled as a recurring retention task.
func (a *AuditService) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.store.DB.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			entry       Entry
			sessionID   sql.NullString
			description sql.NullString
			ipAddress   pqtype.Inet
			userAgent   sql.NullString
		)
		err := rows.Scan(
			&entry.ID,
			&sessionID,
			&entry.Actor,
			&entry.EventType,
			&description,
			&ipAddress,
			&userAgent,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if sessionID.Valid {
			entry.SessionID = &sessionID.String
		}
		entry.Description = description.String
		if ipAddress.Valid {
			entry.IPAddress = ipAddress.IPNet.IP.String()
		}
		entry.UserAgent = userAgent.String

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Helper functions
func toNullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func toInet(ip string) pqtype.Inet {
	if ip == "" {
		return pqtype.Inet{Valid: false}
	}

	// Try parsing as CIDR (e.g., "192.168.1.0/24")
	if _, ipNet, err := net.ParseCIDR(ip); err == nil {
		return pqtype.Inet{
			IPNet: *ipNet,
			Valid: true,
		}
	}

	// Try parsing as a single IP address (e.g., "192.168.1.1")
	if parsedIP := net.ParseIP(ip); parsedIP != nil {
		// Convert to a CIDR with full mask (/32 for IPv4, /128 for IPv6)
		var mask net.IPMask
		if parsedIP.To4() != nil {
			mask = net.CIDRMask(32, 32) // IPv4
		} else {
			mask = net.CIDRMask(128, 128) // IPv6
		}
		ipNet := &net.IPNet{
			IP:   parsedIP,
			Mask: mask,
		}
		return pqtype.Inet{
			IPNet: *ipNet,
			Valid: true,
		}
	}

	// Invalid IP or CIDR, return invalid
	return pqtype.Inet{Valid: false}
}

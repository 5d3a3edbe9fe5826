package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/MeridianTrust/MeridianTrust-Backend/db"
	"github.com/MeridianTrust/MeridianTrust-Backend/internal/onboarding/domain"
	"github.com/shopspring/decimal"
)

type SQLSessionRepository struct {
	store *db.Store
}

func NewSQLSessionRepository(store *db.Store) *SQLSessionRepository {
	return &SQLSessionRepository{store: store}
}

const sessionColumns = `id, status, full_name, date_of_birth, email, phone, address_line,
	document_type, document_number, document_reference, document_confidence, document_tampered,
	selfie_reference, face_match_score,
	otp_hash, otp_channel, otp_verified, otp_expires_at, otp_attempts,
	risk_level, risk_score, risk_reasons, account_number, routing_code, balance,
	created_at, updated_at`

const (
	getSessionQuery          = `SELECT ` + sessionColumns + ` FROM onboarding_sessions WHERE id = $1`
	getSessionForUpdateQuery = getSessionQuery + ` FOR UPDATE`

	getSessionByTokenQuery = `SELECT ` + sessionColumns + ` FROM onboarding_sessions
	WHERE id = (SELECT session_id FROM client_sessions WHERE client_token = $1)`

	insertSessionQuery = `INSERT INTO onboarding_sessions (id, status) VALUES ($1, $2)`

	bindClientQuery = `INSERT INTO client_sessions (client_token, session_id, device_platform, device_push_token)
	VALUES ($1, $2, $3, $4) ON CONFLICT (client_token) DO NOTHING`

	updateSessionQuery = `UPDATE onboarding_sessions SET
	status = $2,
	full_name = $3, date_of_birth = $4, email = $5, phone = $6, address_line = $7,
	document_type = $8, document_number = $9, document_reference = $10,
	document_confidence = $11, document_tampered = $12,
	selfie_reference = $13, face_match_score = $14,
	otp_hash = $15, otp_channel = $16, otp_verified = $17, otp_expires_at = $18, otp_attempts = $19,
	risk_level = $20, risk_score = $21, risk_reasons = $22,
	account_number = $23, routing_code = $24, balance = $25,
	updated_at = now()
	WHERE id = $1`

	getDeviceQuery = `SELECT device_platform, device_push_token FROM client_sessions WHERE session_id = $1`
)

func (r *SQLSessionRepository) EnsureSession(ctx context.Context, clientToken string, device DeviceInfo) (*domain.OnboardingSession, bool, error) {
	// Fast path: the binding already exists
	sess, err := r.GetSessionByClientToken(ctx, clientToken)
	if err == nil {
		return sess, false, nil
	}
	if !errors.Is(err, domain.ErrUnknownSession) {
		return nil, false, err
	}

	id := domain.NewSessionID()
	var created *domain.OnboardingSession
	txErr := r.store.ExecTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertSessionQuery, id, domain.StatusCreated); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		res, err := tx.ExecContext(ctx, bindClientQuery, clientToken, id,
			nullString(device.Platform), nullString(device.PushToken))
		if err != nil {
			return fmt.Errorf("bind client: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			// A concurrent start won the race for this token; drop our row
			return errLostCreationRace
		}
		created, err = scanSession(tx.QueryRowContext(ctx, getSessionQuery, id))
		if err != nil {
			return fmt.Errorf("read back created session: %w", err)
		}
		return nil
	})
	if errors.Is(txErr, errLostCreationRace) {
		sess, err := r.GetSessionByClientToken(ctx, clientToken)
		if err != nil {
			return nil, false, err
		}
		return sess, false, nil
	}
	if txErr != nil {
		if storeUnavailable(txErr) {
			return nil, false, fmt.Errorf("%w: %v", domain.ErrSessionStoreUnavailable, txErr)
		}
		return nil, false, txErr
	}
	return created, true, nil
}

var errLostCreationRace = errors.New("lost session creation race")

func (r *SQLSessionRepository) GetSession(ctx context.Context, id string) (*domain.OnboardingSession, error) {
	sess, err := scanSession(r.store.DB.QueryRowContext(ctx, getSessionQuery, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return sess, nil
}

func (r *SQLSessionRepository) GetSessionByClientToken(ctx context.Context, clientToken string) (*domain.OnboardingSession, error) {
	sess, err := scanSession(r.store.DB.QueryRowContext(ctx, getSessionByTokenQuery, clientToken))
	if err != nil {
		return nil, mapReadError(err)
	}
	return sess, nil
}

func (r *SQLSessionRepository) UpdateSession(ctx context.Context, id string, fn func(s *domain.OnboardingSession) error) (*domain.OnboardingSession, error) {
	var updated *domain.OnboardingSession
	txErr := r.store.ExecTx(ctx, func(tx *sql.Tx) error {
		sess, err := scanSession(tx.QueryRowContext(ctx, getSessionForUpdateQuery, id))
		if err != nil {
			return mapReadError(err)
		}

		if err := fn(sess); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, updateSessionQuery, writeArgs(sess)...); err != nil {
			return fmt.Errorf("write session: %w", err)
		}

		stored, err := scanSession(tx.QueryRowContext(ctx, getSessionQuery, id))
		if err != nil {
			return fmt.Errorf("read back session: %w", err)
		}
		if !sess.Matches(stored) {
			return domain.ErrPersistenceVerificationFailed
		}
		updated = stored
		return nil
	})
	if txErr != nil {
		if storeUnavailable(txErr) {
			return nil, fmt.Errorf("%w: %v", domain.ErrSessionStoreUnavailable, txErr)
		}
		return nil, txErr
	}
	return updated, nil
}

func (r *SQLSessionRepository) ListSessions(ctx context.Context, filter ListFilter) ([]*domain.OnboardingSession, int64, error) {
	var conds []string
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.RiskLevel != "" {
		args = append(args, filter.RiskLevel)
		conds = append(conds, fmt.Sprintf("risk_level = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.store.DB.QueryRowContext(ctx, "SELECT count(*) FROM onboarding_sessions"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf("SELECT %s FROM onboarding_sessions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		sessionColumns, where, len(args)-1, len(args))

	rows, err := r.store.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []*domain.OnboardingSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (r *SQLSessionRepository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus:    make(map[string]int64),
		ByRiskLevel: make(map[string]int64),
	}

	rows, err := r.store.DB.QueryContext(ctx, `SELECT status, count(*) FROM onboarding_sessions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	riskRows, err := r.store.DB.QueryContext(ctx,
		`SELECT risk_level, count(*) FROM onboarding_sessions WHERE risk_level IS NOT NULL GROUP BY risk_level`)
	if err != nil {
		return nil, err
	}
	defer riskRows.Close()
	for riskRows.Next() {
		var level string
		var count int64
		if err := riskRows.Scan(&level, &count); err != nil {
			return nil, err
		}
		stats.ByRiskLevel[level] = count
	}
	if err := riskRows.Err(); err != nil {
		return nil, err
	}

	if err := r.store.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM onboarding_sessions WHERE status = $1 AND updated_at >= date_trunc('day', now())`,
		domain.StatusApproved).Scan(&stats.ApprovedToday); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *SQLSessionRepository) GetDeviceForSession(ctx context.Context, sessionID string) (DeviceInfo, error) {
	var platform, token sql.NullString
	err := r.store.DB.QueryRowContext(ctx, getDeviceQuery, sessionID).Scan(&platform, &token)
	if err == sql.ErrNoRows {
		return DeviceInfo{}, nil
	}
	if err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{Platform: platform.String, PushToken: token.String}, nil
}

// rowScanner lets scanSession serve both QueryRow and Query results.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.OnboardingSession, error) {
	var (
		sess    domain.OnboardingSession
		status  string
		ident   nullIdentity
		doc     nullDocument
		bio     nullBiometric
		otp     nullOTP
		riskRec nullRisk
		balance decimal.Decimal
	)
	err := row.Scan(
		&sess.ID, &status,
		&ident.fullName, &ident.dateOfBirth, &ident.email, &ident.phone, &ident.addressLine,
		&doc.docType, &doc.number, &doc.reference, &doc.confidence, &doc.tampered,
		&bio.reference, &bio.matchScore,
		&otp.hash, &otp.channel, &otp.verified, &otp.expiresAt, &otp.attempts,
		&riskRec.level, &riskRec.score, &riskRec.reasons, &riskRec.accountNumber, &riskRec.routingCode, &balance,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sess.Status = domain.Status(status)
	sess.Identity = ident.toDomain()
	sess.Document = doc.toDomain()
	sess.Biometric = bio.toDomain()
	sess.OTP = otp.toDomain()
	sess.Risk = riskRec.toDomain(balance)
	return &sess, nil
}

type nullIdentity struct {
	fullName    sql.NullString
	dateOfBirth sql.NullTime
	email       sql.NullString
	phone       sql.NullString
	addressLine sql.NullString
}

func (n nullIdentity) toDomain() *domain.Identity {
	if !n.fullName.Valid {
		return nil
	}
	return &domain.Identity{
		FullName:    n.fullName.String,
		DateOfBirth: n.dateOfBirth.Time,
		Email:       n.email.String,
		Phone:       n.phone.String,
		AddressLine: n.addressLine.String,
	}
}

type nullDocument struct {
	docType    sql.NullString
	number     sql.NullString
	reference  sql.NullString
	confidence decimal.NullDecimal
	tampered   sql.NullBool
}

func (n nullDocument) toDomain() *domain.Document {
	if !n.reference.Valid {
		return nil
	}
	return &domain.Document{
		Type:            n.docType.String,
		Number:          n.number.String,
		StoredReference: n.reference.String,
		ConfidenceScore: n.confidence.Decimal,
		TamperSigns:     n.tampered.Bool,
	}
}

type nullBiometric struct {
	reference  sql.NullString
	matchScore decimal.NullDecimal
}

func (n nullBiometric) toDomain() *domain.Biometric {
	if !n.reference.Valid {
		return nil
	}
	return &domain.Biometric{
		SelfieReference: n.reference.String,
		MatchScore:      n.matchScore.Decimal,
	}
}

type nullOTP struct {
	hash      sql.NullString
	channel   sql.NullString
	verified  bool
	expiresAt sql.NullTime
	attempts  int
}

func (n nullOTP) toDomain() *domain.OTP {
	if !n.hash.Valid {
		return nil
	}
	return &domain.OTP{
		CodeHash:  n.hash.String,
		Channel:   n.channel.String,
		Verified:  n.verified,
		ExpiresAt: n.expiresAt.Time,
		Attempts:  n.attempts,
	}
}

type nullRisk struct {
	level         sql.NullString
	score         decimal.NullDecimal
	reasons       sql.NullString
	accountNumber sql.NullString
	routingCode   sql.NullString
}

func (n nullRisk) toDomain(balance decimal.Decimal) *domain.Risk {
	if !n.level.Valid {
		return nil
	}
	var reasons []string
	if n.reasons.String != "" {
		reasons = strings.Split(n.reasons.String, "\n")
	}
	return &domain.Risk{
		Level:         domain.RiskLevel(n.level.String),
		Score:         n.score.Decimal,
		Reasons:       reasons,
		AccountNumber: n.accountNumber.String,
		RoutingCode:   n.routingCode.String,
		Balance:       balance,
	}
}

func writeArgs(s *domain.OnboardingSession) []any {
	args := make([]any, 0, 25)
	args = append(args, s.ID, string(s.Status))

	if s.Identity != nil {
		args = append(args,
			nullString(s.Identity.FullName), sql.NullTime{Time: s.Identity.DateOfBirth, Valid: true},
			nullString(s.Identity.Email), nullString(s.Identity.Phone), nullString(s.Identity.AddressLine))
	} else {
		args = append(args, nil, nil, nil, nil, nil)
	}

	if s.Document != nil {
		args = append(args,
			nullString(s.Document.Type), nullString(s.Document.Number), nullString(s.Document.StoredReference),
			decimal.NullDecimal{Decimal: s.Document.ConfidenceScore, Valid: true},
			sql.NullBool{Bool: s.Document.TamperSigns, Valid: true})
	} else {
		args = append(args, nil, nil, nil, nil, nil)
	}

	if s.Biometric != nil {
		args = append(args,
			nullString(s.Biometric.SelfieReference),
			decimal.NullDecimal{Decimal: s.Biometric.MatchScore, Valid: true})
	} else {
		args = append(args, nil, nil)
	}

	if s.OTP != nil {
		args = append(args,
			nullString(s.OTP.CodeHash), nullString(s.OTP.Channel), s.OTP.Verified,
			sql.NullTime{Time: s.OTP.ExpiresAt, Valid: true}, s.OTP.Attempts)
	} else {
		args = append(args, nil, nil, false, nil, 0)
	}

	if s.Risk != nil {
		args = append(args,
			nullString(string(s.Risk.Level)),
			decimal.NullDecimal{Decimal: s.Risk.Score, Valid: true},
			nullString(strings.Join(s.Risk.Reasons, "\n")),
			nullString(s.Risk.AccountNumber), nullString(s.Risk.RoutingCode), s.Risk.Balance)
	} else {
		args = append(args, nil, nil, nil, nil, nil, decimal.Zero)
	}

	return args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func mapReadError(err error) error {
	if err == sql.ErrNoRows {
		return domain.ErrUnknownSession
	}
	if storeUnavailable(err) {
		return fmt.Errorf("%w: %v", domain.ErrSessionStoreUnavailable, err)
	}
	return err
}

// storeUnavailable classifies infrastructure failures that mean the store
// cannot be reached, as opposed to errors the store itself reported.
func storeUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

var _ SessionRepository = (*SQLSessionRepository)(nil)

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tia/booking-service/internal/models"
	"tia/booking-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateAgency(ctx context.Context, input store.CreateAgencyInput) (models.Agency, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return models.Agency{}, fmt.Errorf("%w: agency name cannot be empty", store.ErrValidation)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Agency{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	unique, err := isNameUnique(ctx, tx, name, "")
	if err != nil {
		return models.Agency{}, err
	}
	if !unique {
		return models.Agency{}, store.ErrDuplicateAgencyName
	}

	now := time.Now().UTC()
	var agency models.Agency
	row := tx.QueryRow(ctx, `
		INSERT INTO agencies (agency_id, name, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING agency_id, name, description, status, created_at, updated_at
	`, uuid.NewString(), name, strings.TrimSpace(input.Description), models.AgencyActive, now)
	if err = row.Scan(&agency.AgencyID, &agency.Name, &agency.Description, &agency.Status, &agency.CreatedAt, &agency.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return models.Agency{}, store.ErrDuplicateAgencyName
		}
		return models.Agency{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Agency{}, err
	}
	return agency, nil
}

func (s *Store) UpdateAgency(ctx context.Context, input store.UpdateAgencyInput) (models.Agency, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Agency{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `
		UPDATE agencies
		SET updated_at = $1
	`
	args := []interface{}{time.Now().UTC()}
	argPos := 2

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return models.Agency{}, fmt.Errorf("%w: agency name cannot be empty", store.ErrValidation)
		}
		var unique bool
		unique, err = isNameUnique(ctx, tx, name, input.AgencyID)
		if err != nil {
			return models.Agency{}, err
		}
		if !unique {
			return models.Agency{}, store.ErrDuplicateAgencyName
		}
		query += fmt.Sprintf(", name = $%d", argPos)
		args = append(args, name)
		argPos++
	}
	if input.Description != nil {
		query += fmt.Sprintf(", description = $%d", argPos)
		args = append(args, strings.TrimSpace(*input.Description))
		argPos++
	}
	if input.Status != nil {
		if !validAgencyStatus(*input.Status) {
			return models.Agency{}, fmt.Errorf("%w: unknown agency status %q", store.ErrValidation, *input.Status)
		}
		query += fmt.Sprintf(", status = $%d", argPos)
		args = append(args, *input.Status)
		argPos++
	}

	query += fmt.Sprintf(`
		WHERE agency_id = $%d
		RETURNING agency_id, name, description, status, created_at, updated_at`, argPos)
	args = append(args, input.AgencyID)

	var agency models.Agency
	row := tx.QueryRow(ctx, query, args...)
	if err = row.Scan(&agency.AgencyID, &agency.Name, &agency.Description, &agency.Status, &agency.CreatedAt, &agency.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Agency{}, store.ErrAgencyNotFound
		}
		if isUniqueViolation(err) {
			return models.Agency{}, store.ErrDuplicateAgencyName
		}
		return models.Agency{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Agency{}, err
	}
	return agency, nil
}

func (s *Store) GetAgency(ctx context.Context, agencyID string) (models.Agency, error) {
	var agency models.Agency
	row := s.pool.QueryRow(ctx, `
		SELECT agency_id, name, description, status, created_at, updated_at
		FROM agencies
		WHERE agency_id = $1
	`, agencyID)
	if err := row.Scan(&agency.AgencyID, &agency.Name, &agency.Description, &agency.Status, &agency.CreatedAt, &agency.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Agency{}, store.ErrAgencyNotFound
		}
		return models.Agency{}, err
	}
	return agency, nil
}

func (s *Store) ListAgencies(ctx context.Context) ([]models.Agency, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT agency_id, name, description, status, created_at, updated_at
		FROM agencies
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agencies []models.Agency
	for rows.Next() {
		var agency models.Agency
		if err := rows.Scan(&agency.AgencyID, &agency.Name, &agency.Description, &agency.Status, &agency.CreatedAt, &agency.UpdatedAt); err != nil {
			return nil, err
		}
		agencies = append(agencies, agency)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return agencies, nil
}

func (s *Store) IsAgencyNameUnique(ctx context.Context, name, excludeAgencyID string) (bool, error) {
	return isNameUnique(ctx, s.pool, name, excludeAgencyID)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Comparison is pinned to lower(name) on both sides so the result does not
// depend on the collation of the backing store.
func isNameUnique(ctx context.Context, q queryRower, name, excludeAgencyID string) (bool, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return true, nil
	}
	var existingID string
	row := q.QueryRow(ctx, `
		SELECT agency_id
		FROM agencies
		WHERE lower(name) = lower($1)
	`, trimmed)
	if err := row.Scan(&existingID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, err
	}
	if excludeAgencyID != "" && existingID == excludeAgencyID {
		return true, nil
	}
	return false, nil
}

func validAgencyStatus(status string) bool {
	switch status {
	case models.AgencyActive, models.AgencyInactive, models.AgencySuspended:
		return true
	default:
		return false
	}
}

func (s *Store) CreateInterpreter(ctx context.Context, input store.CreateInterpreterInput) (models.Interpreter, error) {
	if len(input.Skills) == 0 {
		return models.Interpreter{}, fmt.Errorf("%w: at least one skill is required", store.ErrValidation)
	}

	if err := ensureAgencyExists(ctx, s.pool, input.AgencyID); err != nil {
		return models.Interpreter{}, err
	}

	now := time.Now().UTC()
	var interp models.Interpreter
	row := s.pool.QueryRow(ctx, `
		INSERT INTO interpreters (interpreter_id, agency_id, user_id, skills, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING interpreter_id, agency_id, user_id, skills, status, created_at, updated_at
	`, uuid.NewString(), input.AgencyID, input.UserID, input.Skills, models.InterpreterActive, now)
	if err := row.Scan(&interp.InterpreterID, &interp.AgencyID, &interp.UserID, &interp.Skills, &interp.Status, &interp.CreatedAt, &interp.UpdatedAt); err != nil {
		return models.Interpreter{}, err
	}
	return interp, nil
}

func (s *Store) CreateClient(ctx context.Context, input store.CreateClientInput) (models.Client, error) {
	if err := ensureAgencyExists(ctx, s.pool, input.AgencyID); err != nil {
		return models.Client{}, err
	}

	preferences := input.Preferences
	if preferences == nil {
		preferences = map[string]string{}
	}
	prefsJSON, err := json.Marshal(preferences)
	if err != nil {
		return models.Client{}, err
	}

	now := time.Now().UTC()
	var client models.Client
	var prefsRaw []byte
	row := s.pool.QueryRow(ctx, `
		INSERT INTO clients (client_id, agency_id, user_id, organization_name, preferences, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING client_id, agency_id, user_id, organization_name, preferences, status, created_at, updated_at
	`, uuid.NewString(), input.AgencyID, input.UserID, strings.TrimSpace(input.OrganizationName), prefsJSON, models.ClientActive, now)
	if err := row.Scan(&client.ClientID, &client.AgencyID, &client.UserID, &client.OrganizationName, &prefsRaw, &client.Status, &client.CreatedAt, &client.UpdatedAt); err != nil {
		return models.Client{}, err
	}
	if len(prefsRaw) > 0 {
		if err := json.Unmarshal(prefsRaw, &client.Preferences); err != nil {
			return models.Client{}, err
		}
	}
	return client, nil
}

func (s *Store) FindAvailableInterpreters(ctx context.Context, input store.AvailabilityInput) ([]models.AvailableInterpreter, error) {
	if !input.StartTime.Before(input.EndTime) {
		return nil, fmt.Errorf("%w: start time must be before end time", store.ErrValidation)
	}

	query := `
		SELECT interpreter_id, user_id, skills
		FROM interpreters
		WHERE agency_id = $1 AND status = 'active'
	`
	args := []interface{}{input.AgencyID}
	argPos := 2
	if len(input.Skills) > 0 {
		query += fmt.Sprintf(" AND skills && $%d", argPos)
		args = append(args, input.Skills)
		argPos++
	}
	if input.Language != "" {
		query += fmt.Sprintf(" AND $%d = ANY(skills)", argPos)
		args = append(args, input.Language)
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type candidate struct {
		interpreterID string
		userID        string
		skills        []string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.interpreterID, &c.userID, &c.skills); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var available []models.AvailableInterpreter
	for _, c := range candidates {
		busy, err := s.HasOverlappingAppointments(ctx, c.interpreterID, input.StartTime, input.EndTime)
		if err != nil {
			return nil, err
		}
		if busy {
			continue
		}
		// The requested window is reported as the available slot; free
		// sub-intervals are not computed.
		available = append(available, models.AvailableInterpreter{
			InterpreterID: c.interpreterID,
			UserID:        c.userID,
			Skills:        c.skills,
			SlotStart:     input.StartTime,
			SlotEnd:       input.EndTime,
			TimeZone:      "UTC",
		})
	}
	return available, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	var session store.Session
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, user_id, agency_id, role, expires_at
		FROM sessions
		WHERE session_id = $1 AND expires_at > now()
	`, sessionID)
	if err := row.Scan(&session.SessionID, &session.UserID, &session.AgencyID, &session.Role, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Session{}, store.ErrSessionNotFound
		}
		return store.Session{}, err
	}
	return session, nil
}

func (s *Store) GetAccess(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT agency_id
		FROM user_agency_access
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agencies []string
	for rows.Next() {
		var agencyID string
		if err := rows.Scan(&agencyID); err != nil {
			return nil, err
		}
		agencies = append(agencies, agencyID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return agencies, nil
}

func ensureAgencyExists(ctx context.Context, q queryRower, agencyID string) error {
	var id string
	row := q.QueryRow(ctx, `
		SELECT agency_id
		FROM agencies
		WHERE agency_id = $1
	`, agencyID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrAgencyNotFound
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

func nullFloatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	return &value.Float64
}

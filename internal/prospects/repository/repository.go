// Package repository provides data access for the prospects bounded context.
// All multi-field lifecycle transitions go through ApplyEvent, which is the
// single writer for prospect state.
package repository

import (
	"context"
	"errors"
	"time"

	"outreach_backend/internal/prospects/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrProspectNotFound = errors.New("prospect not found")
)

// fingerprintWindow bounds content-based dedup for poll-derived events
// that carry no external event id.
const fingerprintWindow = 7 * 24 * time.Hour

// staleClaimAfter is how long an in-flight claim blocks other cycles.
// Guards against a crashed worker holding its batch forever.
const staleClaimAfter = 10 * time.Minute

const prospectColumns = `
	id, org_id, campaign_id, account_id, full_name, headline, company,
	channel_user_id, profile_url, email, status, touch_index, max_touches,
	next_action_due_at, connection_sent_at, connection_accepted_at,
	last_inbound_at, last_outbound_at, meeting_scheduled_at,
	demo_completed_at, trial_started_at, check_back_at, replied_positive,
	last_error, claimed_at, claimed_by, version, created_at, updated_at`

// Repository provides data access for prospects and their activity log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new prospects repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanProspect(row pgx.Row) (domain.Prospect, error) {
	var p domain.Prospect
	err := row.Scan(
		&p.ID, &p.OrgID, &p.CampaignID, &p.AccountID, &p.FullName, &p.Headline, &p.Company,
		&p.ChannelUserID, &p.ProfileURL, &p.Email, &p.Status, &p.TouchIndex, &p.MaxTouches,
		&p.NextActionDueAt, &p.ConnectionSentAt, &p.ConnectionAcceptedAt,
		&p.LastInboundAt, &p.LastOutboundAt, &p.MeetingScheduledAt,
		&p.DemoCompletedAt, &p.TrialStartedAt, &p.CheckBackAt, &p.RepliedPositive,
		&p.LastError, &p.ClaimedAt, &p.ClaimedBy, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Prospect{}, ErrProspectNotFound
	}
	return p, err
}

// Create inserts a prospect entering a campaign sequence.
func (r *Repository) Create(ctx context.Context, p domain.Prospect) (domain.Prospect, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO OUT_prospects (
			org_id, campaign_id, account_id, full_name, headline, company,
			channel_user_id, profile_url, email, status, max_touches, next_action_due_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+prospectColumns,
		p.OrgID, p.CampaignID, p.AccountID, p.FullName, p.Headline, p.Company,
		p.ChannelUserID, p.ProfileURL, p.Email, p.Status, p.MaxTouches, p.NextActionDueAt,
	)
	return scanProspect(row)
}

// GetByID retrieves a prospect by internal id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Prospect, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+prospectColumns+` FROM OUT_prospects WHERE id = $1`, id)
	return scanProspect(row)
}

// FindByChannelIdentity resolves a prospect from the provider identity an
// ingress event carries.
func (r *Repository) FindByChannelIdentity(ctx context.Context, accountID, channelUserID string) (domain.Prospect, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+prospectColumns+`
		FROM OUT_prospects
		WHERE account_id = $1 AND channel_user_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, accountID, channelUserID)
	return scanProspect(row)
}

// TransitionUpdate describes the field changes a lifecycle transition makes.
// Nil pointers leave the column untouched.
type TransitionUpdate struct {
	ProspectID              uuid.UUID
	FromStatus              string
	ToStatus                string
	SetConnectionSentAt     *time.Time
	SetConnectionAcceptedAt *time.Time
	SetLastInboundAt        *time.Time
	SetLastOutboundAt       *time.Time
	SetNextActionDueAt      *time.Time
	ClearNextAction         bool
	IncrementTouch          bool
	LastError               string
}

// ApplyEvent atomically records a lifecycle event in the activity log and
// applies its transition to the prospect row. Returns applied=false when
// the event was already recorded (dedup) or another writer moved the
// prospect out of FromStatus first (lost race).
func (r *Repository) ApplyEvent(ctx context.Context, event domain.LifecycleEvent, update TransitionUpdate) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	recorded, err := recordEventTx(ctx, tx, update.ProspectID, event)
	if err != nil {
		return false, err
	}
	if !recorded {
		return false, nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE OUT_prospects
		SET status = $2,
			connection_sent_at = COALESCE($3, connection_sent_at),
			connection_accepted_at = COALESCE($4, connection_accepted_at),
			last_inbound_at = COALESCE($5, last_inbound_at),
			last_outbound_at = COALESCE($6, last_outbound_at),
			next_action_due_at = CASE WHEN $7 THEN NULL ELSE COALESCE($8, next_action_due_at) END,
			touch_index = touch_index + CASE WHEN $9 THEN 1 ELSE 0 END,
			last_error = CASE WHEN $10 <> '' THEN $10 ELSE last_error END,
			claimed_at = NULL,
			claimed_by = '',
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND status = $11
	`,
		update.ProspectID, update.ToStatus,
		update.SetConnectionSentAt, update.SetConnectionAcceptedAt,
		update.SetLastInboundAt, update.SetLastOutboundAt,
		update.ClearNextAction, update.SetNextActionDueAt,
		update.IncrementTouch, update.LastError,
		update.FromStatus,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		// Another writer advanced the prospect first. Keep the activity
		// record so the losing observation still shows in the timeline,
		// but report the transition as not applied.
		if err := tx.Commit(ctx); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ClearNextAction nulls the due-time without a status change. Used when an
// inbound reply arrives for a prospect whose status is already terminal
// but a stale due-time survived.
func (r *Repository) ClearNextAction(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE OUT_prospects
		SET next_action_due_at = NULL, version = version + 1, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// SetScenarioMarker stamps the explicit scenario fields the detector
// reads. Markers only ever move forward in time.
func (r *Repository) SetScenarioMarker(ctx context.Context, id uuid.UUID, column string, value time.Time) error {
	var query string
	switch column {
	case "meeting_scheduled_at":
		query = `UPDATE OUT_prospects SET meeting_scheduled_at = $2, updated_at = now() WHERE id = $1`
	case "demo_completed_at":
		query = `UPDATE OUT_prospects SET demo_completed_at = $2, updated_at = now() WHERE id = $1`
	case "trial_started_at":
		query = `UPDATE OUT_prospects SET trial_started_at = $2, updated_at = now() WHERE id = $1`
	case "check_back_at":
		query = `UPDATE OUT_prospects SET check_back_at = $2, updated_at = now() WHERE id = $1`
	default:
		return errors.New("unknown scenario marker column")
	}
	_, err := r.pool.Exec(ctx, query, id, value)
	return err
}

// ClaimDueBatch claims up to limit prospects whose next action is due,
// marking them in-flight so overlapping cycles cannot double-process.
// Prospects in automation-blocked statuses and prospects that already
// hold an open draft are never returned, regardless of stale due-times.
func (r *Repository) ClaimDueBatch(ctx context.Context, now time.Time, limit int, claimedBy string) ([]domain.Prospect, error) {
	allowed := domain.DueStatuses()

	rows, err := r.pool.Query(ctx, `
		WITH due AS (
			SELECT p.id
			FROM OUT_prospects p
			WHERE p.next_action_due_at IS NOT NULL
			  AND p.next_action_due_at <= $1
			  AND p.status = ANY($2)
			  AND (p.claimed_at IS NULL OR p.claimed_at < $3)
			  AND NOT EXISTS (
				SELECT 1 FROM OUT_follow_up_drafts d
				WHERE d.prospect_id = p.id
				  AND d.approval_status IN ('pending_generation', 'pending_approval', 'approved')
			  )
			ORDER BY p.next_action_due_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		UPDATE OUT_prospects p
		SET claimed_at = $1, claimed_by = $5, updated_at = now()
		FROM due
		WHERE p.id = due.id
		RETURNING `+prefixedProspectColumns("p"),
		now, allowed, now.Add(-staleClaimAfter), limit, claimedBy,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []domain.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, p)
	}
	return claimed, rows.Err()
}

// ReleaseClaim returns a claimed prospect to the pool without a transition,
// e.g. when draft generation failed and the next cycle should retry.
func (r *Repository) ReleaseClaim(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE OUT_prospects
		SET claimed_at = NULL, claimed_by = '', updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// ListAwaitingAcceptance returns prospects whose connection request is out
// but unanswered, oldest first. Input for the poll worker.
func (r *Repository) ListAwaitingAcceptance(ctx context.Context, accountID string, limit int) ([]domain.Prospect, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+prospectColumns+`
		FROM OUT_prospects
		WHERE account_id = $1
		  AND status = $2
		  AND channel_user_id <> ''
		ORDER BY connection_sent_at NULLS LAST
		LIMIT $3
	`, accountID, domain.StatusConnectionRequestSent, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prospects []domain.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		prospects = append(prospects, p)
	}
	return prospects, rows.Err()
}

// ListAccountsAwaitingAcceptance returns the distinct provider accounts
// that have prospects awaiting acceptance, so the poll worker can fetch
// each account's invitation and relation lists once.
func (r *Repository) ListAccountsAwaitingAcceptance(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT account_id
		FROM OUT_prospects
		WHERE status = $1 AND channel_user_id <> ''
	`, domain.StatusConnectionRequestSent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func prefixedProspectColumns(alias string) string {
	return alias + `.id, ` + alias + `.org_id, ` + alias + `.campaign_id, ` + alias + `.account_id, ` +
		alias + `.full_name, ` + alias + `.headline, ` + alias + `.company, ` +
		alias + `.channel_user_id, ` + alias + `.profile_url, ` + alias + `.email, ` +
		alias + `.status, ` + alias + `.touch_index, ` + alias + `.max_touches, ` +
		alias + `.next_action_due_at, ` + alias + `.connection_sent_at, ` + alias + `.connection_accepted_at, ` +
		alias + `.last_inbound_at, ` + alias + `.last_outbound_at, ` + alias + `.meeting_scheduled_at, ` +
		alias + `.demo_completed_at, ` + alias + `.trial_started_at, ` + alias + `.check_back_at, ` +
		alias + `.replied_positive, ` + alias + `.last_error, ` + alias + `.claimed_at, ` + alias + `.claimed_by, ` +
		alias + `.version, ` + alias + `.created_at, ` + alias + `.updated_at`
}

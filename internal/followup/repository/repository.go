// Package repository provides data access for follow-up drafts.
// The partial unique index on open drafts is the hard backstop for the
// one-open-draft-per-prospect invariant.
package repository

import (
	"context"
	"errors"
	"time"

	"outreach_backend/internal/prospects/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrDraftNotFound    = errors.New("follow-up draft not found")
	ErrOpenDraftExists  = errors.New("prospect already has an open draft")
	ErrInvalidDecision  = errors.New("draft is not awaiting a decision")
)

const draftColumns = `
	id, prospect_id, touch_number, channel, scenario, tone, body, subject,
	confidence, reasoning, approval_status, reviewer_id, decided_at,
	rejection_reason, external_message_id, retry_count, created_at, updated_at`

// Repository provides data access for follow-up drafts.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanDraft(row pgx.Row) (domain.FollowUpDraft, error) {
	var d domain.FollowUpDraft
	err := row.Scan(
		&d.ID, &d.ProspectID, &d.TouchNumber, &d.Channel, &d.Scenario, &d.Tone,
		&d.Body, &d.Subject, &d.Confidence, &d.Reasoning, &d.ApprovalStatus,
		&d.ReviewerID, &d.DecidedAt, &d.RejectionReason, &d.ExternalMessageID,
		&d.RetryCount, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FollowUpDraft{}, ErrDraftNotFound
	}
	return d, err
}

// HasOpenDraft reports whether the prospect holds a draft in a
// non-terminal approval status.
func (r *Repository) HasOpenDraft(ctx context.Context, prospectID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM OUT_follow_up_drafts
			WHERE prospect_id = $1
			  AND approval_status IN ('pending_generation', 'pending_approval', 'approved')
		)
	`, prospectID).Scan(&exists)
	return exists, err
}

// Create inserts a new draft. Returns ErrOpenDraftExists when the partial
// unique index rejects a second open draft for the prospect.
func (r *Repository) Create(ctx context.Context, d domain.FollowUpDraft) (domain.FollowUpDraft, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO OUT_follow_up_drafts (
			prospect_id, touch_number, channel, scenario, tone, body, subject,
			confidence, reasoning, approval_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+draftColumns,
		d.ProspectID, d.TouchNumber, d.Channel, d.Scenario, d.Tone, d.Body, d.Subject,
		d.Confidence, d.Reasoning, d.ApprovalStatus,
	)
	created, err := scanDraft(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.FollowUpDraft{}, ErrOpenDraftExists
		}
		return domain.FollowUpDraft{}, err
	}
	return created, nil
}

// GetByID retrieves a draft.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.FollowUpDraft, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+draftColumns+` FROM OUT_follow_up_drafts WHERE id = $1`, id)
	return scanDraft(row)
}

// PendingDraft pairs a draft with the prospect summary a reviewer needs.
type PendingDraft struct {
	Draft        domain.FollowUpDraft
	ProspectName string
	Company      string
	Status       string
}

// ListPendingApproval returns drafts awaiting a human decision for an
// organization, oldest first.
func (r *Repository) ListPendingApproval(ctx context.Context, orgID uuid.UUID, limit int) ([]PendingDraft, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+qualifiedDraftColumns("d")+`, p.full_name, p.company, p.status
		FROM OUT_follow_up_drafts d
		JOIN OUT_prospects p ON p.id = d.prospect_id
		WHERE d.approval_status = 'pending_approval' AND p.org_id = $1
		ORDER BY d.created_at
		LIMIT $2
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingDraft
	for rows.Next() {
		var item PendingDraft
		d := &item.Draft
		if err := rows.Scan(
			&d.ID, &d.ProspectID, &d.TouchNumber, &d.Channel, &d.Scenario, &d.Tone,
			&d.Body, &d.Subject, &d.Confidence, &d.Reasoning, &d.ApprovalStatus,
			&d.ReviewerID, &d.DecidedAt, &d.RejectionReason, &d.ExternalMessageID,
			&d.RetryCount, &d.CreatedAt, &d.UpdatedAt,
			&item.ProspectName, &item.Company, &item.Status,
		); err != nil {
			return nil, err
		}
		pending = append(pending, item)
	}
	return pending, rows.Err()
}

// Approve transitions a draft from pending_approval to approved.
// Conditional update so two reviewers cannot both decide.
func (r *Repository) Approve(ctx context.Context, draftID uuid.UUID, reviewerID string) (domain.FollowUpDraft, error) {
	return r.decide(ctx, draftID, reviewerID, domain.DraftApproved, "")
}

// Reject transitions a draft from pending_approval to rejected, recording
// the reason. The prospect is left without a scheduled action until the
// next scheduling cycle recomputes a due-time.
func (r *Repository) Reject(ctx context.Context, draftID uuid.UUID, reviewerID, reason string) (domain.FollowUpDraft, error) {
	return r.decide(ctx, draftID, reviewerID, domain.DraftRejected, reason)
}

func (r *Repository) decide(ctx context.Context, draftID uuid.UUID, reviewerID, toStatus, reason string) (domain.FollowUpDraft, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE OUT_follow_up_drafts
		SET approval_status = $2, reviewer_id = $3, rejection_reason = $4,
			decided_at = now(), updated_at = now()
		WHERE id = $1 AND approval_status = 'pending_approval'
		RETURNING `+draftColumns,
		draftID, toStatus, reviewerID, reason,
	)
	decided, err := scanDraft(row)
	if errors.Is(err, ErrDraftNotFound) {
		// Distinguish a missing draft from one already decided.
		if _, getErr := r.GetByID(ctx, draftID); getErr == nil {
			return domain.FollowUpDraft{}, ErrInvalidDecision
		}
		return domain.FollowUpDraft{}, ErrDraftNotFound
	}
	return decided, err
}

// AutoApprove releases a draft without a human reviewer when the
// confidence threshold allows it.
func (r *Repository) AutoApprove(ctx context.Context, draftID uuid.UUID) (domain.FollowUpDraft, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE OUT_follow_up_drafts
		SET approval_status = 'approved', reviewer_id = 'auto', decided_at = now(), updated_at = now()
		WHERE id = $1 AND approval_status = 'pending_approval'
		RETURNING `+draftColumns,
		draftID,
	)
	return scanDraft(row)
}

// ListApproved returns approved drafts ready for dispatch, oldest first,
// skipping drafts that already burned the retry budget.
func (r *Repository) ListApproved(ctx context.Context, maxRetries, limit int) ([]domain.FollowUpDraft, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+draftColumns+`
		FROM OUT_follow_up_drafts
		WHERE approval_status = 'approved' AND retry_count < $1
		ORDER BY decided_at NULLS FIRST, created_at
		LIMIT $2
	`, maxRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []domain.FollowUpDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// MarkSent records a confirmed dispatch.
func (r *Repository) MarkSent(ctx context.Context, draftID uuid.UUID, externalMessageID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE OUT_follow_up_drafts
		SET approval_status = 'sent', external_message_id = $2, updated_at = now()
		WHERE id = $1 AND approval_status = 'approved'
	`, draftID, externalMessageID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDraftNotFound
	}
	return nil
}

// IncrementRetry bumps the retry counter after a failed attempt and
// returns the new count.
func (r *Repository) IncrementRetry(ctx context.Context, draftID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		UPDATE OUT_follow_up_drafts
		SET retry_count = retry_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING retry_count
	`, draftID).Scan(&count)
	return count, err
}

// CloseFailed terminates a draft whose sends exhausted the retry budget.
func (r *Repository) CloseFailed(ctx context.Context, draftID uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE OUT_follow_up_drafts
		SET approval_status = 'rejected', rejection_reason = $2, decided_at = now(), updated_at = now()
		WHERE id = $1 AND approval_status = 'approved'
	`, draftID, reason)
	return err
}

// ListSentBodies returns the bodies of previously sent drafts for a
// prospect, oldest first. Fed to the writer so new touches never repeat
// prior phrasing.
func (r *Repository) ListSentBodies(ctx context.Context, prospectID uuid.UUID, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT body FROM OUT_follow_up_drafts
		WHERE prospect_id = $1 AND approval_status = 'sent'
		ORDER BY created_at
		LIMIT $2
	`, prospectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bodies []string
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		bodies = append(bodies, body)
	}
	return bodies, rows.Err()
}

// CountStalePending returns how many drafts have been waiting for a human
// decision since before the cutoff, for operator visibility into a
// stalled review queue.
func (r *Repository) CountStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM OUT_follow_up_drafts
		WHERE approval_status = 'pending_approval' AND created_at < $1
	`, cutoff).Scan(&count)
	return count, err
}

func qualifiedDraftColumns(alias string) string {
	return alias + `.id, ` + alias + `.prospect_id, ` + alias + `.touch_number, ` + alias + `.channel, ` +
		alias + `.scenario, ` + alias + `.tone, ` + alias + `.body, ` + alias + `.subject, ` +
		alias + `.confidence, ` + alias + `.reasoning, ` + alias + `.approval_status, ` +
		alias + `.reviewer_id, ` + alias + `.decided_at, ` + alias + `.rejection_reason, ` +
		alias + `.external_message_id, ` + alias + `.retry_count, ` + alias + `.created_at, ` + alias + `.updated_at`
}

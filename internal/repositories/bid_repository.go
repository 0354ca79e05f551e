package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/sealedbid/tender-service/internal/constants"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/utils"
)

/* ------------------------------------------------------------------
   Public interface
------------------------------------------------------------------ */

// BidRepository persists sealed bids. Bids are never deleted. Unseal
// challenges are stored hashed on the bid row, so a pending code is never
// readable from the database.
type BidRepository interface {
	Create(ctx context.Context, b *models.Bid) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	GetByPaymentOrderID(ctx context.Context, orderID string) (*models.Bid, error)
	ListByTender(ctx context.Context, tenderID uuid.UUID) ([]*models.Bid, error)
	ListByContractor(ctx context.Context, contractorID uuid.UUID) ([]*models.Bid, error)
	ListAll(ctx context.Context) ([]*models.Bid, error)

	// SetUnsealChallenge replaces any pending unseal code for the bid.
	SetUnsealChallenge(ctx context.Context, bidID uuid.UUID, code string, expiresAt time.Time) error

	// ConsumeUnsealChallenge verifies code and, in the same statement,
	// clears it and marks the bid unsealed by officerID. Only one caller can
	// consume a given code. A wrong code counts against the challenge, which
	// is cleared after constants.MaxOTPAttempts mismatches.
	ConsumeUnsealChallenge(
		ctx context.Context,
		bidID uuid.UUID,
		code string,
		officerID uuid.UUID,
		now time.Time,
	) (*models.Bid, error)

	// Reseal flips an unsealed bid back to sealed. The ciphertext and the
	// last unseal record are left as they are.
	Reseal(ctx context.Context, bidID, officerID uuid.UUID, now time.Time) (*models.Bid, error)

	SetPaymentOrder(ctx context.Context, bidID uuid.UUID, orderID string) error

	// MarkPaid records a confirmed payment. It reports false when the bid
	// was already paid, so webhook redeliveries are harmless.
	MarkPaid(ctx context.Context, orderID, paymentID string) (*models.Bid, bool, error)
}

/* ------------------------------------------------------------------
   Implementation
------------------------------------------------------------------ */

type bidRepo struct {
	db DB
}

func NewBidRepository(db DB) BidRepository {
	return &bidRepo{db: db}
}

/* ---------- Create ---------- */

func (r *bidRepo) Create(ctx context.Context, b *models.Bid) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO bids (
			id,tender_id,contractor_id,encrypted_amount,
			document_hash,document_ref,status,payment_status,
			created_at,updated_at,row_version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9,1)`,
		b.ID, b.TenderID, b.ContractorID, b.EncryptedAmount,
		b.DocumentHash, b.DocumentRef, string(b.Status), string(b.PaymentStatus),
		b.CreatedAt,
	)
	return err
}

/* ---------- Reads ---------- */

func (r *bidRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	return scanBid(r.db.QueryRow(ctx, baseSelectBid()+" WHERE id=$1", id))
}

func (r *bidRepo) GetByPaymentOrderID(ctx context.Context, orderID string) (*models.Bid, error) {
	return scanBid(r.db.QueryRow(ctx, baseSelectBid()+" WHERE payment_order_id=$1", orderID))
}

func (r *bidRepo) ListByTender(ctx context.Context, tenderID uuid.UUID) ([]*models.Bid, error) {
	return r.query(ctx, baseSelectBid()+" WHERE tender_id=$1 ORDER BY created_at, id", tenderID)
}

func (r *bidRepo) ListByContractor(ctx context.Context, contractorID uuid.UUID) ([]*models.Bid, error) {
	return r.query(ctx, baseSelectBid()+" WHERE contractor_id=$1 ORDER BY created_at DESC", contractorID)
}

func (r *bidRepo) ListAll(ctx context.Context) ([]*models.Bid, error) {
	return r.query(ctx, baseSelectBid()+" ORDER BY created_at DESC")
}

/* ---------- Unseal / reseal ---------- */

func (r *bidRepo) SetUnsealChallenge(ctx context.Context, bidID uuid.UUID, code string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bids SET
			otp_hash=$2,otp_expires_at=$3,otp_attempts=0,
			updated_at=NOW(),row_version=row_version+1
		WHERE id=$1`,
		bidID, utils.HashToken(code), expiresAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrBidNotFound
	}
	return nil
}

func (r *bidRepo) ConsumeUnsealChallenge(
	ctx context.Context,
	bidID uuid.UUID,
	code string,
	officerID uuid.UUID,
	now time.Time,
) (*models.Bid, error) {
	codeHash := utils.HashToken(code)

	// A second attempt covers a challenge re-issued between the update and
	// the re-read.
	for attempt := 0; attempt < 2; attempt++ {
		row := r.db.QueryRow(ctx, `
			UPDATE bids SET
				status='unsealed',unsealed_by=$3,unsealed_at=$4,
				otp_hash=NULL,otp_expires_at=NULL,otp_attempts=0,
				updated_at=NOW(),row_version=row_version+1
			WHERE id=$1 AND otp_hash=$2 AND otp_expires_at > $4
			RETURNING `+bidColumns,
			bidID, codeHash, officerID, now,
		)
		bid, err := scanBid(row)
		if err != nil {
			return nil, err
		}
		if bid != nil {
			return bid, nil
		}

		current, err := r.GetByID(ctx, bidID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, utils.ErrBidNotFound
		}

		checkErr := current.PendingOTP.Check(codeHash, now)
		if errors.Is(checkErr, utils.ErrOTPExpired) {
			// Lazy invalidation; a challenge issued meanwhile is left alone.
			if _, err := r.db.Exec(ctx, `
				UPDATE bids SET otp_hash=NULL,otp_expires_at=NULL,updated_at=NOW()
				WHERE id=$1 AND otp_hash=$2`,
				bidID, current.PendingOTP.Code,
			); err != nil {
				return nil, err
			}
			return nil, checkErr
		}
		if errors.Is(checkErr, utils.ErrOTPMismatch) {
			exhausted, counted, err := r.countMismatch(ctx, bidID, current.PendingOTP.Code)
			if err != nil {
				return nil, err
			}
			if !counted {
				continue
			}
			if exhausted {
				return nil, utils.ErrOTPAttemptsExceeded
			}
			return nil, checkErr
		}
		if checkErr != nil {
			return nil, checkErr
		}
	}
	return nil, utils.ErrOTPMismatch
}

// countMismatch charges one wrong code to the pending challenge identified
// by pendingHash, clearing it once the attempt limit is reached. counted is
// false when that challenge was replaced or consumed in the meantime.
func (r *bidRepo) countMismatch(ctx context.Context, bidID uuid.UUID, pendingHash string) (exhausted, counted bool, err error) {
	var attempts int
	err = r.db.QueryRow(ctx, `
		UPDATE bids SET
			otp_attempts=otp_attempts+1,
			otp_hash=CASE WHEN otp_attempts+1 >= $3 THEN NULL ELSE otp_hash END,
			otp_expires_at=CASE WHEN otp_attempts+1 >= $3 THEN NULL ELSE otp_expires_at END,
			updated_at=NOW()
		WHERE id=$1 AND otp_hash=$2
		RETURNING otp_attempts`,
		bidID, pendingHash, constants.MaxOTPAttempts,
	).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return attempts >= constants.MaxOTPAttempts, true, nil
}

func (r *bidRepo) Reseal(ctx context.Context, bidID, officerID uuid.UUID, now time.Time) (*models.Bid, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bids SET
			status='sealed',resealed_by=$2,resealed_at=$3,
			updated_at=NOW(),row_version=row_version+1
		WHERE id=$1 AND status='unsealed'
		RETURNING `+bidColumns,
		bidID, officerID, now,
	)
	bid, err := scanBid(row)
	if err != nil || bid != nil {
		return bid, err
	}

	current, err := r.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, utils.ErrBidNotFound
	}
	return nil, utils.ErrNotUnsealed
}

/* ---------- Payments ---------- */

func (r *bidRepo) SetPaymentOrder(ctx context.Context, bidID uuid.UUID, orderID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bids SET
			payment_order_id=$2,
			updated_at=NOW(),row_version=row_version+1
		WHERE id=$1 AND payment_status='pending'`,
		bidID, orderID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrAlreadyPaid
	}
	return nil
}

func (r *bidRepo) MarkPaid(ctx context.Context, orderID, paymentID string) (*models.Bid, bool, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bids SET
			payment_status='paid',payment_id=$2,
			updated_at=NOW(),row_version=row_version+1
		WHERE payment_order_id=$1 AND payment_status='pending'
		RETURNING `+bidColumns,
		orderID, paymentID,
	)
	bid, err := scanBid(row)
	if err != nil {
		return nil, false, err
	}
	if bid != nil {
		return bid, true, nil
	}

	current, err := r.GetByPaymentOrderID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if current == nil {
		return nil, false, utils.ErrBidNotFound
	}
	return current, false, nil
}

/* ---------- internals ---------- */

const bidColumns = `
	id,tender_id,contractor_id,encrypted_amount,document_hash,document_ref,
	status,unsealed_by,unsealed_at,resealed_by,resealed_at,
	otp_hash,otp_expires_at,otp_attempts,
	payment_status,payment_order_id,payment_id,
	row_version,created_at,updated_at`

func baseSelectBid() string {
	return "SELECT " + bidColumns + " FROM bids"
}

func (r *bidRepo) query(ctx context.Context, sql string, args ...any) ([]*models.Bid, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBid(row pgx.Row) (*models.Bid, error) {
	var b models.Bid
	var status, payStatus string
	var unsealedBy, resealedBy *uuid.UUID
	var unsealedAt, resealedAt, otpExpiresAt *time.Time
	var otpHash *string
	var otpAttempts int

	err := row.Scan(
		&b.ID, &b.TenderID, &b.ContractorID, &b.EncryptedAmount, &b.DocumentHash, &b.DocumentRef,
		&status, &unsealedBy, &unsealedAt, &resealedBy, &resealedAt,
		&otpHash, &otpExpiresAt, &otpAttempts,
		&payStatus, &b.PaymentOrderID, &b.PaymentID,
		&b.RowVersion, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.Status = models.BidStatus(status)
	b.PaymentStatus = models.PaymentStatus(payStatus)
	if unsealedBy != nil && unsealedAt != nil {
		b.Unsealed = &models.UnsealRecord{By: *unsealedBy, At: *unsealedAt}
	}
	if resealedBy != nil && resealedAt != nil {
		b.Resealed = &models.UnsealRecord{By: *resealedBy, At: *resealedAt}
	}
	if otpHash != nil && otpExpiresAt != nil {
		b.PendingOTP = &models.OTPChallenge{
			Subject:   b.ID.String(),
			Purpose:   models.OTPPurposeUnseal,
			Code:      *otpHash,
			ExpiresAt: *otpExpiresAt,
			Attempts:  otpAttempts,
		}
	}
	return &b, nil
}

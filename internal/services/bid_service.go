package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sealedbid/tender-service/internal/dtos"
	"github.com/sealedbid/tender-service/internal/keyexchange"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/sealedbid/tender-service/internal/vault"
)

// UnsealResult is what an officer sees after a successful unseal.
type UnsealResult struct {
	Bid                *models.Bid
	Amount             string
	SupportingDocument string
}

// BidService runs the sealed-bid lifecycle: submit, request an unseal code,
// unseal and reseal.
type BidService interface {
	Submit(ctx context.Context, contractorID uuid.UUID, req dtos.SubmitBidRequest) (*models.Bid, error)
	List(ctx context.Context, userID uuid.UUID, role models.Role) ([]*models.Bid, error)
	RequestUnsealOTP(ctx context.Context, officerID, bidID uuid.UUID) (*models.OTPChallenge, error)
	Unseal(ctx context.Context, officerID, bidID uuid.UUID, code string) (*UnsealResult, error)
	Reseal(ctx context.Context, officerID, bidID uuid.UUID) (*models.Bid, error)
}

type bidService struct {
	agreement  *keyexchange.KeyAgreement
	vault      *vault.BidVault
	tenderRepo repositories.TenderRepository
	bidRepo    repositories.BidRepository
	userRepo   repositories.UserRepository
	docs       repositories.DocumentStore
	otp        OTPService
	audit      AuditService
	now        func() time.Time
}

func NewBidService(
	agreement *keyexchange.KeyAgreement,
	bidVault *vault.BidVault,
	tenderRepo repositories.TenderRepository,
	bidRepo repositories.BidRepository,
	userRepo repositories.UserRepository,
	docs repositories.DocumentStore,
	otp OTPService,
	audit AuditService,
) BidService {
	return &bidService{
		agreement:  agreement,
		vault:      bidVault,
		tenderRepo: tenderRepo,
		bidRepo:    bidRepo,
		userRepo:   userRepo,
		docs:       docs,
		otp:        otp,
		audit:      audit,
		now:        time.Now,
	}
}

// ---------------------------------------------------------------------
// Submit
// ---------------------------------------------------------------------

func (s *bidService) Submit(
	ctx context.Context,
	contractorID uuid.UUID,
	req dtos.SubmitBidRequest,
) (*models.Bid, error) {
	tenderID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		return nil, utils.ErrTenderNotFound
	}
	tender, err := s.tenderRepo.GetByID(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if tender == nil {
		return nil, utils.ErrTenderNotFound
	}
	now := s.now().UTC()
	if tender.Status != models.TenderStatusOpen {
		return nil, utils.ErrTenderClosed
	}
	if now.After(tender.Deadline) {
		return nil, utils.ErrDeadlinePassed
	}

	amount, err := s.openSessionAmount(req.ClientPublicKey, req.Amount)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.vault.Encrypt(amount)
	if err != nil {
		return nil, err
	}

	doc := []byte(req.SupportingDocument)
	ref, err := s.docs.Put(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("storing supporting document: %w", err)
	}

	bid := &models.Bid{
		ID:              uuid.New(),
		TenderID:        tender.ID,
		ContractorID:    contractorID,
		EncryptedAmount: encrypted,
		DocumentHash:    utils.SHA256Hex(doc),
		DocumentRef:     ref,
		Status:          models.BidStatusSealed,
		PaymentStatus:   models.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.bidRepo.Create(ctx, bid); err != nil {
		if delErr := s.docs.Delete(ctx, ref); delErr != nil {
			utils.Logger.WithError(delErr).WithField("document_ref", ref).Warn("Failed to remove orphaned supporting document")
		}
		return nil, err
	}

	_ = s.audit.Record(ctx, models.AuditSubmitBid, &contractorID, map[string]any{
		"bidId":        bid.ID,
		"tenderId":     tender.ID,
		"documentHash": bid.DocumentHash,
	})
	return bid, nil
}

// openSessionAmount completes the key agreement for one request and returns
// the validated plaintext amount. The session key lives only in this frame.
func (s *bidService) openSessionAmount(clientPublic, ciphertext string) (string, error) {
	peer, err := keyexchange.DecodeInt(clientPublic)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrInvalidPeerValue, err)
	}
	secret, err := s.agreement.ComputeSharedSecret(peer)
	if err != nil {
		return "", err
	}
	amount, err := keyexchange.SessionDecrypt(ciphertext, keyexchange.DeriveKey(secret))
	if err != nil {
		return "", err
	}

	r, err := utils.ParseDecimal(amount)
	if err != nil {
		return "", utils.ErrHandshakeMismatch
	}
	if r.Cmp(new(big.Rat)) <= 0 {
		return "", utils.ErrInvalidAmount
	}
	return amount, nil
}

// ---------------------------------------------------------------------
// List
// ---------------------------------------------------------------------

func (s *bidService) List(ctx context.Context, userID uuid.UUID, role models.Role) ([]*models.Bid, error) {
	switch role {
	case models.RoleContractor:
		return s.bidRepo.ListByContractor(ctx, userID)
	case models.RoleOfficer, models.RoleAuditor:
		return s.bidRepo.ListAll(ctx)
	default:
		return nil, utils.ErrForbidden
	}
}

// ---------------------------------------------------------------------
// Unseal / reseal
// ---------------------------------------------------------------------

func (s *bidService) RequestUnsealOTP(ctx context.Context, officerID, bidID uuid.UUID) (*models.OTPChallenge, error) {
	bid, err := s.bidRepo.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid == nil {
		return nil, utils.ErrBidNotFound
	}
	officer, err := s.userRepo.GetByID(ctx, officerID)
	if err != nil {
		return nil, err
	}
	if officer == nil {
		return nil, utils.ErrForbidden
	}

	c, err := s.otp.NewChallenge(models.OTPPurposeUnseal, bid.ID.String())
	if err != nil {
		return nil, err
	}
	if err := s.bidRepo.SetUnsealChallenge(ctx, bid.ID, c.Code, c.ExpiresAt); err != nil {
		return nil, err
	}
	if err := s.otp.Deliver(ctx, officer, c); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, models.AuditRequestUnsealOTP, &officerID, map[string]any{
		"bidId": bid.ID,
	})
	return c, nil
}

func (s *bidService) Unseal(ctx context.Context, officerID, bidID uuid.UUID, code string) (*UnsealResult, error) {
	current, err := s.bidRepo.GetByID(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, utils.ErrBidNotFound
	}

	// The ciphertext and document never change after submission, so they
	// are verified before the code is consumed. A failure leaves the bid
	// sealed with its code still pending.
	amount, doc, err := s.openBid(ctx, current)
	if err != nil {
		return nil, err
	}

	bid, err := s.bidRepo.ConsumeUnsealChallenge(ctx, bidID, code, officerID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, models.AuditUnsealBid, &officerID, map[string]any{
		"bidId": bid.ID,
	})
	return &UnsealResult{Bid: bid, Amount: amount, SupportingDocument: string(doc)}, nil
}

// openBid decrypts the stored amount and fetches the supporting document,
// checking it against the digest recorded at submission.
func (s *bidService) openBid(ctx context.Context, bid *models.Bid) (string, []byte, error) {
	amount, err := s.vault.Decrypt(bid.EncryptedAmount)
	if err != nil {
		utils.Logger.WithError(err).WithField("bid_id", bid.ID).Error("Bid has corrupt ciphertext")
		return "", nil, err
	}

	doc, err := s.docs.Get(ctx, bid.DocumentRef)
	if err != nil {
		if errors.Is(err, repositories.ErrDocumentNotFound) {
			return "", nil, fmt.Errorf("%w: document missing", utils.ErrDocumentIntegrity)
		}
		return "", nil, err
	}
	if utils.SHA256Hex(doc) != bid.DocumentHash {
		utils.Logger.WithField("bid_id", bid.ID).Error("Supporting document digest mismatch")
		return "", nil, utils.ErrDocumentIntegrity
	}
	return amount, doc, nil
}

func (s *bidService) Reseal(ctx context.Context, officerID, bidID uuid.UUID) (*models.Bid, error) {
	bid, err := s.bidRepo.Reseal(ctx, bidID, officerID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	_ = s.audit.Record(ctx, models.AuditResealBid, &officerID, map[string]any{
		"bidId": bid.ID,
	})
	return bid, nil
}

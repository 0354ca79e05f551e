package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/sealedbid/tender-service/internal/vault"
	"github.com/sirupsen/logrus"
)

// RankedBid is a bid with its decrypted amount. A nil Amount means the bid
// could not be decrypted and ranks as +Inf.
type RankedBid struct {
	Bid        *models.Bid
	Amount     *big.Rat
	AmountText string
}

// RankBids orders candidates by amount ascending, then earliest CreatedAt,
// then id. Undecryptable bids sort last. The input is not modified.
func RankBids(candidates []RankedBid) []RankedBid {
	out := make([]RankedBid, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return rankLess(out[i], out[j])
	})
	return out
}

func rankLess(a, b RankedBid) bool {
	switch {
	case a.Amount == nil && b.Amount != nil:
		return false
	case a.Amount != nil && b.Amount == nil:
		return true
	case a.Amount != nil && b.Amount != nil:
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c < 0
		}
	}
	if !a.Bid.CreatedAt.Equal(b.Bid.CreatedAt) {
		return a.Bid.CreatedAt.Before(b.Bid.CreatedAt)
	}
	return a.Bid.ID.String() < b.Bid.ID.String()
}

// AwardResult describes one close attempt. Closed is false when the tender
// was already closed by someone else.
type AwardResult struct {
	TenderID      uuid.UUID
	Closed        bool
	WinnerBidID   *uuid.UUID
	WinningAmount string
	BidCount      int
	InvalidBids   []uuid.UUID
}

// AwardService selects winners and closes tenders.
type AwardService interface {
	// AwardTender ranks the tender's bids and closes it with the winner.
	// closedBy is nil for the automatic sweep. Undecryptable bids rank
	// last, so one can win only when every bid is undecryptable; the
	// tender is then still closed with that winner and
	// ErrDataIntegrityFailure is returned alongside the result.
	AwardTender(ctx context.Context, tender *models.Tender, closedBy *uuid.UUID) (*AwardResult, error)

	// AdvanceExpiredTenders awards every open tender whose deadline has
	// passed. It is safe to run concurrently with itself.
	AdvanceExpiredTenders(ctx context.Context) ([]*AwardResult, error)
}

type awardService struct {
	tenderRepo repositories.TenderRepository
	bidRepo    repositories.BidRepository
	vault      *vault.BidVault
	audit      AuditService
	now        func() time.Time
}

func NewAwardService(
	tenderRepo repositories.TenderRepository,
	bidRepo repositories.BidRepository,
	bidVault *vault.BidVault,
	audit AuditService,
) AwardService {
	return &awardService{
		tenderRepo: tenderRepo,
		bidRepo:    bidRepo,
		vault:      bidVault,
		audit:      audit,
		now:        time.Now,
	}
}

func (s *awardService) AwardTender(
	ctx context.Context,
	tender *models.Tender,
	closedBy *uuid.UUID,
) (*AwardResult, error) {
	result := &AwardResult{TenderID: tender.ID}
	if tender.Status == models.TenderStatusClosed {
		return result, nil
	}

	bids, err := s.bidRepo.ListByTender(ctx, tender.ID)
	if err != nil {
		return nil, err
	}
	result.BidCount = len(bids)

	candidates := make([]RankedBid, 0, len(bids))
	for _, b := range bids {
		text, amount, decErr := s.vault.DecryptAmount(b.EncryptedAmount)
		if decErr != nil {
			utils.Logger.WithError(decErr).
				WithField("tender_id", tender.ID).
				WithField("bid_id", b.ID).
				Error("Bid amount could not be decrypted; ranking it last")
			result.InvalidBids = append(result.InvalidBids, b.ID)
		}
		candidates = append(candidates, RankedBid{Bid: b, Amount: amount, AmountText: text})
	}

	ranked := RankBids(candidates)
	winnerInvalid := false
	if len(ranked) > 0 {
		id := ranked[0].Bid.ID
		result.WinnerBidID = &id
		result.WinningAmount = ranked[0].AmountText
		winnerInvalid = ranked[0].Amount == nil
	}

	closed, err := s.tenderRepo.CloseIfOpen(ctx, tender.ID, result.WinnerBidID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !closed {
		utils.Logger.WithField("tender_id", tender.ID).Debug("Tender already closed; skipping award")
		return &AwardResult{TenderID: tender.ID}, nil
	}
	result.Closed = true

	details := map[string]any{
		"tenderId":  tender.ID,
		"bidCount":  result.BidCount,
		"winnerBid": result.WinnerBidID,
	}
	switch {
	case winnerInvalid:
		details["amount"] = nil
	case result.WinningAmount != "":
		details["amount"] = result.WinningAmount
	}
	if len(result.InvalidBids) > 0 {
		details["invalidBids"] = result.InvalidBids
	}
	action := models.AuditAutoAward
	if closedBy != nil {
		action = models.AuditCloseTender
	}
	_ = s.audit.Record(ctx, action, closedBy, details)

	utils.Logger.WithFields(logrus.Fields{
		"tender_id": tender.ID,
		"winner":    result.WinnerBidID,
		"bids":      result.BidCount,
	}).Info("Tender closed")

	if winnerInvalid {
		return result, fmt.Errorf("%w: tender %s", utils.ErrDataIntegrityFailure, tender.ID)
	}
	return result, nil
}

func (s *awardService) AdvanceExpiredTenders(ctx context.Context) ([]*AwardResult, error) {
	expired, err := s.tenderRepo.ListExpiredOpen(ctx, s.now())
	if err != nil {
		return nil, err
	}

	var (
		results []*AwardResult
		errs    []error
	)
	for _, t := range expired {
		res, err := s.AwardTender(ctx, t, nil)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/services"
	"github.com/sealedbid/tender-service/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardSweepOverPostgres(t *testing.T) {
	f := newPGFixture(t, time.Now().Add(-time.Minute))
	f.addBid(t, "310.00")
	low := f.addBid(t, "295.50")
	f.addBid(t, "1200")
	ctx := context.Background()

	audit := services.NewAuditService(repositories.NewAuditLogRepository(application.DB))
	award := services.NewAwardService(f.tenders, f.bids, testhelpers.NewVault(t), audit)

	// Overlapping sweeps close the tender exactly once.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := award.AdvanceExpiredTenders(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.tenders.GetByID(ctx, f.tender.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TenderStatusClosed, got.Status)
	require.NotNil(t, got.WinnerBidID)
	assert.Equal(t, low.ID, *got.WinnerBidID)

	res, err := award.AwardTender(ctx, got, nil)
	require.NoError(t, err)
	assert.False(t, res.Closed)
}

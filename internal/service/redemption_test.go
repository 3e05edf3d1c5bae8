package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdine/preorder-api/internal/models"
	"github.com/campusdine/preorder-api/internal/repository"
	apperrors "github.com/campusdine/preorder-api/pkg/errors"
	"github.com/campusdine/preorder-api/pkg/logger"
)

func newTestCoordinator(t *testing.T) (*RedemptionCoordinator, *repository.MemoryOrderStore, *recordingHook) {
	t.Helper()

	store := repository.NewMemoryOrderStore()
	hook := &recordingHook{}
	coord := NewRedemptionCoordinator(store, hook, logger.NewLogger("error"))

	return coord, store, hook
}

func TestRedeem(t *testing.T) {
	coord, store, hook := newTestCoordinator(t)
	ctx := context.Background()

	order := seedOrder(t, store, models.StatusReady)

	redeemed, err := coord.Redeem(ctx, order.VerificationCode, "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPickedUp, redeemed.Status)
	require.NotNil(t, redeemed.RedeemedAt)
	assert.Equal(t, []models.EventKind{models.EventPickedUp}, hook.kinds())

	stored, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPickedUp, stored.Status)
}

func TestRedeemEmptyCode(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	_, err := coord.Redeem(context.Background(), "   ", "")
	require.Error(t, err)
	assert.Equal(t, "validation_error", apperrors.CodeOf(err))
}

func TestRedeemUnknownCode(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	_, err := coord.Redeem(context.Background(), "NOSUCHCODE", "")
	require.Error(t, err)
	assert.Equal(t, "not_found", apperrors.CodeOf(err))
}

func TestRedeemWrongOrderID(t *testing.T) {
	coord, store, _ := newTestCoordinator(t)

	order := seedOrder(t, store, models.StatusReady)
	other := seedOrder(t, store, models.StatusReady)

	_, err := coord.Redeem(context.Background(), order.VerificationCode, other.ID)
	require.Error(t, err)
	assert.Equal(t, "not_found", apperrors.CodeOf(err))
}

func TestRedeemMatchingOrderID(t *testing.T) {
	coord, store, _ := newTestCoordinator(t)

	order := seedOrder(t, store, models.StatusReady)

	redeemed, err := coord.Redeem(context.Background(), order.VerificationCode, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPickedUp, redeemed.Status)
}

func TestRedeemTwiceReturnsAlreadyRedeemed(t *testing.T) {
	coord, store, hook := newTestCoordinator(t)
	ctx := context.Background()

	order := seedOrder(t, store, models.StatusReady)

	_, err := coord.Redeem(ctx, order.VerificationCode, "")
	require.NoError(t, err)

	_, err = coord.Redeem(ctx, order.VerificationCode, "")
	require.Error(t, err)
	assert.Equal(t, "already_redeemed", apperrors.CodeOf(err))
	assert.Equal(t, 410, apperrors.StatusOf(err))

	// The pickup event fired exactly once
	assert.Equal(t, []models.EventKind{models.EventPickedUp}, hook.kinds())
}

func TestRedeemBeforeReady(t *testing.T) {
	tests := []struct {
		name string
		from models.Status
	}{
		{"pending order", models.StatusPendingApproval},
		{"placed order", models.StatusPlaced},
		{"cancelled order", models.StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord, store, hook := newTestCoordinator(t)
			order := seedOrder(t, store, tt.from)

			_, err := coord.Redeem(context.Background(), order.VerificationCode, "")
			require.Error(t, err)
			assert.Equal(t, "invalid_transition", apperrors.CodeOf(err))
			assert.Empty(t, hook.kinds())
		})
	}
}

func TestConcurrentRedemptionIsExactlyOnce(t *testing.T) {
	coord, store, hook := newTestCoordinator(t)
	ctx := context.Background()

	order := seedOrder(t, store, models.StatusReady)

	const scanners = 16

	var wg sync.WaitGroup
	errs := make([]error, scanners)

	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coord.Redeem(ctx, order.VerificationCode, "")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.Equal(t, "already_redeemed", apperrors.CodeOf(err))
	}

	assert.Equal(t, 1, successes, "exactly one scanner must win")
	assert.Equal(t, []models.EventKind{models.EventPickedUp}, hook.kinds())

	stored, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPickedUp, stored.Status)
	require.NotNil(t, stored.RedeemedAt)
}

// reminderRacingStore claims the order for a pickup reminder right before
// the first conditional update, so the caller's version token goes stale
// against a write that leaves the order Ready.
type reminderRacingStore struct {
	*repository.MemoryOrderStore
	mu    sync.Mutex
	raced bool
}

func (s *reminderRacingStore) UpdateVersioned(ctx context.Context, order *models.Order, expectedVersion int64) error {
	s.mu.Lock()
	race := !s.raced
	s.raced = true
	s.mu.Unlock()

	if race {
		current, err := s.MemoryOrderStore.GetByID(ctx, order.ID)
		if err != nil {
			return err
		}

		now := models.GetCurrentTime()
		claimed := *current
		claimed.ReminderSentAt = &now

		if err := s.MemoryOrderStore.UpdateVersioned(ctx, &claimed, current.Version); err != nil {
			return err
		}
	}

	return s.MemoryOrderStore.UpdateVersioned(ctx, order, expectedVersion)
}

func TestRedeemRetriesAfterReminderClaim(t *testing.T) {
	store := &reminderRacingStore{MemoryOrderStore: repository.NewMemoryOrderStore()}
	hook := &recordingHook{}
	coord := NewRedemptionCoordinator(store, hook, logger.NewLogger("error"))
	ctx := context.Background()

	order := seedOrder(t, store.MemoryOrderStore, models.StatusReady)

	redeemed, err := coord.Redeem(ctx, order.VerificationCode, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPickedUp, redeemed.Status)
	require.NotNil(t, redeemed.RedeemedAt)
	assert.Equal(t, []models.EventKind{models.EventPickedUp}, hook.kinds())

	stored, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPickedUp, stored.Status)
	assert.NotNil(t, stored.ReminderSentAt, "the reminder claim must survive the redemption")
}

func TestRedeemGivesUpAfterRepeatedConflicts(t *testing.T) {
	store := &conflictingStore{MemoryOrderStore: repository.NewMemoryOrderStore(), conflicts: 100}
	hook := &recordingHook{}
	coord := NewRedemptionCoordinator(store, hook, logger.NewLogger("error"))

	order := seedOrder(t, store.MemoryOrderStore, models.StatusReady)

	_, err := coord.Redeem(context.Background(), order.VerificationCode, "")
	require.Error(t, err)
	assert.Equal(t, "conflict", apperrors.CodeOf(err))
	assert.Empty(t, hook.kinds())
}

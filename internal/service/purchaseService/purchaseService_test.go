package purchaseService_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/config"
	"github.com/KotFed0t/copytrade_backoffice/data/cache"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/internal/service"
	"github.com/KotFed0t/copytrade_backoffice/internal/service/purchaseService"
	"github.com/KotFed0t/copytrade_backoffice/internal/service/purchaseWorkflow"
	"github.com/KotFed0t/copytrade_backoffice/internal/testutil/memStore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userID   = int64(10)
	otherID  = int64(11)
	adminID  = int64(1)
	optionID = int64(5)
)

var (
	admin = model.Actor{UserID: adminID, Role: model.RoleAdmin}
	user  = model.Actor{UserID: userID, Role: model.RoleUser}
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fundsCache struct {
	funds map[int64]model.Funds
	sets  int
}

func (c *fundsCache) GetFunds(_ context.Context, userID int64) (model.Funds, error) {
	f, ok := c.funds[userID]
	if !ok {
		return model.Funds{}, cache.ErrNotFound
	}
	return f, nil
}

func (c *fundsCache) SetFunds(_ context.Context, funds model.Funds) error {
	c.funds[funds.UserID] = funds
	c.sets++
	return nil
}

type sideEffect struct {
	action  string
	notify  bool
	commits int
}

// sideEffects remembers how many commits the store had seen when each effect fired.
type sideEffects struct {
	store  *memStore.Store
	events []sideEffect
}

func (s *sideEffects) Notify(_ context.Context, n model.Notification) {
	s.events = append(s.events, sideEffect{action: n.Action, notify: true, commits: s.store.Commits})
}

func (s *sideEffects) Record(_ context.Context, e model.AuditEntry) {
	s.events = append(s.events, sideEffect{action: e.Action, commits: s.store.Commits})
}

func (s *sideEffects) actions() []string {
	actions := make([]string, 0, len(s.events))
	for _, e := range s.events {
		actions = append(actions, e.action)
	}
	return actions
}

type fixture struct {
	store   *memStore.Store
	cache   *fundsCache
	effects *sideEffects
	srv     *purchaseService.PurchaseService
}

func newFixture() fixture {
	store := memStore.New()
	store.AddUser(adminID, model.RoleAdmin, "0")
	store.AddUser(userID, model.RoleUser, "1000")
	store.AddUser(otherID, model.RoleUser, "1000")
	store.AddOption(optionID, "BTC scalper", "100")
	store.AddEntry(1, userID, "200")
	store.AddEntry(2, userID, "300")

	cfg := &config.Config{Pagination: config.Pagination{PurchasesPerPage: 2}}
	fc := &fundsCache{funds: make(map[int64]model.Funds)}
	effects := &sideEffects{store: store}
	workflow := purchaseWorkflow.New(store, store, store, store)

	return fixture{
		store:   store,
		cache:   fc,
		effects: effects,
		srv:     purchaseService.New(cfg, store, workflow, store, fc, effects),
	}
}

func (f fixture) addPurchase(owner int64, investment string, status model.PurchaseStatus) model.Purchase {
	return f.store.AddPurchase(model.Purchase{
		UserID:            owner,
		OptionID:          optionID,
		TradeTitle:        "BTC scalper",
		InitialInvestment: d(investment),
		CurrentValue:      d(investment),
		Status:            status,
	})
}

func statusPtr(s model.PurchaseStatus) *model.PurchaseStatus {
	return &s
}

func TestCreatePurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending purchase for the caller", func(t *testing.T) {
		f := newFixture()

		outcome, err := f.srv.CreatePurchase(ctx, user, model.PurchaseRequest{
			UserID:            otherID, // игнорируется, покупка всегда на себя
			OptionID:          optionID,
			InitialInvestment: d("500"),
		})
		require.NoError(t, err)

		assert.Equal(t, userID, outcome.Purchase.UserID)
		assert.Equal(t, model.PurchaseStatusPending, outcome.Purchase.Status)
		assert.Nil(t, outcome.NewAccountBalance)
		assert.Equal(t, 1, f.store.Commits)
	})

	t.Run("side effects fire after commit", func(t *testing.T) {
		f := newFixture()

		_, err := f.srv.CreatePurchase(ctx, user, model.PurchaseRequest{OptionID: optionID, InitialInvestment: d("500")})
		require.NoError(t, err)

		require.Len(t, f.effects.events, 2)
		for _, e := range f.effects.events {
			assert.Equal(t, model.ActionPurchaseCreated, e.action)
			assert.Equal(t, 1, e.commits)
		}
	})

	t.Run("rejected request leaves nothing behind", func(t *testing.T) {
		f := newFixture()

		_, err := f.srv.CreatePurchase(ctx, user, model.PurchaseRequest{OptionID: optionID, InitialInvestment: d("99")})

		assert.True(t, service.IsKind(err, service.KindBelowMinimumInvestment))
		assert.Empty(t, f.store.Purchases)
		assert.Equal(t, 1, f.store.Rollbacks)
		assert.Empty(t, f.effects.events)
	})
}

func TestAdminCreatePurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("forbidden for regular users", func(t *testing.T) {
		f := newFixture()

		_, err := f.srv.AdminCreatePurchase(ctx, user, model.PurchaseRequest{UserID: otherID, OptionID: optionID, InitialInvestment: d("100")}, true)

		assert.ErrorIs(t, err, service.ErrForbidden)
		assert.Empty(t, f.store.Calls)
	})

	t.Run("auto approve in one transaction", func(t *testing.T) {
		f := newFixture()

		outcome, err := f.srv.AdminCreatePurchase(ctx, admin, model.PurchaseRequest{UserID: userID, OptionID: optionID, InitialInvestment: d("250")}, true)
		require.NoError(t, err)

		assert.Equal(t, model.PurchaseStatusActive, outcome.Purchase.Status)
		require.NotNil(t, outcome.NewAccountBalance)
		assert.True(t, d("250").Equal(*outcome.NewAccountBalance))
		assert.Equal(t, 1, f.store.Commits)
		assert.Equal(t, []string{
			model.ActionPurchaseCreated, model.ActionPurchaseCreated,
			model.ActionPurchaseApproved, model.ActionPurchaseApproved,
		}, f.effects.actions())
	})

	t.Run("failed auto approve rolls back the created purchase", func(t *testing.T) {
		f := newFixture()

		_, err := f.srv.AdminCreatePurchase(ctx, admin, model.PurchaseRequest{UserID: userID, OptionID: optionID, InitialInvestment: d("600")}, true)

		assert.True(t, service.IsKind(err, service.KindInsufficientPortfolioValue))
		assert.True(t, f.store.Called("InsertPurchase"))
		assert.Empty(t, f.store.Purchases)
		assert.Equal(t, 1, f.store.Rollbacks)
		assert.Empty(t, f.effects.events)
	})

	t.Run("target is admin", func(t *testing.T) {
		f := newFixture()

		_, err := f.srv.AdminCreatePurchase(ctx, admin, model.PurchaseRequest{UserID: adminID, OptionID: optionID, InitialInvestment: d("100")}, false)

		assert.True(t, service.IsKind(err, service.KindTargetIsAdmin))
		assert.False(t, f.store.Called("InsertPurchase"))
	})
}

func TestUpdatePurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("active is terminal", func(t *testing.T) {
		for _, to := range []model.PurchaseStatus{model.PurchaseStatusPending, model.PurchaseStatusRejected} {
			f := newFixture()
			p := f.addPurchase(userID, "100", model.PurchaseStatusActive)
			current := d("150")

			_, err := f.srv.UpdatePurchase(ctx, admin, p.ID, model.PurchaseChanges{Status: statusPtr(to), CurrentValue: &current})

			de, ok := service.AsDomainError(err)
			require.True(t, ok, to)
			assert.Equal(t, service.KindInvalidStatusTransition, de.Kind)
			assert.Equal(t, service.StatusTransitionData{From: model.PurchaseStatusActive, To: to}, de.Data)

			stored := f.store.Purchases[p.ID]
			assert.Equal(t, model.PurchaseStatusActive, stored.Status)
			assert.True(t, d("100").Equal(stored.CurrentValue))
			assert.False(t, f.store.Called("SetPurchaseStatus"))
			assert.Empty(t, f.effects.events)
		}
	})

	t.Run("active metrics stay mutable", func(t *testing.T) {
		f := newFixture()
		p := f.addPurchase(userID, "100", model.PurchaseStatusActive)
		current, profit := d("120"), d("20")

		outcome, err := f.srv.UpdatePurchase(ctx, admin, p.ID, model.PurchaseChanges{CurrentValue: &current, ProfitLoss: &profit})
		require.NoError(t, err)

		assert.Equal(t, model.PurchaseStatusActive, outcome.Purchase.Status)
		assert.True(t, current.Equal(outcome.Purchase.CurrentValue))
		assert.Equal(t, []string{model.ActionPurchaseUpdated}, f.effects.actions())
	})

	t.Run("active end date is frozen", func(t *testing.T) {
		f := newFixture()
		p := f.addPurchase(userID, "100", model.PurchaseStatusActive)
		endDate := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

		_, err := f.srv.UpdatePurchase(ctx, admin, p.ID, model.PurchaseChanges{EndDate: &endDate})
		require.Error(t, err)

		de, ok := service.AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, service.KindImmutableField, de.Kind)
		assert.Equal(t, service.FieldData{Field: "end_date", Status: model.PurchaseStatusActive}, de.Data)

		stored, err := f.store.GetPurchase(ctx, p.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.EndDate)
		assert.Empty(t, f.effects.events)
	})

	t.Run("pending end date can be set", func(t *testing.T) {
		f := newFixture()
		p := f.addPurchase(userID, "100", model.PurchaseStatusPending)
		endDate := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

		outcome, err := f.srv.UpdatePurchase(ctx, admin, p.ID, model.PurchaseChanges{EndDate: &endDate})
		require.NoError(t, err)

		require.NotNil(t, outcome.Purchase.EndDate)
		assert.True(t, endDate.Equal(*outcome.Purchase.EndDate))
	})

	t.Run("pending to active runs approval", func(t *testing.T) {
		f := newFixture()
		p := f.addPurchase(userID, "250", model.PurchaseStatusPending)

		outcome, err := f.srv.UpdatePurchase(ctx, admin, p.ID, model.PurchaseChanges{Status: statusPtr(model.PurchaseStatusActive)})
		require.NoError(t, err)

		assert.Equal(t, model.PurchaseStatusActive, outcome.Purchase.Status)
		require.Len(t, outcome.Deductions, 2)
		require.NotNil(t, outcome.NewAccountBalance)
		assert.True(t, d("250").Equal(*outcome.NewAccountBalance))
		assert.True(t, f.store.EntryValue(1).IsZero())
		assert.True(t, d("250").Equal(f.store.EntryValue(2)))

		require.NotEmpty(t, f.effects.events)
		for _, e := range f.effects.events {
			assert.Equal(t, model.ActionPurchaseApproved, e.action)
			assert.Equal(t, 1, e.commits)
		}
	})

	t.Run("rejection then approval is refused", func(t *testing.T) {
		f := newFixture()
		p := f.addPurchase(userID, "100", model.PurchaseStatusPending)

		outcome, err := f.srv.UpdatePurchase(ctx, admin, p.ID, model.PurchaseChanges{Status: statusPtr(model.PurchaseStatusRejected)})
		require.NoError(t, err)
		assert.Equal(t, model.PurchaseStatusRejected, outcome.Purchase.Status)
		assert.Equal(t, []string{model.ActionPurchaseRejected, model.ActionPurchaseRejected}, f.effects.actions())

		_, err = f.srv.UpdatePurchase(ctx, admin, p.ID, model.PurchaseChanges{Status: statusPtr(model.PurchaseStatusActive)})
		assert.True(t, service.IsKind(err, service.KindInvalidStatusTransition))
		assert.True(t, d("200").Equal(f.store.EntryValue(1)))
	})

	t.Run("failure after deductions rolls everything back", func(t *testing.T) {
		f := newFixture()
		p := f.addPurchase(userID, "400", model.PurchaseStatusPending)
		boom := errors.New("connection reset")
		f.store.Fail("SetPurchaseStatus", boom)

		_, err := f.srv.UpdatePurchase(ctx, admin, p.ID, model.PurchaseChanges{Status: statusPtr(model.PurchaseStatusActive)})

		assert.ErrorIs(t, err, boom)
		assert.True(t, f.store.Called("DeductFromEntry"))
		assert.True(t, d("200").Equal(f.store.EntryValue(1)))
		assert.True(t, d("300").Equal(f.store.EntryValue(2)))
		assert.Equal(t, model.PurchaseStatusPending, f.store.Purchases[p.ID].Status)
		assert.Equal(t, 1, f.store.Rollbacks)
		assert.Empty(t, f.effects.events)
	})

	t.Run("unknown purchase", func(t *testing.T) {
		f := newFixture()

		_, err := f.srv.UpdatePurchase(ctx, admin, 404, model.PurchaseChanges{Status: statusPtr(model.PurchaseStatusRejected)})

		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("forbidden for regular users", func(t *testing.T) {
		f := newFixture()
		p := f.addPurchase(userID, "100", model.PurchaseStatusPending)

		_, err := f.srv.UpdatePurchase(ctx, user, p.ID, model.PurchaseChanges{Status: statusPtr(model.PurchaseStatusActive)})

		assert.ErrorIs(t, err, service.ErrForbidden)
	})
}

func TestDeletePurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("removes record without refund", func(t *testing.T) {
		f := newFixture()
		f.store.Entries[0].Value = d("0")
		p := f.addPurchase(userID, "200", model.PurchaseStatusActive)

		require.NoError(t, f.srv.DeletePurchase(ctx, admin, p.ID))

		assert.NotContains(t, f.store.Purchases, p.ID)
		assert.True(t, f.store.EntryValue(1).IsZero())
		assert.Equal(t, []string{model.ActionPurchaseDeleted}, f.effects.actions())
	})

	t.Run("unknown purchase", func(t *testing.T) {
		f := newFixture()

		err := f.srv.DeletePurchase(ctx, admin, 404)

		assert.ErrorIs(t, err, service.ErrNotFound)
		assert.Empty(t, f.effects.events)
	})
}

func TestGetPurchase(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	own := f.addPurchase(userID, "100", model.PurchaseStatusPending)
	foreign := f.addPurchase(otherID, "100", model.PurchaseStatusPending)

	got, err := f.srv.GetPurchase(ctx, user, own.ID)
	require.NoError(t, err)
	assert.Equal(t, own.ID, got.ID)

	_, err = f.srv.GetPurchase(ctx, user, foreign.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	got, err = f.srv.GetPurchase(ctx, admin, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, foreign.ID, got.ID)
}

func TestGetPurchases(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addPurchase(userID, "100", model.PurchaseStatusPending)
	f.addPurchase(userID, "100", model.PurchaseStatusActive)
	f.addPurchase(userID, "100", model.PurchaseStatusPending)
	f.addPurchase(otherID, "100", model.PurchaseStatusPending)

	t.Run("admin pages through everything", func(t *testing.T) {
		page, err := f.srv.GetPurchases(ctx, admin, model.PurchaseFilter{}, 0)
		require.NoError(t, err)
		assert.Len(t, page.Purchases, 2)
		assert.True(t, page.HasNextPage)

		page, err = f.srv.GetPurchases(ctx, admin, model.PurchaseFilter{}, 1)
		require.NoError(t, err)
		assert.Len(t, page.Purchases, 2)
		assert.False(t, page.HasNextPage)
	})

	t.Run("user sees only own purchases", func(t *testing.T) {
		foreign := otherID
		page, err := f.srv.GetPurchases(ctx, user, model.PurchaseFilter{UserID: &foreign, Status: statusPtr(model.PurchaseStatusPending)}, 0)
		require.NoError(t, err)

		require.Len(t, page.Purchases, 2)
		for _, p := range page.Purchases {
			assert.Equal(t, userID, p.UserID)
			assert.Equal(t, model.PurchaseStatusPending, p.Status)
		}
	})
}

func TestGetFunds(t *testing.T) {
	ctx := context.Background()

	t.Run("reads through cache", func(t *testing.T) {
		f := newFixture()

		funds, err := f.srv.GetFunds(ctx, user, userID)
		require.NoError(t, err)
		assert.True(t, d("1000").Equal(funds.AccountBalance))
		assert.True(t, d("500").Equal(funds.PortfolioValue))
		assert.Len(t, funds.Entries, 2)
		assert.Equal(t, 1, f.cache.sets)

		_, err = f.srv.GetFunds(ctx, user, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, f.cache.sets)
	})

	t.Run("foreign funds are forbidden", func(t *testing.T) {
		f := newFixture()

		_, err := f.srv.GetFunds(ctx, user, otherID)

		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture()

		_, err := f.srv.GetFunds(ctx, admin, 404)

		assert.True(t, service.IsKind(err, service.KindUserNotFound))
	})
}

func TestRefreshActivePurchaseMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	option := f.store.Options[optionID]
	option.ProfitPercent = d("12.5")
	option.WinRate = d("70")
	f.store.Options[optionID] = option
	active := f.addPurchase(userID, "1000", model.PurchaseStatusActive)
	pending := f.addPurchase(userID, "1000", model.PurchaseStatusPending)

	require.NoError(t, f.srv.RefreshActivePurchaseMetrics(ctx))

	refreshed := f.store.Purchases[active.ID]
	assert.Equal(t, model.PurchaseStatusActive, refreshed.Status)
	assert.True(t, d("1125").Equal(refreshed.CurrentValue))
	assert.True(t, d("125").Equal(refreshed.ProfitLoss))
	assert.True(t, d("70").Equal(refreshed.WinRate))
	assert.True(t, d("1000").Equal(f.store.Purchases[pending.ID].CurrentValue))
}

func TestMetricsFromOption(t *testing.T) {
	purchase := model.Purchase{InitialInvestment: d("300")}
	option := model.CopytradeOption{ProfitPercent: d("-10"), WinRate: d("45.5")}

	changes := purchaseService.MetricsFromOption(purchase, option)

	require.NotNil(t, changes.CurrentValue)
	assert.True(t, d("270").Equal(*changes.CurrentValue))
	assert.True(t, d("-30").Equal(*changes.ProfitLoss))
	assert.True(t, d("45.5").Equal(*changes.WinRate))
	assert.Nil(t, changes.Status)
}

package reportService_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/internal/service"
	"github.com/KotFed0t/copytrade_backoffice/internal/service/reportService"
	"github.com/KotFed0t/copytrade_backoffice/internal/testutil/memStore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	purchases []model.Purchase
}

func (g *stubGenerator) Generate(_ context.Context, _ string, purchases []model.Purchase) ([]byte, string, error) {
	g.purchases = purchases
	return []byte("xlsx"), ".xlsx", nil
}

type stubStorage struct {
	uploaded map[string][]byte
	deleted  int
}

func (s *stubStorage) UploadFile(_ context.Context, reader io.Reader, filename string) (string, error) {
	b, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.uploaded[filename] = b
	return "https://drive.example/" + filename, nil
}

func (s *stubStorage) DeleteOldFiles(_ context.Context) error {
	s.deleted++
	return nil
}

func addPurchase(store *memStore.Store, userID int64, status model.PurchaseStatus, createdAt time.Time) {
	store.AddPurchase(model.Purchase{
		UserID:            userID,
		OptionID:          1,
		TradeTitle:        "ETH grid",
		InitialInvestment: decimal.NewFromInt(100),
		Status:            status,
		CreatedAt:         createdAt,
	})
}

func TestExportPurchases(t *testing.T) {
	ctx := context.Background()
	store := memStore.New()
	addPurchase(store, 10, model.PurchaseStatusPending, time.Now())
	addPurchase(store, 10, model.PurchaseStatusActive, time.Now())
	addPurchase(store, 11, model.PurchaseStatusActive, time.Now())

	t.Run("admin gets filtered spreadsheet", func(t *testing.T) {
		gen := &stubGenerator{}
		srv := reportService.New(store, gen, nil)
		status := model.PurchaseStatusActive

		fileBytes, filename, err := srv.ExportPurchases(ctx, model.Actor{UserID: 1, Role: model.RoleSuperAdmin}, model.PurchaseFilter{Status: &status})
		require.NoError(t, err)

		assert.Equal(t, []byte("xlsx"), fileBytes)
		assert.True(t, strings.HasPrefix(filename, "purchases_"))
		assert.True(t, strings.HasSuffix(filename, ".xlsx"))
		assert.Len(t, gen.purchases, 2)
	})

	t.Run("regular user is forbidden", func(t *testing.T) {
		srv := reportService.New(store, &stubGenerator{}, nil)

		_, _, err := srv.ExportPurchases(ctx, model.Actor{UserID: 10, Role: model.RoleUser}, model.PurchaseFilter{})

		assert.ErrorIs(t, err, service.ErrForbidden)
	})
}

func TestUploadDailyReport(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads purchases of the last day", func(t *testing.T) {
		store := memStore.New()
		addPurchase(store, 10, model.PurchaseStatusPending, time.Now().Add(-time.Hour))
		addPurchase(store, 10, model.PurchaseStatusPending, time.Now().Add(-48*time.Hour))
		gen := &stubGenerator{}
		storage := &stubStorage{uploaded: make(map[string][]byte)}

		require.NoError(t, reportService.New(store, gen, storage).UploadDailyReport(ctx))

		assert.Len(t, gen.purchases, 1)
		require.Len(t, storage.uploaded, 1)
		for name, content := range storage.uploaded {
			assert.True(t, strings.HasPrefix(name, "daily_purchases_"))
			assert.Equal(t, []byte("xlsx"), content)
		}
	})

	t.Run("nothing to upload", func(t *testing.T) {
		storage := &stubStorage{uploaded: make(map[string][]byte)}

		require.NoError(t, reportService.New(memStore.New(), &stubGenerator{}, storage).UploadDailyReport(ctx))

		assert.Empty(t, storage.uploaded)
	})

	t.Run("no cloud storage configured", func(t *testing.T) {
		srv := reportService.New(memStore.New(), &stubGenerator{}, nil)

		assert.NoError(t, srv.UploadDailyReport(ctx))
		assert.NoError(t, srv.DeleteOldReports(ctx))
	})
}

func TestDeleteOldReports(t *testing.T) {
	storage := &stubStorage{uploaded: make(map[string][]byte)}

	require.NoError(t, reportService.New(memStore.New(), &stubGenerator{}, storage).DeleteOldReports(context.Background()))

	assert.Equal(t, 1, storage.deleted)
}

package xslsxGenerator

import (
	"bytes"
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerate(t *testing.T) {
	approvedBy := int64(1)
	approvedAt := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	purchases := []model.Purchase{
		{
			ID:                7,
			UserID:            10,
			OptionID:          5,
			TradeTitle:        "BTC scalper",
			InitialInvestment: decimal.RequireFromString("500"),
			CurrentValue:      decimal.RequireFromString("540.25"),
			ProfitLoss:        decimal.RequireFromString("40.25"),
			WinRate:           decimal.RequireFromString("61.5"),
			ApprovedBy:        &approvedBy,
			ApprovedAt:        &approvedAt,
			Status:            model.PurchaseStatusActive,
			CreatedAt:         approvedAt.Add(-time.Hour),
		},
		{
			ID:                8,
			UserID:            11,
			OptionID:          5,
			TradeTitle:        "BTC scalper",
			InitialInvestment: decimal.RequireFromString("150"),
			Status:            model.PurchaseStatusPending,
			CreatedAt:         approvedAt,
		},
	}

	fileBytes, ext, err := New().Generate(context.Background(), "purchases_test", purchases)
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", ext)

	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{purchasesSheet, summarySheet}, f.GetSheetList())

	cell := func(sheet, axis string) string {
		v, err := f.GetCellValue(sheet, axis)
		require.NoError(t, err)
		return v
	}

	num := func(sheet, axis string) float64 {
		v, err := strconv.ParseFloat(cell(sheet, axis), 64)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Purchase", cell(purchasesSheet, "A1"))
	assert.Equal(t, "id", cell(purchasesSheet, "A2"))
	assert.Equal(t, "7", cell(purchasesSheet, "A3"))
	assert.Equal(t, "BTC scalper", cell(purchasesSheet, "D3"))
	assert.Equal(t, "active", cell(purchasesSheet, "E3"))
	assert.InDelta(t, 540.25, num(purchasesSheet, "G3"), 0.001)
	assert.Equal(t, "1", cell(purchasesSheet, "J3"))
	assert.Equal(t, "2026-03-02 10:30", cell(purchasesSheet, "K3"))
	assert.Equal(t, "", cell(purchasesSheet, "J4"))
	assert.Equal(t, "pending", cell(purchasesSheet, "E4"))

	assert.Equal(t, "purchases_test", cell(summarySheet, "A1"))
	assert.Equal(t, "pending", cell(summarySheet, "A3"))
	assert.Equal(t, "1", cell(summarySheet, "B3"))
	assert.InDelta(t, 150, num(summarySheet, "C3"), 0.001)
	assert.Equal(t, "active", cell(summarySheet, "A4"))
	assert.InDelta(t, 500, num(summarySheet, "C4"), 0.001)
	assert.Equal(t, "0", cell(summarySheet, "B5"))
}

func TestGenerateEmpty(t *testing.T) {
	_, _, err := New().Generate(context.Background(), "empty", nil)
	assert.Error(t, err)
}

package xslsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	purchasesSheet = "Purchases"
	summarySheet   = "Summary"
	dateLayout     = "2006-01-02 15:04"
)

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

func (g *XSLSXGenerator) Generate(ctx context.Context, title string, purchases []model.Purchase) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	if len(purchases) == 0 {
		return nil, "", errors.New("empty purchases")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op), slog.String("title", title), slog.Int("purchases", len(purchases)))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	// переименовываем лист по умолчанию вместо удаления
	if err = f.SetSheetName("Sheet1", purchasesSheet); err != nil {
		return nil, "", err
	}

	if err = g.fillPurchasesSheet(f, purchases); err != nil {
		slog.Error("got error while filling purchases sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err = g.fillSummarySheet(f, title, purchases); err != nil {
		slog.Error("got error while filling summary sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

type headerBlock struct {
	title   string
	from    string
	to      string
	color   string
	columns map[string]string
}

var purchaseHeader = []headerBlock{
	{
		title: "Purchase", from: "A", to: "E", color: "#cfe2f3",
		columns: map[string]string{"A": "id", "B": "user", "C": "option", "D": "title", "E": "status"},
	},
	{
		title: "Investment", from: "F", to: "H", color: "#d9ead3",
		columns: map[string]string{"F": "initial", "G": "current value", "H": "profit/loss"},
	},
	{
		title: "Metrics", from: "I", to: "M", color: "#f9cb9c",
		columns: map[string]string{"I": "win rate", "J": "approved by", "K": "approved at", "L": "end date", "M": "created at"},
	},
}

func (g *XSLSXGenerator) headerStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
}

func (g *XSLSXGenerator) fillPurchasesSheet(f *excelize.File, purchases []model.Purchase) error {
	for _, block := range purchaseHeader {
		if err := f.MergeCell(purchasesSheet, block.from+"1", block.to+"1"); err != nil {
			return err
		}
		_ = f.SetCellStr(purchasesSheet, block.from+"1", block.title)

		styleID, err := g.headerStyle(f, block.color)
		if err != nil {
			return err
		}
		if err = f.SetCellStyle(purchasesSheet, block.from+"1", block.from+"1", styleID); err != nil {
			return fmt.Errorf("apply header style: %w", err)
		}

		for col, name := range block.columns {
			_ = f.SetCellStr(purchasesSheet, col+"2", name)
		}
	}

	for i, p := range purchases {
		row := i + 3
		cell := func(col string) string { return fmt.Sprintf("%s%d", col, row) }

		_ = f.SetCellInt(purchasesSheet, cell("A"), p.ID)
		_ = f.SetCellInt(purchasesSheet, cell("B"), p.UserID)
		_ = f.SetCellInt(purchasesSheet, cell("C"), p.OptionID)
		_ = f.SetCellStr(purchasesSheet, cell("D"), p.TradeTitle)
		_ = f.SetCellStr(purchasesSheet, cell("E"), string(p.Status))

		_ = f.SetCellFloat(purchasesSheet, cell("F"), p.InitialInvestment.InexactFloat64(), 2, 64)
		_ = f.SetCellFloat(purchasesSheet, cell("G"), p.CurrentValue.InexactFloat64(), 2, 64)
		_ = f.SetCellFloat(purchasesSheet, cell("H"), p.ProfitLoss.InexactFloat64(), 2, 64)

		_ = f.SetCellFloat(purchasesSheet, cell("I"), p.WinRate.InexactFloat64(), 2, 64)
		if p.ApprovedBy != nil {
			_ = f.SetCellInt(purchasesSheet, cell("J"), *p.ApprovedBy)
		}
		_ = f.SetCellStr(purchasesSheet, cell("K"), formatTime(p.ApprovedAt))
		_ = f.SetCellStr(purchasesSheet, cell("L"), formatTime(p.EndDate))
		_ = f.SetCellStr(purchasesSheet, cell("M"), p.CreatedAt.Format(dateLayout))
	}

	return nil
}

func (g *XSLSXGenerator) fillSummarySheet(f *excelize.File, title string, purchases []model.Purchase) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	styleID, err := g.headerStyle(f, "#cccccc")
	if err != nil {
		return err
	}

	_ = f.SetCellStr(summarySheet, "A1", title)
	_ = f.SetCellStr(summarySheet, "A2", "status")
	_ = f.SetCellStr(summarySheet, "B2", "count")
	_ = f.SetCellStr(summarySheet, "C2", "invested")
	if err = f.SetCellStyle(summarySheet, "A2", "C2", styleID); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	statuses := []model.PurchaseStatus{model.PurchaseStatusPending, model.PurchaseStatusActive, model.PurchaseStatusRejected}
	counts := make(map[model.PurchaseStatus]int64, len(statuses))
	sums := make(map[model.PurchaseStatus]decimal.Decimal, len(statuses))
	for _, p := range purchases {
		counts[p.Status]++
		sums[p.Status] = sums[p.Status].Add(p.InitialInvestment)
	}

	for i, status := range statuses {
		row := i + 3
		_ = f.SetCellStr(summarySheet, fmt.Sprintf("A%d", row), string(status))
		_ = f.SetCellInt(summarySheet, fmt.Sprintf("B%d", row), counts[status])
		_ = f.SetCellFloat(summarySheet, fmt.Sprintf("C%d", row), sums[status].InexactFloat64(), 2, 64)
	}

	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

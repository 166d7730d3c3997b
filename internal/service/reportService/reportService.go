package reportService

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/internal/service"
	"github.com/KotFed0t/copytrade_backoffice/utils"
)

const (
	reportPeriod  = 24 * time.Hour
	maxExportRows = 10000
)

type Repository interface {
	GetPurchases(ctx context.Context, filter model.PurchaseFilter, limit, offset int) ([]model.Purchase, bool, error)
	GetPurchasesCreatedSince(ctx context.Context, since time.Time) ([]model.Purchase, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, title string, purchases []model.Purchase) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

type ReportService struct {
	repo         Repository
	generator    ReportGenerator
	cloudStorage CloudStorage
	now          func() time.Time
}

// New builds a ReportService. cloudStorage may be nil, then daily uploads are unavailable.
func New(repo Repository, generator ReportGenerator, cloudStorage CloudStorage) *ReportService {
	return &ReportService{repo: repo, generator: generator, cloudStorage: cloudStorage, now: time.Now}
}

// ExportPurchases renders purchases matching filter into a spreadsheet.
func (s *ReportService) ExportPurchases(ctx context.Context, actor model.Actor, filter model.PurchaseFilter) (fileBytes []byte, filename string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "ReportService.ExportPurchases"

	if !actor.IsAdmin() {
		return nil, "", service.ErrForbidden
	}

	purchases, truncated, err := s.repo.GetPurchases(ctx, filter, maxExportRows, 0)
	if err != nil {
		return nil, "", err
	}
	if truncated {
		slog.Warn("purchases export truncated", slog.String("rqID", rqID), slog.String("op", op), slog.Int("rows", maxExportRows))
	}

	title := fmt.Sprintf("purchases_%s", s.now().Format("2006-01-02_150405"))
	fileBytes, ext, err := s.generator.Generate(ctx, title, purchases)
	if err != nil {
		return nil, "", err
	}

	return fileBytes, title + ext, nil
}

// UploadDailyReport uploads a spreadsheet with the purchases created during the last day.
func (s *ReportService) UploadDailyReport(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "ReportService.UploadDailyReport"

	if s.cloudStorage == nil {
		return nil
	}

	now := s.now()
	purchases, err := s.repo.GetPurchasesCreatedSince(ctx, now.Add(-reportPeriod))
	if err != nil {
		return fmt.Errorf("get purchases: %w", err)
	}

	if len(purchases) == 0 {
		slog.Info("no purchases for daily report", slog.String("rqID", rqID), slog.String("op", op))
		return nil
	}

	title := fmt.Sprintf("daily_purchases_%s", now.Format("2006-01-02"))
	fileBytes, ext, err := s.generator.Generate(ctx, title, purchases)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	link, err := s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), title+ext)
	if err != nil {
		return fmt.Errorf("upload report: %w", err)
	}

	slog.Info("daily purchases report uploaded", slog.String("rqID", rqID), slog.String("op", op), slog.String("link", link), slog.Int("purchases", len(purchases)))

	return nil
}

func (s *ReportService) DeleteOldReports(ctx context.Context) error {
	if s.cloudStorage == nil {
		return nil
	}
	return s.cloudStorage.DeleteOldFiles(ctx)
}

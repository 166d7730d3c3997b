package googleDriveApi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/config"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	reportMimeType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	viewLinkTemplate = "https://drive.google.com/file/d/%s/view"
	listPageSize     = 100
)

// GoogleDriveApi stores purchase reports in a Drive folder shared with the company domain.
type GoogleDriveApi struct {
	files       *drive.FilesService
	permissions *drive.PermissionsService
	folderID    string
	domain      string
	reportTTL   time.Duration
}

func New(ctx context.Context, cfg *config.Config) *GoogleDriveApi {
	srv, err := drive.NewService(ctx, option.WithCredentialsFile(cfg.GoogleDrive.CredentialsFile))
	if err != nil {
		slog.Error("can't create google drive client", slog.String("err", err.Error()))
		panic(err)
	}

	return &GoogleDriveApi{
		files:       srv.Files,
		permissions: srv.Permissions,
		folderID:    cfg.GoogleDrive.FolderID,
		domain:      cfg.GoogleDrive.Domain,
		reportTTL:   cfg.GoogleDrive.FileTTL,
	}
}

// UploadFile stores a report and returns a link readable by anyone in the domain.
func (a *GoogleDriveApi) UploadFile(ctx context.Context, reader io.Reader, filename string) (link string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.UploadFile"

	slog.Debug("UploadFile start", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename))
	defer func() {
		if err != nil {
			slog.Error("UploadFile failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UploadFile completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("link", link))
		}
	}()

	meta := &drive.File{Name: filename, MimeType: reportMimeType}
	if a.folderID != "" {
		meta.Parents = []string{a.folderID}
	}

	// Media сам режет файл на чанки и ретраит сетевые ошибки
	uploaded, err := a.files.Create(meta).Media(reader).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}

	_, err = a.permissions.Create(uploaded.Id, &drive.Permission{
		Type:   "domain",
		Role:   "reader",
		Domain: a.domain,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("share %s: %w", uploaded.Id, err)
	}

	return fmt.Sprintf(viewLinkTemplate, uploaded.Id), nil
}

// DeleteOldFiles removes reports older than the configured TTL. A failed delete is logged and skipped.
func (a *GoogleDriveApi) DeleteOldFiles(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "GoogleDriveApi.DeleteOldFiles"

	cutoff := time.Now().UTC().Add(-a.reportTTL)
	query := a.expiredQuery(cutoff)

	slog.Debug("DeleteOldFiles start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))

	var expired []*drive.File
	err := a.files.List().
		Q(query).
		Fields("nextPageToken, files(id, name)").
		PageSize(listPageSize).
		Pages(ctx, func(page *drive.FileList) error {
			expired = append(expired, page.Files...)
			return nil
		})
	if err != nil {
		slog.Error("DeleteOldFiles failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return fmt.Errorf("list expired reports: %w", err)
	}

	deleted := 0
	for _, f := range expired {
		if err = a.files.Delete(f.Id).Context(ctx).Do(); err != nil {
			slog.Warn(
				"can't delete report",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("fileID", f.Id),
				slog.String("name", f.Name),
				slog.String("err", err.Error()),
			)
			continue
		}
		deleted++
	}

	slog.Info("old reports deleted", slog.String("rqID", rqID), slog.Int("deleted", deleted), slog.Int("failed", len(expired)-deleted))

	return nil
}

func (a *GoogleDriveApi) expiredQuery(cutoff time.Time) string {
	conditions := []string{
		fmt.Sprintf("mimeType = '%s'", reportMimeType),
		"trashed = false",
		fmt.Sprintf("createdTime < '%s'", cutoff.Format(time.RFC3339)),
	}
	if a.folderID != "" {
		conditions = append(conditions, fmt.Sprintf("'%s' in parents", a.folderID))
	}
	return strings.Join(conditions, " and ")
}

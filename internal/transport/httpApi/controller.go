package httpApi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type PurchaseService interface {
	CreatePurchase(ctx context.Context, actor model.Actor, req model.PurchaseRequest) (model.PurchaseOutcome, error)
	AdminCreatePurchase(ctx context.Context, actor model.Actor, req model.PurchaseRequest, autoApprove bool) (model.PurchaseOutcome, error)
	UpdatePurchase(ctx context.Context, actor model.Actor, purchaseID int64, changes model.PurchaseChanges) (model.PurchaseOutcome, error)
	DeletePurchase(ctx context.Context, actor model.Actor, purchaseID int64) error
	GetPurchase(ctx context.Context, actor model.Actor, purchaseID int64) (model.Purchase, error)
	GetPurchases(ctx context.Context, actor model.Actor, filter model.PurchaseFilter, page int) (model.PurchasesPage, error)
	GetFunds(ctx context.Context, actor model.Actor, userID int64) (model.Funds, error)
}

type OptionService interface {
	GetOptions(ctx context.Context) ([]model.CopytradeOption, error)
}

type ReportService interface {
	ExportPurchases(ctx context.Context, actor model.Actor, filter model.PurchaseFilter) (fileBytes []byte, filename string, err error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Controller struct {
	purchaseService PurchaseService
	optionService   OptionService
	reportService   ReportService
	db              Pinger
}

func NewController(purchaseService PurchaseService, optionService OptionService, reportService ReportService, db Pinger) *Controller {
	return &Controller{
		purchaseService: purchaseService,
		optionService:   optionService,
		reportService:   reportService,
		db:              db,
	}
}

func (ctrl *Controller) Health(c *gin.Context) {
	if err := ctrl.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (ctrl *Controller) GetOptions(c *gin.Context) {
	options, err := ctrl.optionService.GetOptions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"options": options})
}

func (ctrl *Controller) CreatePurchase(c *gin.Context) {
	ctx, actor, ok := requestScope(c)
	if !ok {
		return
	}

	var req createPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	outcome, err := ctrl.purchaseService.CreatePurchase(ctx, actor, req.toModel(actor.UserID))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, outcome)
}

func (ctrl *Controller) AdminCreatePurchase(c *gin.Context) {
	ctx, actor, ok := requestScope(c)
	if !ok {
		return
	}

	var req adminCreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		badRequest(c, err.Error())
		return
	}

	outcome, err := ctrl.purchaseService.AdminCreatePurchase(ctx, actor, req.toModel(req.UserID), req.AutoApprove)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, outcome)
}

func (ctrl *Controller) UpdatePurchase(c *gin.Context) {
	ctx, actor, ok := requestScope(c)
	if !ok {
		return
	}

	purchaseID, ok := idParam(c)
	if !ok {
		return
	}

	var req updatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	changes, err := req.toModel()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	outcome, err := ctrl.purchaseService.UpdatePurchase(ctx, actor, purchaseID, changes)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

func (ctrl *Controller) DeletePurchase(c *gin.Context) {
	ctx, actor, ok := requestScope(c)
	if !ok {
		return
	}

	purchaseID, ok := idParam(c)
	if !ok {
		return
	}

	if err := ctrl.purchaseService.DeletePurchase(ctx, actor, purchaseID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (ctrl *Controller) GetPurchase(c *gin.Context) {
	ctx, actor, ok := requestScope(c)
	if !ok {
		return
	}

	purchaseID, ok := idParam(c)
	if !ok {
		return
	}

	purchase, err := ctrl.purchaseService.GetPurchase(ctx, actor, purchaseID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchase": purchase})
}

func (ctrl *Controller) GetPurchases(c *gin.Context) {
	ctx, actor, ok := requestScope(c)
	if !ok {
		return
	}

	var query purchasesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err.Error())
		return
	}

	filter, err := query.toFilter()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	page, err := ctrl.purchaseService.GetPurchases(ctx, actor, filter, query.Page)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (ctrl *Controller) ExportPurchases(c *gin.Context) {
	ctx, actor, ok := requestScope(c)
	if !ok {
		return
	}

	var query purchasesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err.Error())
		return
	}

	filter, err := query.toFilter()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	fileBytes, filename, err := ctrl.reportService.ExportPurchases(ctx, actor, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, fileBytes)
}

func (ctrl *Controller) GetFunds(c *gin.Context) {
	ctx, actor, ok := requestScope(c)
	if !ok {
		return
	}

	userID, ok := idParam(c)
	if !ok {
		return
	}

	funds, err := ctrl.purchaseService.GetFunds(ctx, actor, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, funds)
}

// requestScope returns the request context and its authenticated actor.
func requestScope(c *gin.Context) (context.Context, model.Actor, bool) {
	ctx := c.Request.Context()
	actor, ok := utils.GetActorFromCtx(ctx)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: http.StatusUnauthorized, Message: "unauthorized"})
		return nil, model.Actor{}, false
	}
	return ctx, actor, true
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

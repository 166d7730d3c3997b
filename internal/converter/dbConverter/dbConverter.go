package dbConverter

import (
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/internal/model/dbModel"
)

func ConvertPurchase(dbPurchase dbModel.Purchase) model.Purchase {
	purchase := model.Purchase{
		ID:                dbPurchase.PurchaseID,
		UserID:            dbPurchase.UserID,
		OptionID:          dbPurchase.OptionID,
		TradeTitle:        dbPurchase.TradeTitle,
		InitialInvestment: dbPurchase.InitialInvestment,
		CurrentValue:      dbPurchase.CurrentValue,
		ProfitLoss:        dbPurchase.ProfitLoss,
		WinRate:           dbPurchase.WinRate,
		Status:            model.PurchaseStatus(dbPurchase.Status),
		CreatedAt:         dbPurchase.CreatedAt,
		UpdatedAt:         dbPurchase.UpdatedAt,
	}

	if dbPurchase.ApprovedBy.Valid {
		approvedBy := dbPurchase.ApprovedBy.Int64
		purchase.ApprovedBy = &approvedBy
	}
	if dbPurchase.ApprovedAt.Valid {
		approvedAt := dbPurchase.ApprovedAt.Time
		purchase.ApprovedAt = &approvedAt
	}
	if dbPurchase.EndDate.Valid {
		endDate := dbPurchase.EndDate.Time
		purchase.EndDate = &endDate
	}

	return purchase
}

func ConvertPortfolioEntry(dbEntry dbModel.PortfolioEntry) model.PortfolioEntry {
	return model.PortfolioEntry{
		ID:        dbEntry.EntryID,
		UserID:    dbEntry.UserID,
		Symbol:    dbEntry.Symbol,
		Value:     dbEntry.Value,
		CreatedAt: dbEntry.CreatedAt,
	}
}

func ConvertUser(dbUser dbModel.User) model.User {
	return model.User{
		ID:      dbUser.UserID,
		Email:   dbUser.Email,
		Name:    dbUser.Name,
		Role:    model.UserRole(dbUser.Role),
		Balance: dbUser.Balance,
	}
}

func ConvertOption(dbOption dbModel.Option) model.CopytradeOption {
	return model.CopytradeOption{
		ID:                dbOption.OptionID,
		Title:             dbOption.Title,
		MinimumInvestment: dbOption.MinimumInvestment,
		ProfitPercent:     dbOption.ProfitPercent,
		WinRate:           dbOption.WinRate,
		DurationDays:      dbOption.DurationDays,
		CreatedAt:         dbOption.CreatedAt,
	}
}

// Package memStore is an in-memory stand-in for the postgres repository used by service tests.
// WithinTransaction snapshots the whole store and restores it when the function fails.
// Not safe for concurrent use.
package memStore

import (
	"context"
	"sort"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/data/repository"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/shopspring/decimal"
)

type txKey struct{}

type Store struct {
	Users         map[int64]model.User
	Options       map[int64]model.CopytradeOption
	Entries       []model.PortfolioEntry
	Purchases     map[int64]model.Purchase
	Audit         []model.AuditEntry
	Notifications []model.Notification

	// Calls lists invoked methods in order.
	Calls     []string
	Commits   int
	Rollbacks int

	failures       map[string]error
	nextPurchaseID int64
}

func New() *Store {
	return &Store{
		Users:     make(map[int64]model.User),
		Options:   make(map[int64]model.CopytradeOption),
		Purchases: make(map[int64]model.Purchase),
		failures:  make(map[string]error),
	}
}

func (s *Store) AddUser(id int64, role model.UserRole, balance string) model.User {
	user := model.User{ID: id, Email: "user@example.com", Role: role, Balance: decimal.RequireFromString(balance)}
	s.Users[id] = user
	return user
}

func (s *Store) AddOption(id int64, title, minimum string) model.CopytradeOption {
	option := model.CopytradeOption{
		ID:                id,
		Title:             title,
		MinimumInvestment: decimal.RequireFromString(minimum),
		ProfitPercent:     decimal.Zero,
		WinRate:           decimal.RequireFromString("61.5"),
		DurationDays:      30,
	}
	s.Options[id] = option
	return option
}

func (s *Store) AddEntry(id, userID int64, value string) {
	s.Entries = append(s.Entries, model.PortfolioEntry{ID: id, UserID: userID, Symbol: "USDT", Value: decimal.RequireFromString(value)})
	sort.Slice(s.Entries, func(i, j int) bool { return s.Entries[i].ID < s.Entries[j].ID })
}

func (s *Store) AddPurchase(p model.Purchase) model.Purchase {
	s.nextPurchaseID++
	if p.ID == 0 {
		p.ID = s.nextPurchaseID
	} else if p.ID > s.nextPurchaseID {
		s.nextPurchaseID = p.ID
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = p.CreatedAt
	s.Purchases[p.ID] = p
	return p
}

// Fail makes every following call of method return err.
func (s *Store) Fail(method string, err error) {
	s.failures[method] = err
}

func (s *Store) EntryValue(id int64) decimal.Decimal {
	for _, e := range s.Entries {
		if e.ID == id {
			return e.Value
		}
	}
	return decimal.Zero
}

func (s *Store) Called(method string) bool {
	for _, c := range s.Calls {
		if c == method {
			return true
		}
	}
	return false
}

func (s *Store) call(method string) error {
	s.Calls = append(s.Calls, method)
	return s.failures[method]
}

type snapshot struct {
	users         map[int64]model.User
	options       map[int64]model.CopytradeOption
	entries       []model.PortfolioEntry
	purchases     map[int64]model.Purchase
	audit         []model.AuditEntry
	notifications []model.Notification
	nextID        int64
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		users:         make(map[int64]model.User, len(s.Users)),
		options:       make(map[int64]model.CopytradeOption, len(s.Options)),
		entries:       append([]model.PortfolioEntry(nil), s.Entries...),
		purchases:     make(map[int64]model.Purchase, len(s.Purchases)),
		audit:         append([]model.AuditEntry(nil), s.Audit...),
		notifications: append([]model.Notification(nil), s.Notifications...),
		nextID:        s.nextPurchaseID,
	}
	for k, v := range s.Users {
		snap.users[k] = v
	}
	for k, v := range s.Options {
		snap.options[k] = v
	}
	for k, v := range s.Purchases {
		snap.purchases[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.Users = snap.users
	s.Options = snap.options
	s.Entries = snap.entries
	s.Purchases = snap.purchases
	s.Audit = snap.audit
	s.Notifications = snap.notifications
	s.nextPurchaseID = snap.nextID
}

func (s *Store) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return tFunc(ctx)
	}

	snap := s.snapshot()
	if err := tFunc(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		s.Rollbacks++
		return err
	}
	s.Commits++
	return nil
}

func (s *Store) GetUser(_ context.Context, userID int64) (model.User, error) {
	if err := s.call("GetUser"); err != nil {
		return model.User{}, err
	}
	user, ok := s.Users[userID]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (s *Store) LockUser(_ context.Context, userID int64) (model.User, error) {
	if err := s.call("LockUser"); err != nil {
		return model.User{}, err
	}
	user, ok := s.Users[userID]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (s *Store) GetOption(_ context.Context, optionID int64) (model.CopytradeOption, error) {
	if err := s.call("GetOption"); err != nil {
		return model.CopytradeOption{}, err
	}
	option, ok := s.Options[optionID]
	if !ok {
		return model.CopytradeOption{}, repository.ErrNotFound
	}
	return option, nil
}

func (s *Store) GetOptions(_ context.Context) ([]model.CopytradeOption, error) {
	if err := s.call("GetOptions"); err != nil {
		return nil, err
	}
	options := make([]model.CopytradeOption, 0, len(s.Options))
	for _, o := range s.Options {
		options = append(options, o)
	}
	sort.Slice(options, func(i, j int) bool { return options[i].ID < options[j].ID })
	return options, nil
}

func (s *Store) UpdateOptionsStats(_ context.Context, stats []model.OptionStats) error {
	if err := s.call("UpdateOptionsStats"); err != nil {
		return err
	}
	for _, st := range stats {
		option, ok := s.Options[st.OptionID]
		if !ok {
			continue
		}
		option.ProfitPercent = st.ProfitPercent
		option.WinRate = st.WinRate
		s.Options[st.OptionID] = option
	}
	return nil
}

func (s *Store) userEntries(userID int64) []model.PortfolioEntry {
	entries := make([]model.PortfolioEntry, 0)
	for _, e := range s.Entries {
		if e.UserID == userID {
			entries = append(entries, e)
		}
	}
	return entries
}

func (s *Store) GetPortfolioEntries(_ context.Context, userID int64) ([]model.PortfolioEntry, error) {
	if err := s.call("GetPortfolioEntries"); err != nil {
		return nil, err
	}
	return s.userEntries(userID), nil
}

func (s *Store) GetPortfolioEntriesForUpdate(_ context.Context, userID int64) ([]model.PortfolioEntry, error) {
	if err := s.call("GetPortfolioEntriesForUpdate"); err != nil {
		return nil, err
	}
	return s.userEntries(userID), nil
}

func (s *Store) DeductFromEntry(_ context.Context, entryID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := s.call("DeductFromEntry"); err != nil {
		return decimal.Zero, err
	}
	for i, e := range s.Entries {
		if e.ID != entryID {
			continue
		}
		if e.Value.LessThan(amount) {
			return decimal.Zero, repository.ErrEntryValueTooLow
		}
		s.Entries[i].Value = e.Value.Sub(amount)
		return s.Entries[i].Value, nil
	}
	return decimal.Zero, repository.ErrEntryValueTooLow
}

func (s *Store) GetPortfolioValue(_ context.Context, userID int64) (decimal.Decimal, error) {
	if err := s.call("GetPortfolioValue"); err != nil {
		return decimal.Zero, err
	}
	return model.SumEntries(s.userEntries(userID)), nil
}

func (s *Store) InsertPurchase(_ context.Context, purchase model.Purchase) (model.Purchase, error) {
	if err := s.call("InsertPurchase"); err != nil {
		return model.Purchase{}, err
	}
	purchase.ID = 0
	purchase.CreatedAt = time.Time{}
	return s.AddPurchase(purchase), nil
}

func (s *Store) GetPurchase(_ context.Context, purchaseID int64) (model.Purchase, error) {
	if err := s.call("GetPurchase"); err != nil {
		return model.Purchase{}, err
	}
	p, ok := s.Purchases[purchaseID]
	if !ok {
		return model.Purchase{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetPurchaseForUpdate(_ context.Context, purchaseID int64) (model.Purchase, error) {
	if err := s.call("GetPurchaseForUpdate"); err != nil {
		return model.Purchase{}, err
	}
	p, ok := s.Purchases[purchaseID]
	if !ok {
		return model.Purchase{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *Store) SetPurchaseStatus(_ context.Context, purchaseID int64, status model.PurchaseStatus, meta *model.ApprovalMeta) (model.Purchase, error) {
	if err := s.call("SetPurchaseStatus"); err != nil {
		return model.Purchase{}, err
	}
	p, ok := s.Purchases[purchaseID]
	if !ok {
		return model.Purchase{}, repository.ErrNotFound
	}
	if p.Status == model.PurchaseStatusActive {
		return model.Purchase{}, repository.ErrStatusLocked
	}
	p.Status = status
	if meta != nil {
		approvedBy, approvedAt := meta.ApprovedBy, meta.ApprovedAt
		p.ApprovedBy = &approvedBy
		p.ApprovedAt = &approvedAt
	}
	p.UpdatedAt = time.Now()
	s.Purchases[purchaseID] = p
	return p, nil
}

func (s *Store) UpdatePurchaseMetrics(_ context.Context, purchaseID int64, changes model.PurchaseChanges) (model.Purchase, error) {
	if err := s.call("UpdatePurchaseMetrics"); err != nil {
		return model.Purchase{}, err
	}
	p, ok := s.Purchases[purchaseID]
	if !ok {
		return model.Purchase{}, repository.ErrNotFound
	}
	if changes.EndDate != nil && p.Status == model.PurchaseStatusActive {
		return model.Purchase{}, repository.ErrStatusLocked
	}
	if changes.CurrentValue != nil {
		p.CurrentValue = *changes.CurrentValue
	}
	if changes.ProfitLoss != nil {
		p.ProfitLoss = *changes.ProfitLoss
	}
	if changes.WinRate != nil {
		p.WinRate = *changes.WinRate
	}
	if changes.EndDate != nil {
		endDate := *changes.EndDate
		p.EndDate = &endDate
	}
	p.UpdatedAt = time.Now()
	s.Purchases[purchaseID] = p
	return p, nil
}

func (s *Store) DeletePurchase(_ context.Context, purchaseID int64) error {
	if err := s.call("DeletePurchase"); err != nil {
		return err
	}
	if _, ok := s.Purchases[purchaseID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.Purchases, purchaseID)
	return nil
}

func (s *Store) sortedPurchases(keep func(model.Purchase) bool) []model.Purchase {
	purchases := make([]model.Purchase, 0, len(s.Purchases))
	for _, p := range s.Purchases {
		if keep(p) {
			purchases = append(purchases, p)
		}
	}
	sort.Slice(purchases, func(i, j int) bool { return purchases[i].ID < purchases[j].ID })
	return purchases
}

func (s *Store) GetPurchases(_ context.Context, filter model.PurchaseFilter, limit, offset int) ([]model.Purchase, bool, error) {
	if err := s.call("GetPurchases"); err != nil {
		return nil, false, err
	}
	all := s.sortedPurchases(func(p model.Purchase) bool {
		if filter.UserID != nil && p.UserID != *filter.UserID {
			return false
		}
		if filter.Status != nil && p.Status != *filter.Status {
			return false
		}
		return true
	})

	// как в postgres: от новых к старым
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	if offset >= len(all) {
		return []model.Purchase{}, false, nil
	}
	all = all[offset:]
	if len(all) > limit {
		return all[:limit], true, nil
	}
	return all, false, nil
}

func (s *Store) GetActivePurchases(_ context.Context) ([]model.Purchase, error) {
	if err := s.call("GetActivePurchases"); err != nil {
		return nil, err
	}
	return s.sortedPurchases(func(p model.Purchase) bool { return p.Status == model.PurchaseStatusActive }), nil
}

func (s *Store) GetPurchasesCreatedSince(_ context.Context, since time.Time) ([]model.Purchase, error) {
	if err := s.call("GetPurchasesCreatedSince"); err != nil {
		return nil, err
	}
	return s.sortedPurchases(func(p model.Purchase) bool { return !p.CreatedAt.Before(since) }), nil
}

func (s *Store) InsertAuditLog(_ context.Context, entry model.AuditEntry) error {
	if err := s.call("InsertAuditLog"); err != nil {
		return err
	}
	for _, e := range s.Audit {
		if entry.IdempotencyKey != "" && e.IdempotencyKey == entry.IdempotencyKey {
			return nil
		}
	}
	s.Audit = append(s.Audit, entry)
	return nil
}

func (s *Store) InsertNotification(_ context.Context, notification model.Notification) error {
	if err := s.call("InsertNotification"); err != nil {
		return err
	}
	s.Notifications = append(s.Notifications, notification)
	return nil
}

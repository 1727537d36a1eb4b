package app

import (
	"context"
	"fmt"

	"backoffice/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// UserSession is the identity handed back to the adapter after login.
type UserSession struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type appService struct {
	pool      *pgxpool.Pool
	users     core.UserService
	catalog   core.CatalogService
	bundles   core.BundleService
	receipts  core.ReceiptService
	cogs      core.COGSService
	reporting core.ReportingService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	users core.UserService,
	catalog core.CatalogService,
	bundles core.BundleService,
	receipts core.ReceiptService,
	cogs core.COGSService,
	reporting core.ReportingService,
) ApplicationService {
	return &appService{
		pool:      pool,
		users:     users,
		catalog:   catalog,
		bundles:   bundles,
		receipts:  receipts,
		cogs:      cogs,
		reporting: reporting,
	}
}

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("authentication failed: invalid password")
	}
	return &UserSession{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int) (*core.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *appService) ListItems(ctx context.Context) ([]core.InventoryItem, error) {
	return s.catalog.ListItems(ctx)
}

func (s *appService) CreateItem(ctx context.Context, actor core.ActorContext, req CreateItemRequest) (*core.InventoryItem, error) {
	return s.catalog.CreateItem(ctx, actor, req.SKU, req.Name, req.IsBundle)
}

func (s *appService) RecordOpeningBalance(ctx context.Context, actor core.ActorContext, req OpeningBalanceRequest) (int64, error) {
	return s.receipts.RecordOpeningBalance(ctx, actor, req.SKU, req.Qty, req.UnitCost, req.Date)
}

func (s *appService) RecordPurchaseReceipt(ctx context.Context, actor core.ActorContext, req PurchaseReceiptRequest) (int64, error) {
	return s.receipts.RecordPurchaseReceipt(ctx, actor, req.SKU, req.Qty, req.UnitCost, req.ReceivedAt, req.RefID)
}

func (s *appService) GetReceiptLayers(ctx context.Context, sku string) ([]core.ReceiptLayer, error) {
	return s.receipts.GetLayers(ctx, sku)
}

func (s *appService) GetCostSnapshot(ctx context.Context, sku, date string) (*core.CostSnapshot, error) {
	return s.receipts.GetSnapshot(ctx, sku, date)
}

func (s *appService) UpsertBundleRecipe(ctx context.Context, actor core.ActorContext, req UpsertRecipeRequest) error {
	components := make([]core.BundleComponent, len(req.Components))
	for i, c := range req.Components {
		components[i] = core.BundleComponent{
			BundleSKU:       req.BundleSKU,
			ComponentSKU:    c.ComponentSKU,
			QuantityPerUnit: c.QuantityPerUnit,
		}
	}
	return s.bundles.UpsertRecipe(ctx, actor, req.BundleSKU, components)
}

func (s *appService) GetBundleComponents(ctx context.Context, bundleSKU string) ([]core.BundleComponent, error) {
	return s.bundles.GetComponents(ctx, bundleSKU)
}

func (s *appService) ApplyCOGSForOrderShipped(ctx context.Context, actor core.ActorContext, req core.ApplyCOGSRequest) (*core.ApplyResult, error) {
	return s.cogs.ApplyCOGS(ctx, actor, req)
}

func (s *appService) ApplyReturnReverseCOGS(ctx context.Context, actor core.ActorContext, req core.ReverseCOGSRequest) error {
	return s.cogs.ApplyReturnReverseCOGS(ctx, actor, req)
}

func (s *appService) GetOrderAllocations(ctx context.Context, orderID string) ([]core.COGSAllocation, error) {
	return s.cogs.GetAllocationsForOrder(ctx, orderID)
}

func (s *appService) ComputeDailyCOGS(ctx context.Context, date string) (*core.DailyCOGS, error) {
	return s.reporting.ComputeDailyCOGS(ctx, date)
}

func (s *appService) GetDailyCOGSBreakdown(ctx context.Context, date string) ([]core.SKUDailyCOGS, error) {
	return s.reporting.GetCOGSBreakdown(ctx, date)
}

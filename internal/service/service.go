package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rasapos/backend/internal/cache"
	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/events"
	"rasapos/backend/internal/registry"
	"rasapos/backend/internal/store"
)

var (
	ErrForbidden        = errors.New("admin role required")
	ErrMalformedBackup  = errors.New("malformed backup")
	ErrShiftAlreadyOpen = errors.New("shift already open")
	ErrNoOpenShift      = errors.New("no open shift")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	CatalogTTL time.Duration
	Now        func() time.Time
}

type Service struct {
	repo       store.Repository
	orders     *registry.Registry
	catalog    cache.CatalogCache
	publisher  events.Publisher
	logger     zerolog.Logger
	catalogTTL time.Duration
	now        func() time.Time
}

func New(repo store.Repository, orders *registry.Registry, catalog cache.CatalogCache, publisher events.Publisher, logger zerolog.Logger, opts Options) *Service {
	if catalog == nil {
		catalog = cache.NoopCatalogCache{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if opts.CatalogTTL <= 0 {
		opts.CatalogTTL = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:       repo,
		orders:     orders,
		catalog:    catalog,
		publisher:  publisher,
		logger:     logger.With().Str("component", "service").Logger(),
		catalogTTL: opts.CatalogTTL,
		now:        opts.Now,
	}
}

// LoadTables registers a dine-in order for every stored table.
func (s *Service) LoadTables(ctx context.Context) error {
	tables, err := s.repo.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("load tables: %w", err)
	}
	s.orders.LoadTables(tables)
	return nil
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	cached, hit, err := s.catalog.GetProducts(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache read failed")
	} else if hit {
		return cached, nil
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.SetProducts(ctx, products, s.catalogTTL); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache write failed")
	}
	return products, nil
}

// SaveProduct creates a product when ID is empty and replaces it otherwise.
func (s *Service) SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	product.Name = strings.TrimSpace(product.Name)
	product.NameAlt = strings.TrimSpace(product.NameAlt)
	product.Barcode = strings.TrimSpace(product.Barcode)
	if product.Name == "" || product.PriceCents < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}
	if product.ID != "" {
		if _, err := s.repo.GetProduct(ctx, product.ID); err != nil {
			return domain.Product{}, err
		}
	} else {
		product.Active = true
	}
	if product.RecipeID != "" {
		if _, err := s.repo.GetRecipe(ctx, product.RecipeID); err != nil {
			return domain.Product{}, fmt.Errorf("recipe %s: %w", product.RecipeID, store.ErrInvalidInput)
		}
	}
	if product.Barcode != "" {
		existing, err := s.repo.GetProductByBarcode(ctx, product.Barcode)
		if err == nil && existing.ID != product.ID {
			return domain.Product{}, fmt.Errorf("barcode %s already used: %w", product.Barcode, store.ErrConflict)
		}
	}

	saved, err := s.repo.SaveProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidateCatalog(ctx)
	return *saved, nil
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.catalog.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidate failed")
	}
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) SaveCategory(ctx context.Context, category domain.Category) (domain.Category, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}
	category.Name = strings.TrimSpace(category.Name)
	saved, err := s.repo.SaveCategory(ctx, category)
	if err != nil {
		return domain.Category{}, err
	}
	s.invalidateCatalog(ctx)
	return *saved, nil
}

func (s *Service) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	return s.repo.ListRecipes(ctx)
}

func (s *Service) SaveRecipe(ctx context.Context, recipe domain.Recipe) (domain.Recipe, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Recipe{}, err
	}
	recipe.Name = strings.TrimSpace(recipe.Name)
	for _, ing := range recipe.Ingredients {
		if _, err := s.repo.GetRawMaterial(ctx, ing.RawMaterialID); err != nil {
			return domain.Recipe{}, fmt.Errorf("raw material %s: %w", ing.RawMaterialID, store.ErrInvalidInput)
		}
	}
	saved, err := s.repo.SaveRecipe(ctx, recipe)
	if err != nil {
		return domain.Recipe{}, err
	}
	return *saved, nil
}

func (s *Service) ListRawMaterials(ctx context.Context) ([]domain.RawMaterial, error) {
	return s.repo.ListRawMaterials(ctx)
}

func (s *Service) SaveRawMaterial(ctx context.Context, material domain.RawMaterial) (domain.RawMaterial, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.RawMaterial{}, err
	}
	material.Name = strings.TrimSpace(material.Name)
	material.Unit = strings.TrimSpace(material.Unit)
	if material.MinStock < 0 || material.CostCents < 0 {
		return domain.RawMaterial{}, store.ErrInvalidInput
	}
	saved, err := s.repo.SaveRawMaterial(ctx, material)
	if err != nil {
		return domain.RawMaterial{}, err
	}
	return *saved, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) SaveCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.Address = strings.TrimSpace(customer.Address)
	saved, err := s.repo.SaveCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) ListDeliveryReps(ctx context.Context) ([]domain.DeliveryRep, error) {
	return s.repo.ListDeliveryReps(ctx)
}

func (s *Service) SaveDeliveryRep(ctx context.Context, rep domain.DeliveryRep) (domain.DeliveryRep, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.DeliveryRep{}, err
	}
	rep.Name = strings.TrimSpace(rep.Name)
	rep.Phone = strings.TrimSpace(rep.Phone)
	saved, err := s.repo.SaveDeliveryRep(ctx, rep)
	if err != nil {
		return domain.DeliveryRep{}, err
	}
	return *saved, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) SaveSupplier(ctx context.Context, supplier domain.Supplier) (domain.Supplier, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Supplier{}, err
	}
	supplier.Name = strings.TrimSpace(supplier.Name)
	supplier.Phone = strings.TrimSpace(supplier.Phone)
	saved, err := s.repo.SaveSupplier(ctx, supplier)
	if err != nil {
		return domain.Supplier{}, err
	}
	return *saved, nil
}

func (s *Service) ListTables(ctx context.Context) ([]domain.Table, error) {
	return s.repo.ListTables(ctx)
}

// SaveTable stores a table and registers its dine-in order.
func (s *Service) SaveTable(ctx context.Context, table domain.Table) (domain.Table, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Table{}, err
	}
	table.Name = strings.TrimSpace(table.Name)
	saved, err := s.repo.SaveTable(ctx, table)
	if err != nil {
		return domain.Table{}, err
	}
	if err := s.LoadTables(ctx); err != nil {
		return domain.Table{}, err
	}
	return *saved, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	return s.repo.GetSettings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.Settings, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Settings{}, err
	}
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}

	if req.StoreName != nil {
		settings.StoreName = strings.TrimSpace(*req.StoreName)
	}
	if req.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*req.Currency))
		if len(currency) != 3 {
			return domain.Settings{}, store.ErrInvalidInput
		}
		settings.Currency = currency
	}
	if req.DeliveryFeeCents != nil {
		if *req.DeliveryFeeCents < 0 {
			return domain.Settings{}, store.ErrInvalidInput
		}
		settings.DeliveryFeeCents = *req.DeliveryFeeCents
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return domain.Settings{}, store.ErrInvalidInput
		}
		settings.LowStockThreshold = *req.LowStockThreshold
	}

	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

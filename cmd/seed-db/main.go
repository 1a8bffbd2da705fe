package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type catalogJSON struct {
	Categories []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"categories"`
	Products []struct {
		Name            string          `json:"name"`
		Description     string          `json:"description"`
		Price           decimal.Decimal `json:"price"`
		Stock           int             `json:"stock"`
		Category        string          `json:"category"`
		ImageURL        string          `json:"imageUrl"`
		Featured        bool            `json:"featured"`
		DiscountPercent int             `json:"discountPercent"`
	} `json:"products"`
}

type adminAccount struct {
	username string
	email    string
	password string
	address  string
}

func main() {
	var (
		databaseURL string
		catalogFile string
		admin       adminAccount
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&admin.username, "admin-username", "admin", "admin account username")
	flag.StringVar(&admin.email, "admin-email", "admin@example.com", "admin account email")
	flag.StringVar(&admin.password, "admin-password", "", "admin account password (or SHOP_SEED_ADMIN_PASSWORD env)")
	flag.StringVar(&admin.address, "admin-address", "Back office", "admin account address")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if admin.password == "" {
		admin.password = os.Getenv("SHOP_SEED_ADMIN_PASSWORD")
	}
	if admin.password == "" {
		slog.Error("admin password is required: set --admin-password or SHOP_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, admin); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string, admin adminAccount) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if err := seedAdmin(ctx, pool, admin); err != nil {
		return errors.Wrap(err, "seed admin")
	}

	return nil
}

// seedID derives a stable id from a name so reseeding updates rows in place.
func seedID(kind, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("shop:"+kind+":"+name)).String()
}

func seedCatalog(ctx context.Context, db postgres.DB, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	categories := postgres.NewCategoryRepository(db)
	for _, c := range catalog.Categories {
		err := categories.Create(ctx, &product.Category{
			ID:          seedID("category", c.Name),
			Name:        c.Name,
			Description: c.Description,
		})
		switch {
		case errors.Is(err, product.ErrCategoryExists):
			slog.Info("category exists", slog.String("name", c.Name))
		case err != nil:
			return errors.Wrapf(err, "create category %s", c.Name)
		default:
			slog.Info("created category", slog.String("name", c.Name))
		}
	}

	existing, err := categories.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list categories")
	}
	categoryIDs := make(map[string]string, len(existing))
	for _, c := range existing {
		categoryIDs[c.Name] = c.ID
	}

	slog.Info("upserting products", slog.Int("count", len(catalog.Products)))

	products := postgres.NewProductRepository(db)
	for _, p := range catalog.Products {
		categoryID, ok := categoryIDs[p.Category]
		if !ok {
			return errors.Errorf("product %q references unknown category %q", p.Name, p.Category)
		}
		prod := &product.Product{
			ID:              seedID("product", p.Name),
			Name:            p.Name,
			Description:     p.Description,
			Price:           p.Price.Round(2),
			Stock:           p.Stock,
			CategoryID:      categoryID,
			ImageURL:        p.ImageURL,
			Featured:        p.Featured,
			DiscountPercent: p.DiscountPercent,
		}

		err := products.Update(ctx, prod)
		if errors.Is(err, product.ErrNotFound) {
			err = products.Create(ctx, prod)
		}
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Name)
		}

		slog.Info("upserted product", slog.String("id", prod.ID), slog.String("name", prod.Name))
	}

	return nil
}

func seedAdmin(ctx context.Context, db postgres.DB, admin adminAccount) error {
	slog.Info("seeding admin account", slog.String("username", admin.username))

	repo := postgres.NewUserRepository(db)
	u, err := repo.GetByLogin(ctx, admin.username)
	switch {
	case errors.Is(err, user.ErrNotFound):
		u, err = user.NewService(repo, 0).Register(ctx, user.Registration{
			Username:        admin.username,
			Email:           admin.email,
			Password:        admin.password,
			ConfirmPassword: admin.password,
			Address:         admin.address,
		})
		if err != nil {
			return errors.Wrap(err, "register admin")
		}
	case err != nil:
		return errors.Wrap(err, "get admin")
	}

	if u.IsAdmin {
		slog.Info("admin account exists", slog.String("id", u.ID))
		return nil
	}
	if err := repo.SetAdmin(ctx, u.ID, true); err != nil {
		return errors.Wrap(err, "grant admin")
	}

	slog.Info("granted admin", slog.String("id", u.ID), slog.String("username", u.Username))

	return nil
}

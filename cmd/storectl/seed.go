package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/app"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/catalog"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/config"
)

// SeedFile is a store and its products, as written in a catalog YAML file.
type SeedFile struct {
	Store    catalog.Store     `yaml:"store"`
	Products []catalog.Product `yaml:"products"`
}

// CatalogWriter upserts stores and products.
type CatalogWriter interface {
	PutStore(ctx context.Context, st catalog.Store) error
	PutProduct(ctx context.Context, p catalog.Product) error
}

func loadSeedFile(path string) (*SeedFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if f.Store.ID <= 0 {
		return nil, errors.New("seed file: store.id must be positive")
	}
	if f.Store.Name == "" {
		return nil, errors.New("seed file: store.name is required")
	}
	seen := map[int64]bool{}
	for i, p := range f.Products {
		if p.ID <= 0 || p.Name == "" {
			return nil, fmt.Errorf("seed file: products[%d] needs an id and a name", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("seed file: duplicate product id %d", p.ID)
		}
		seen[p.ID] = true
		price, err := decimal.NewFromString(p.Price)
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("seed file: products[%d] has invalid price %q", i, p.Price)
		}
	}
	return &f, nil
}

// seedCatalog writes the store, then every product under it.
func seedCatalog(ctx context.Context, w CatalogWriter, f *SeedFile) error {
	if err := w.PutStore(ctx, f.Store); err != nil {
		return fmt.Errorf("put store %d: %w", f.Store.ID, err)
	}
	for _, p := range f.Products {
		p.StoreID = f.Store.ID
		if err := w.PutProduct(ctx, p); err != nil {
			return fmt.Errorf("put product %d: %w", p.ID, err)
		}
	}
	return nil
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert a store and its products from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadSeedFile(file)
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Storage.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			var dynamo aws.DynamoDBAPI
			if cfg.Storage.Driver == app.DriverDynamo {
				clients, err := aws.NewAWSClients(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
				if err != nil {
					return fmt.Errorf("init aws clients: %w", err)
				}
				dynamo = clients.DynamoDB
			}
			stores, err := app.OpenStores(ctx, cfg.Storage, dynamo)
			if err != nil {
				return err
			}
			defer stores.Close()

			if err := seedCatalog(ctx, stores.Catalog, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded store %d (%s) with %d products into %s\n",
				f.Store.ID, f.Store.Name, len(f.Products), cfg.Storage.Driver)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Catalog YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// Command marketctl is the operator CLI for the API marketplace database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"

	"github.com/apimarket/marketplace/internal/cli"
	"github.com/apimarket/marketplace/internal/repository"
	"github.com/apimarket/marketplace/internal/service"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	zl, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()
	logger := slog.New(zapslog.NewHandler(zl.Core()))

	root := cli.NewRootCmd(version, func(ctx context.Context, databaseURL string) (*cli.Backend, error) {
		repo, err := repository.New(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return &cli.Backend{
			Catalog: service.NewListingService(repo, repo, nil, nil, logger, nil),
			Sales:   service.NewSalesService(repo),
			Close:   repo.Close,
		}, nil
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

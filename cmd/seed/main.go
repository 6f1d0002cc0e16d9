// Command seed fills a development database with a couple of users,
// products and orders for manual testing.
package main

import (
	"context"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/shop-service-go/internal/config"
	"github.com/andreasstove999/shop-service-go/internal/db"
	"github.com/andreasstove999/shop-service-go/internal/obs"
	"github.com/andreasstove999/shop-service-go/internal/order"
	"github.com/andreasstove999/shop-service-go/internal/product"
	"github.com/andreasstove999/shop-service-go/internal/user"
)

func main() {
	cfg := config.Load()
	logger := obs.InitLogger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
		logger.Error("db migrate", "error", err)
		os.Exit(1)
	}

	userRepo := user.NewPostgresRepository(pool)
	productRepo := product.NewPostgresRepository(pool)
	orderRepo := order.NewPostgresRepository(pool)
	orderService := order.NewService(orderRepo, nil, cfg.OrderTxTimeout, logger)

	alice := &user.User{Name: "Alice Silva", Email: "alice@example.com"}
	bob := &user.User{Name: "Bob Souza", Email: "bob@example.com"}
	for _, u := range []*user.User{alice, bob} {
		if err := userRepo.Create(ctx, u); err != nil {
			logger.Error("seed user", "email", u.Email, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("users created")

	notebook := &product.Product{Name: "Notebook Pro", Price: decimal.RequireFromString("3500.00"), Stock: 10}
	mouse := &product.Product{Name: "Mouse Wireless", Price: decimal.RequireFromString("150.00"), Stock: 25}
	keyboard := &product.Product{Name: "Teclado Mecânico", Price: decimal.RequireFromString("450.00"), Stock: 5}
	for _, p := range []*product.Product{notebook, mouse, keyboard} {
		if err := productRepo.Create(ctx, p); err != nil {
			logger.Error("seed product", "name", p.Name, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("products created")

	orders := []order.CreateRequest{
		{
			UserID: alice.ID,
			Items: []order.ItemRequest{
				{ProductID: notebook.ID, Quantity: 1},
				{ProductID: mouse.ID, Quantity: 1},
			},
		},
		{
			UserID: bob.ID,
			Items: []order.ItemRequest{
				{ProductID: mouse.ID, Quantity: 2},
				{ProductID: keyboard.ID, Quantity: 1},
			},
		},
	}
	for _, req := range orders {
		o, err := orderService.Create(ctx, req)
		if err != nil {
			logger.Error("seed order", "userId", req.UserID, "error", err)
			os.Exit(1)
		}
		logger.Info("order created", "orderId", o.ID, "total", o.TotalAmount.String())
	}

	logger.Info("seed complete")
}

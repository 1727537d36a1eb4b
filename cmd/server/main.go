package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "backoffice/internal/adapters/web"
	"backoffice/internal/app"
	"backoffice/internal/core"
	"backoffice/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	userService := core.NewUserService(pool)
	catalogService := core.NewCatalogService(pool)
	bundleService := core.NewBundleService(pool)
	receiptService := core.NewReceiptService(pool)
	cogsService := core.NewCOGSService(pool, catalogService, bundleService)
	reportingService := core.NewReportingService(pool)

	svc := app.NewAppService(pool, userService, catalogService, bundleService, receiptService, cogsService, reportingService)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Println("Warning: JWT_SECRET is not set, using insecure default")
		jwtSecret = "dev-secret-change-me"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins, jwtSecret)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}

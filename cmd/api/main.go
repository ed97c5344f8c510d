package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-provisioning-api/internal/config"
	"github.com/go-provisioning-api/internal/infrastructure/dynamo"
	"github.com/go-provisioning-api/internal/infrastructure/matrix"
	pginfra "github.com/go-provisioning-api/internal/infrastructure/postgres"
	"github.com/go-provisioning-api/internal/infrastructure/recaptcha"
	"github.com/go-provisioning-api/internal/infrastructure/smtp"
	transporthttp "github.com/go-provisioning-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// Relational provisioner — the pool connects lazily on first redemption.
	provisioner := pginfra.NewProvisioner(cfg)
	defer provisioner.Close()

	deps := &transporthttp.Deps{
		Requests:       dynamo.NewRequestRepo(dynamoClient, cfg.DynamoTables.Requests),
		MatrixRequests: dynamo.NewRequestRepo(dynamoClient, cfg.DynamoTables.MatrixRequests),
		Accounts:       dynamo.NewAccountRepo(dynamoClient, cfg.DynamoTables.Accounts),
		Verifier:       recaptcha.NewClient(cfg.RecaptchaSecret),
		Mailer:         smtp.NewMailer(cfg),
		DB:             provisioner,
		Registrar:      matrix.NewRegistrar(cfg.MatrixRegisterURL, cfg.MatrixSharedSecret),
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

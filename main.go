package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/NavalEP/carechat-engine/database"
	"github.com/NavalEP/carechat-engine/internal/config"
	"github.com/NavalEP/carechat-engine/internal/handlers"
	"github.com/NavalEP/carechat-engine/internal/jobs"
	"github.com/NavalEP/carechat-engine/internal/routes"
	"github.com/NavalEP/carechat-engine/internal/services"
	"github.com/NavalEP/carechat-engine/internal/storage"
)

func main() {
	cfg := config.Load()

	// Assemble the three storage slots: a persistent primary, an optional
	// persistent backup and the always-present ephemeral slot. Reads repair
	// slots that fell out of sync.
	primary := buildPrimaryStore(cfg)
	backup := buildBackupStore(cfg)
	store := storage.NewRedundantStore(primary, backup, storage.NewMemoryStore())
	storage.SetStore(store)
	log.Printf("Storage: primary=%s backup=%s", cfg.StorageDriver, cfg.BackupDriver)

	// Upstream client. The token func reads from the vault so the re-auth
	// job can rotate tokens without touching the client.
	vault := services.NewTokenVault(store)
	api := services.NewCarePayClient(cfg.CarePayBaseURL, vault.Token)

	smsService, err := services.NewSMSService()
	if err != nil {
		log.Printf("SMS disabled: %v", err)
		smsService = nil
	}

	otpService := services.NewOTPService(store, smsService)
	selections := services.NewSelectionTracker(store)
	machine := services.NewSessionMachine(store, api, selections)
	services.SetSessionMachine(machine)
	links := services.NewShortLinkCache(api)
	treatments := services.NewTreatmentSearchService(api)

	watchdog := jobs.NewAuthWatchdog(vault, api, cfg.MachineUsername, cfg.MachinePassword)
	watchdog.Start()

	app := fiber.New(fiber.Config{
		AppName: "CareChat Engine v" + cfg.Version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	authHandler := handlers.NewAuthHandler(otpService, machine)
	chatHandler := handlers.NewChatHandler(machine, selections, links, treatments, api)
	healthHandler := handlers.NewHealthHandler(cfg.Version)
	routes.SetupRoutes(app, authHandler, chatHandler, healthHandler)

	// Graceful shutdown.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		watchdog.Stop()
		_ = app.Shutdown()
		_ = store.Close()
	}()

	log.Printf("CareChat Engine starting on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}

// buildPrimaryStore selects the persistent primary slot by configuration.
// Anything that fails to come up degrades to memory so the process still
// serves; the health endpoint surfaces the degradation.
func buildPrimaryStore(cfg *config.Config) storage.KeyValue {
	switch cfg.StorageDriver {
	case "memory":
		log.Println("Using in-memory primary storage (not for production!)")
		return storage.NewMemoryStore()
	case "postgres":
		if err := database.Connect(); err != nil {
			log.Printf("Postgres unavailable, falling back to memory: %v", err)
			return storage.NewMemoryStore()
		}
		store, err := storage.NewDatabaseStore(database.DB)
		if err != nil {
			log.Printf("Postgres storage init failed, falling back to memory: %v", err)
			return storage.NewMemoryStore()
		}
		return store
	default:
		return storage.NewFileStore(cfg.StoragePath)
	}
}

// buildBackupStore returns the optional second persistent slot, or nil.
func buildBackupStore(cfg *config.Config) storage.KeyValue {
	if cfg.BackupDriver != "redis" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("Invalid REDIS_URL, skipping backup slot: %v", err)
		return nil
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unreachable, skipping backup slot: %v", err)
		return nil
	}
	store, err := storage.NewRedisStore(client, 30*24*time.Hour)
	if err != nil {
		log.Printf("Redis storage init failed, skipping backup slot: %v", err)
		return nil
	}
	return store
}

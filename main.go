package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"attendance-backend/chain"
	"attendance-backend/config"
	"attendance-backend/handlers"
	"attendance-backend/logger"
	"attendance-backend/luma"
	"attendance-backend/orchestrator"
	"attendance-backend/storage"
	"attendance-backend/wallet"
)

func connectToDatabase(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	logger.Info("successfully connected to the database")
	return pool, nil
}

func connectToEthereum(rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum client: %w", err)
	}

	logger.Info("successfully connected to Ethereum node at %s", rpcURL)
	return client, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration: %v", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		logger.Fatal("failed to configure logger: %v", err)
	}
	logger.SetDefault(log)
	defer logger.Sync()

	ctx := context.Background()

	pool, err := connectToDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := storage.Migrate(ctx, pool); err != nil {
		logger.Fatal("failed to apply schema: %v", err)
	}

	ethClient, err := connectToEthereum(cfg.RPCURL)
	if err != nil {
		logger.Fatal("unable to connect to Ethereum node: %v", err)
	}
	defer ethClient.Close()

	// The gateway verifies the admin key's mint authorization before the
	// service accepts any check-ins. An unauthorized key is fatal here.
	gateway, err := chain.NewGateway(ctx, ethClient, cfg.ContractAddress, cfg.AdminPrivateKey, cfg.ChainID, cfg.MintWaitTimeout)
	if err != nil {
		logger.Fatal("unable to initialize minting gateway: %v", err)
	}

	eventRepo := storage.NewEventRepository(pool)
	walletRepo := storage.NewWalletRepository(pool)
	ledger := storage.NewMintLedger(pool)

	lumaClient := luma.NewClient(cfg.LumaAPIURL, cfg.LumaAPIKey)
	resolver := wallet.NewResolver(walletRepo)
	pipeline := orchestrator.New(eventRepo, lumaClient, resolver, ledger, gateway)

	checkinHandler := handlers.NewCheckinHandler(pipeline, cfg.LumaWebhookSecret)
	eventHandler := handlers.NewEventHandler(eventRepo)
	mintHandler := handlers.NewMintHandler(ledger, eventRepo)

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:3000", "http://localhost:3001", "http://localhost:3002"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Check-in entry points
	router.POST("/webhook/check-in", checkinHandler.Webhook)
	router.POST("/manual-check-in", handlers.RequireAdmin(cfg.JWTSecret), checkinHandler.ManualCheckIn)

	api := router.Group("/api/v1")
	{
		// Admin event CRUD
		admin := api.Group("/events", handlers.RequireAdmin(cfg.JWTSecret))
		{
			admin.POST("", eventHandler.CreateEvent)
			admin.PUT("/:id", eventHandler.UpdateEvent)
			admin.DELETE("/:id", eventHandler.DeleteEvent)
		}

		api.GET("/events", eventHandler.GetEvents)
		api.GET("/events/:id", eventHandler.GetEvent)
		api.GET("/events/:id/mints", mintHandler.GetEventMints)
		api.GET("/events/:id/stats", mintHandler.GetEventStats)
		api.GET("/mints", mintHandler.GetAttendeeMints)

		// Health check route
		api.GET("/test-db", func(c *gin.Context) {
			if err := pool.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Database connection failed: " + err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "Database connection OK"})
		})
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
		})
	})

	logger.Info("server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("failed to start server: %v", err)
	}
}

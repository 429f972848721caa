package main

import (
	"context"
	"log"
	"os"
	"time"

	_ "costcompass/api/swagger" // swagger docs
	"costcompass/internal/database"
	"costcompass/internal/events"
	"costcompass/internal/handler"
	"costcompass/internal/middleware"
	"costcompass/internal/permission"
	"costcompass/internal/repository"
	"costcompass/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Cost Compass API
// @version         1.0
// @description     Multi-property food and beverage cost management with role and property scoped access control.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "costcompass"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// Notification bus
	bus := events.NewBus()
	go bus.Run()
	defer bus.Shutdown()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	propertyRepo := repository.NewPropertyRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	costRepo := repository.NewCostRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	tm := repository.NewTransactionManager(db)

	// Permission evaluator with its process-local cache
	cache := permission.NewCache()
	store := repository.NewPermissionStore(permRepo, userRepo, propertyRepo)
	eval := permission.NewEvaluator(store, cache)

	// Services
	auditService := service.NewAuditService(auditRepo)
	rolePermService := service.NewRolePermissionService(permRepo, tm, cache, bus, auditService)
	authService := service.NewAuthService(userRepo, tokenRepo, propertyRepo, eval)
	userService := service.NewUserService(userRepo, permRepo, tokenRepo, tm, cache, bus, auditService)
	propertyService := service.NewPropertyService(propertyRepo, userRepo, tm, eval, bus, auditService)
	costService := service.NewCostService(costRepo, tm, eval, auditService)
	templateService := service.NewTemplateService(templateRepo, rolePermService, propertyService, eval, tm, bus, auditService)

	// Seed the permission catalog and the default role matrix. Roles that
	// already have rows keep their admin overrides.
	if err := rolePermService.SeedDefaults(context.Background()); err != nil {
		log.Fatalf("Permission seeding failed: %v", err)
	}

	mw := middleware.New(eval)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, mw)
	userHandler := handler.NewUserHandler(userService, mw)
	roleHandler := handler.NewRoleHandler(rolePermService, mw)
	propertyHandler := handler.NewPropertyHandler(propertyService, mw)
	costHandler := handler.NewCostHandler(costService, mw)
	auditHandler := handler.NewAuditHandler(auditService, mw)
	cacheHandler := handler.NewCacheHandler(eval, mw)
	eventsHandler := handler.NewEventsHandler(bus, mw)
	templateHandler := handler.NewTemplateHandler(templateService, mw)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// Register API Routes
	authHandler.RegisterRoutes(router.Group(""))
	userHandler.RegisterRoutes(router.Group(""))
	roleHandler.RegisterRoutes(router.Group(""))
	propertyHandler.RegisterRoutes(router.Group(""))
	costHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))
	cacheHandler.RegisterRoutes(router.Group(""))
	eventsHandler.RegisterRoutes(router.Group(""))
	templateHandler.RegisterRoutes(router.Group(""))

	// Hourly sweep of expired access rows and refresh tokens. Queries
	// already exclude expired rows; this reclaims the storage.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := propertyService.SweepExpiredAccess(context.Background()); err != nil {
				log.Printf("Expired access sweep failed: %v", err)
			}
			if _, err := tokenRepo.DeleteExpired(context.Background(), time.Now()); err != nil {
				log.Printf("Expired token sweep failed: %v", err)
			}
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

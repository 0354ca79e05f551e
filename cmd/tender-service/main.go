package main

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/sealedbid/tender-service/internal/app"
	"github.com/sealedbid/tender-service/internal/config"
	"github.com/sealedbid/tender-service/internal/constants"
	"github.com/sealedbid/tender-service/internal/controllers"
	"github.com/sealedbid/tender-service/internal/keyexchange"
	"github.com/sealedbid/tender-service/internal/middleware"
	"github.com/sealedbid/tender-service/internal/migrations"
	"github.com/sealedbid/tender-service/internal/models"
	"github.com/sealedbid/tender-service/internal/repositories"
	"github.com/sealedbid/tender-service/internal/routes"
	"github.com/sealedbid/tender-service/internal/services"
	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/sealedbid/tender-service/internal/vault"
)

func main() {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()

	if err := migrations.Up(context.Background(), cfg.DBUrl); err != nil {
		utils.Logger.Fatal("Failed to apply migrations:", err)
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize the application:", err)
	}
	defer application.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(application.DB)
	tenderRepo := repositories.NewTenderRepository(application.DB)
	bidRepo := repositories.NewBidRepository(application.DB)
	auditRepo := application.AuditLogRepository()
	docStore := application.DocumentStore()
	challengeStore := application.ChallengeStore()

	if cfg.LDFlag_SeedDbWithTestData {
		if err := app.SeedTestData(userRepo, tenderRepo); err != nil {
			utils.Logger.Fatal("Failed to seed test data:", err)
		}
	}

	// Crypto
	group, err := keyexchange.GroupByName(cfg.DHGroup)
	if err != nil {
		utils.Logger.Fatal("Invalid DH group:", err)
	}
	agreement, err := keyexchange.Initialize(group, nil)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize key agreement:", err)
	}
	bidVault, err := vault.NewBidVault(cfg.BidMasterKey)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize bid vault:", err)
	}

	// Services
	auditService := services.NewAuditService(auditRepo)
	otpService := services.NewOTPService(challengeStore, buildNotifier(cfg))
	jwtService := services.NewJWTService(cfg.RSAPrivateKey, cfg.TokenExpiry)
	authService := services.NewAuthService(userRepo, otpService, jwtService, auditService, cfg.PrivilegedRegistrationCode)
	awardService := services.NewAwardService(tenderRepo, bidRepo, bidVault, auditService)
	tenderService := services.NewTenderService(tenderRepo, awardService, auditService)
	bidService := services.NewBidService(agreement, bidVault, tenderRepo, bidRepo, userRepo, docStore, otpService, auditService)
	paymentService := services.NewPaymentService(cfg, tenderRepo, bidRepo, bidVault, auditService)

	// Controllers
	healthController := controllers.NewHealthController(application)
	authController := controllers.NewAuthController(authService, agreement)
	tenderController := controllers.NewTenderController(tenderService)
	bidController := controllers.NewBidController(bidService)
	auditLogController := controllers.NewAuditLogController(auditService)
	paymentController := controllers.NewPaymentController(paymentService)

	// Award sweep
	c := cron.New()
	if cfg.LDFlag_AwardSweepEnabled {
		_, schErr := c.AddFunc(constants.AwardSweepCronSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), constants.AwardSweepTimeout)
			defer cancel()
			results, err := awardService.AdvanceExpiredTenders(ctx)
			if err != nil {
				utils.Logger.WithError(err).Error("Scheduled award sweep failed")
				return
			}
			if len(results) > 0 {
				utils.Logger.Infof("Award sweep closed %d tender(s)", len(results))
			}
		})
		if schErr != nil {
			utils.Logger.WithError(schErr).Fatal("Failed to schedule award sweep")
		}
	}
	c.Start()
	defer c.Stop()

	// Router
	router := mux.NewRouter()

	router.HandleFunc(routes.Health, healthController.HealthCheckHandler).Methods(http.MethodGet)

	// Public auth
	router.HandleFunc(routes.AuthRegister, authController.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc(routes.AuthLogin, authController.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc(routes.AuthVerifyLogin, authController.VerifyLoginHandler).Methods(http.MethodPost)
	router.HandleFunc(routes.AuthDHKey, authController.DHKeyHandler).Methods(http.MethodGet)

	// Stripe webhook
	router.HandleFunc(routes.StripeWebhook, paymentController.StripeWebhookHandler).Methods(http.MethodPost)

	// Protected routes (JWT middleware)
	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.AuthMiddleware(cfg.RSAPublicKey))

	secured.HandleFunc(routes.Tenders, tenderController.ListTendersHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.Bids, bidController.ListBidsHandler).Methods(http.MethodGet)

	officer := secured.NewRoute().Subrouter()
	officer.Use(middleware.RequireRole(models.RoleOfficer))
	officer.HandleFunc(routes.Tenders, tenderController.CreateTenderHandler).Methods(http.MethodPost)
	officer.HandleFunc(routes.TenderClose, tenderController.CloseTenderHandler).Methods(http.MethodPost)
	officer.HandleFunc(routes.BidRequestUnseal, bidController.RequestUnsealOTPHandler).Methods(http.MethodPost)
	officer.HandleFunc(routes.BidUnseal, bidController.UnsealBidHandler).Methods(http.MethodPost)
	officer.HandleFunc(routes.BidReseal, bidController.ResealBidHandler).Methods(http.MethodPost)

	contractor := secured.NewRoute().Subrouter()
	contractor.Use(middleware.RequireRole(models.RoleContractor))
	contractor.HandleFunc(routes.Bids, bidController.SubmitBidHandler).Methods(http.MethodPost)
	contractor.HandleFunc(routes.PaymentOrders, paymentController.CreateOrderHandler).Methods(http.MethodPost)

	oversight := secured.NewRoute().Subrouter()
	oversight.Use(middleware.RequireRole(models.RoleOfficer, models.RoleAuditor))
	oversight.HandleFunc(routes.AuditLogs, auditLogController.ListAuditLogsHandler).Methods(http.MethodGet)

	allowedOrigins := []string{cfg.AppUrl}
	if !cfg.LDFlag_CORSHighSecurity {
		allowedOrigins = append(allowedOrigins, constants.CORSLowSecurityAllowedOriginLocalhost)
	}

	// CORS config
	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
	if err := http.ListenAndServe(":"+cfg.AppPort, co.Handler(router)); err != nil {
		utils.Logger.Fatal("Failed to start server:", err)
	}
}

// buildNotifier fans codes out to every configured provider. With none
// configured, codes are only logged.
func buildNotifier(cfg *config.Config) services.Notifier {
	var ns []services.Notifier
	if cfg.SendGridAPIKey != "" {
		ns = append(ns, services.NewEmailNotifier(cfg.SendGridAPIKey, cfg.AppName, cfg.SendGridFromEmail, cfg.LDFlag_SendgridSandboxMode))
	}
	if cfg.TwilioAccountSID != "" {
		ns = append(ns, services.NewSMSNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromPhone))
	}
	if len(ns) == 0 {
		utils.Logger.Warn("No email or SMS provider configured; verification codes are logged only")
		return services.NewLogNotifier()
	}
	return services.NewMultiNotifier(ns...)
}

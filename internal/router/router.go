package router

import (
	"database/sql"
	"net/http"

	"digibank/internal/config"
	"digibank/internal/handlers"
	"digibank/internal/ledger"
	"digibank/internal/middleware"
	"digibank/internal/models"
	"digibank/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func SetupRouter(db *sql.DB, cfg *config.Config, logger zerolog.Logger) *mux.Router {
	ledgerService := ledger.NewService(db, logger)
	accountService := services.NewAccountService(db, logger, cfg.DefaultCurrency)
	authService := services.NewAuthService(cfg.JWTSecret, logger)
	transactionService := services.NewTransactionService(db, logger)
	kycService := services.NewKycService(db, logger)
	cardService := services.NewCardService(db, logger)
	supportService := services.NewSupportService(db, logger)

	authHandler := handlers.NewAuthHandler(accountService, authService, logger)
	accountHandler := handlers.NewAccountHandler(accountService, logger)
	transferHandler := handlers.NewTransferHandler(ledgerService, accountService, logger)
	transactionHandler := handlers.NewTransactionHandler(transactionService, logger)
	kycHandler := handlers.NewKycHandler(kycService, logger)
	cardHandler := handlers.NewCardHandler(cardService, logger)
	supportHandler := handlers.NewSupportHandler(supportService, logger)
	adminHandler := handlers.NewAdminHandler(accountService, transactionService, ledgerService, logger)

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)

	r.Use(middleware.ErrorHandling(logger))
	r.Use(middleware.PerformanceMonitoring(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(rateLimiter.Middleware())

	api := r.PathPrefix("/api/v1").Subrouter()

	authenticated := middleware.Authentication(authService, logger)
	adminOnly := middleware.RequireRole(string(models.RoleAdmin))

	auth := api.PathPrefix("/auth").Subrouter()
	auth.Use(middleware.RequestValidation())
	auth.HandleFunc("/register", authHandler.Register).Methods("POST")
	auth.HandleFunc("/login", authHandler.Login).Methods("POST")

	authProtected := api.PathPrefix("/auth").Subrouter()
	authProtected.Use(authenticated)
	authProtected.HandleFunc("/refresh", authHandler.Refresh).Methods("POST")

	me := api.PathPrefix("/me").Subrouter()
	me.Use(authenticated)
	me.HandleFunc("", authHandler.Me).Methods("GET")

	accounts := api.PathPrefix("/accounts").Subrouter()
	accounts.Use(authenticated)
	accounts.HandleFunc("/details", accountHandler.GetAccountDetails).Methods("GET")
	accounts.HandleFunc("/recipients/{accountNumber}", accountHandler.GetRecipient).Methods("GET")

	transfers := api.PathPrefix("/transfers").Subrouter()
	transfers.Use(authenticated)
	transfers.Use(middleware.RequestValidation())
	transfers.HandleFunc("", transferHandler.Transfer).Methods("POST")
	transfers.HandleFunc("/{reference}", transferHandler.GetTransferByReference).Methods("GET")

	transactions := api.PathPrefix("/transactions").Subrouter()
	transactions.Use(authenticated)
	transactions.HandleFunc("", transactionHandler.GetTransactions).Methods("GET")
	transactions.HandleFunc("/{id}", transactionHandler.GetTransaction).Methods("GET")

	kyc := api.PathPrefix("/kyc").Subrouter()
	kyc.Use(authenticated)
	kyc.HandleFunc("", kycHandler.Submit).Methods("POST")
	kyc.HandleFunc("/status", kycHandler.GetStatus).Methods("GET")

	cards := api.PathPrefix("/cards").Subrouter()
	cards.Use(authenticated)
	cards.HandleFunc("/products", cardHandler.ListProducts).Methods("GET")
	cards.HandleFunc("", cardHandler.RequestCard).Methods("POST")
	cards.HandleFunc("", cardHandler.ListMyCards).Methods("GET")
	cards.HandleFunc("/{id}/confirm-payment", cardHandler.ConfirmPayment).Methods("POST")

	support := api.PathPrefix("/support").Subrouter()
	support.Use(authenticated)
	support.HandleFunc("/chats", supportHandler.CreateChat).Methods("POST")
	support.HandleFunc("/chats", supportHandler.ListMyChats).Methods("GET")
	support.HandleFunc("/chats/{id}", supportHandler.GetChat).Methods("GET")
	support.HandleFunc("/chats/{id}/messages", supportHandler.SendMessage).Methods("POST")
	support.HandleFunc("/chats/{id}/read", supportHandler.MarkRead).Methods("POST")
	support.HandleFunc("/unread-count", supportHandler.UnreadCount).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authenticated)
	admin.Use(adminOnly)
	admin.HandleFunc("/users", adminHandler.ListUsers).Methods("GET")
	admin.HandleFunc("/users", adminHandler.CreateUser).Methods("POST")
	admin.HandleFunc("/users/{id}", adminHandler.GetUser).Methods("GET")
	admin.HandleFunc("/users/{id}/transactions", adminHandler.GetUserTransactions).Methods("GET")
	admin.HandleFunc("/users/{id}/role", adminHandler.UpdateUserRole).Methods("PUT")
	admin.HandleFunc("/users/{id}/ban", adminHandler.BanUser).Methods("POST")
	admin.HandleFunc("/users/{id}/unban", adminHandler.UnbanUser).Methods("POST")
	admin.HandleFunc("/balances/adjust", adminHandler.AdjustBalance).Methods("POST")
	admin.HandleFunc("/kyc", kycHandler.List).Methods("GET")
	admin.HandleFunc("/kyc/{id}/approve", kycHandler.Approve).Methods("POST")
	admin.HandleFunc("/kyc/{id}/reject", kycHandler.Reject).Methods("POST")
	admin.HandleFunc("/cards", cardHandler.ListRequests).Methods("GET")
	admin.HandleFunc("/cards/{id}/approve", cardHandler.Approve).Methods("POST")
	admin.HandleFunc("/cards/{id}/reject", cardHandler.Reject).Methods("POST")
	admin.HandleFunc("/cards/{id}/issue", cardHandler.Issue).Methods("POST")
	admin.HandleFunc("/cards/{id}/activate", cardHandler.Activate).Methods("POST")
	admin.HandleFunc("/cards/{id}/suspend", cardHandler.Suspend).Methods("POST")
	admin.HandleFunc("/card-products", cardHandler.CreateProduct).Methods("POST")
	admin.HandleFunc("/card-products/seed", cardHandler.SeedProducts).Methods("POST")
	admin.HandleFunc("/card-products/{id}", cardHandler.UpdateProduct).Methods("PUT")
	admin.HandleFunc("/card-products/{id}", cardHandler.DeleteProduct).Methods("DELETE")
	admin.HandleFunc("/support/chats", supportHandler.ListAllChats).Methods("GET")
	admin.HandleFunc("/support/chats/{id}/status", supportHandler.UpdateChatStatus).Methods("PUT")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}

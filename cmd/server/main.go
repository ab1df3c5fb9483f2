package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/jonathanbodnar/shoutout/internal/adapter/handler"
	"github.com/jonathanbodnar/shoutout/internal/adapter/notify"
	"github.com/jonathanbodnar/shoutout/internal/adapter/processor"
	"github.com/jonathanbodnar/shoutout/internal/adapter/storage"
	"github.com/jonathanbodnar/shoutout/internal/config"
	"github.com/jonathanbodnar/shoutout/internal/core/service"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil {
		log.Warn("could not load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	log.Info("starting shoutout settlement service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// golang-migrate wants the driver scheme on the DSN.
	migrationDSN := "mysql://" + strings.TrimPrefix(cfg.MySQLDSN, "mysql://")
	m, err := migrate.New(cfg.MigrationsPath, migrationDSN)
	if err != nil {
		log.WithError(err).Fatal("could not create migration instance")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.WithError(err).Fatal("could not apply migrations")
	}
	log.Info("database migrations applied")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.WithError(err).Fatal("failed to open mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		log.WithError(err).Fatal("failed to ping mysql")
	}
	log.Info("connected to mysql")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("failed to connect redis")
	}
	log.Info("connected to redis")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	processorClient := processor.NewClient(cfg.ProcessorBaseURL, cfg.ProcessorAPIKey, cfg.ProcessorTimeout)
	emailSender := notify.NewSMTPEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	smsSender := notify.NewHTTPSMSSender(cfg.SMSGatewayURL, cfg.SMSGatewayToken, cfg.SMSTimeout)

	fanout := service.NewNotificationFanout(mysqlAdapter, emailSender, smsSender, mysqlAdapter)
	ledger := service.NewOrderLedger(mysqlAdapter, redisAdapter)
	settlement := service.NewSettlementCoordinator(ledger, processorClient, mysqlAdapter, fanout).
		WithRefundTimeout(cfg.ProcessorTimeout)

	newAttempt := func() *service.CheckoutAttempt {
		return service.NewCheckoutAttempt(processorClient,
			service.WithWatchdogTimeout(cfg.CheckoutWatchdog),
			service.WithVerifyTimeout(cfg.VerifyTimeout),
		)
	}

	httpHandler := handler.NewHTTPHandler(ledger, settlement, newAttempt)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info("HTTP server stopped")

	// Let in-flight notification deliveries finish.
	fanout.Wait()
	log.Info("notification fanout drained")

	rdb.Close()
	db.Close()
	log.Info("connections closed")
}

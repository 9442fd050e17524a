package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth/password"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/auth/token"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/media"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/session"
	sessionrepo "github.com/ovaphlow/pitchfork/service-account-go/internal/session/repo"
	subrepo "github.com/ovaphlow/pitchfork/service-account-go/internal/subscriber/repo"
	"github.com/ovaphlow/pitchfork/service-account-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-account-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-account-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-account-go/pkg/utilities"
)

func main() {
	// best-effort: without a .env file the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-account-go")

	tokenCfg := token.ConfigFromEnv()
	tokens, err := token.NewManager(&tokenCfg)
	if err != nil {
		sugar.Fatalf("token config: %v", err)
	}

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db.DB); err != nil {
		sugar.Fatalf("db migrate: %v", err)
	}

	uploader, err := media.NewS3Uploader(ctx, media.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("media: %v", err)
	}

	cost, _ := strconv.Atoi(os.Getenv("BCRYPT_COST"))
	hasher := password.NewHasher(cost)
	m := metrics.New()
	users := userrepo.NewUserRepo(db)

	sessionSvc := session.NewSessionService(users, sessionrepo.NewRefreshRepo(db), tokens, hasher, sugar, m)
	userSvc := user.NewUserService(users, subrepo.NewSubscriberRepo(db), uploader, hasher, sugar)

	handler := router.RegisterRoutes(router.Deps{
		Logger:   sugar,
		Tokens:   tokens,
		Metrics:  m,
		Users:    user.NewHandler(userSvc, sugar),
		Sessions: session.NewHandler(sessionSvc, session.CookieConfigFromEnv(tokenCfg), sugar),
		Health:   db.PingContext,
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

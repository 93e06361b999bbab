package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contractflow/contractflow/internal/auth"
	"github.com/contractflow/contractflow/internal/httpapi"
	"github.com/contractflow/contractflow/internal/logger"
	"github.com/contractflow/contractflow/internal/notify"
	"github.com/contractflow/contractflow/internal/render"
	"github.com/contractflow/contractflow/internal/service"
	"github.com/contractflow/contractflow/internal/store"
	memorystore "github.com/contractflow/contractflow/internal/store/memory"
	postgresstore "github.com/contractflow/contractflow/internal/store/postgres"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8000" env:"CONTRACTFLOW_LISTEN"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"*" env:"CONTRACTFLOW_CORS_ORIGINS"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"CONTRACTFLOW_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`

	// Token configuration
	Auth AuthFlags `embed:"" prefix:"auth-"`

	// Redis token blacklist, falls back to in-memory when unset
	RedisURL string `help:"Redis URL for the token blacklist" default:"" env:"CONTRACTFLOW_REDIS_URL"`

	// Outbound mail, notifications are dropped when no host is configured
	Mail MailFlags `embed:"" prefix:"mail-"`

	// Document rendering
	Render RenderFlags `embed:"" prefix:"render-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"CONTRACTFLOW_POSTGRES_AUTO_MIGRATE"`
}

type AuthFlags struct {
	JWTSecret  string        `help:"secret key for HMAC signing of access and refresh tokens" env:"CONTRACTFLOW_JWT_SECRET"`
	AccessTTL  time.Duration `help:"access token lifetime" default:"30m" env:"CONTRACTFLOW_ACCESS_TTL"`
	RefreshTTL time.Duration `help:"refresh token lifetime" default:"168h" env:"CONTRACTFLOW_REFRESH_TTL"`
}

func (a *AuthFlags) Validate() error {
	if a.JWTSecret == "" {
		return errors.New("JWT secret is required (--auth-jwt-secret or CONTRACTFLOW_JWT_SECRET)")
	}
	if len(a.JWTSecret) < 32 {
		return errors.New("JWT secret must be at least 32 bytes (256 bits) for HMAC-SHA256")
	}
	return nil
}

type MailFlags struct {
	Host     string `help:"SMTP host, leave empty to disable outbound mail" default:"" env:"CONTRACTFLOW_MAIL_HOST"`
	Port     int    `help:"SMTP port" default:"587" env:"CONTRACTFLOW_MAIL_PORT"`
	Username string `help:"SMTP username" default:"" env:"CONTRACTFLOW_MAIL_USERNAME"`
	Password string `help:"SMTP password" default:"" env:"CONTRACTFLOW_MAIL_PASSWORD"`
	From     string `help:"sender address for outbound mail" default:"noreply@contractflow.local" env:"CONTRACTFLOW_MAIL_FROM"`
	BaseURL  string `help:"frontend base URL used in mail links" default:"http://localhost:3000" env:"CONTRACTFLOW_MAIL_BASE_URL"`
}

type RenderFlags struct {
	PDFDir         string `help:"directory for generated PDF files" default:"exports" env:"CONTRACTFLOW_PDF_DIR"`
	TemplateDir    string `help:"directory with custom document templates, empty uses the built-in layout" default:"" env:"CONTRACTFLOW_TEMPLATE_DIR"`
	WkhtmltopdfBin string `help:"path to the wkhtmltopdf binary" default:"wkhtmltopdf" env:"CONTRACTFLOW_WKHTMLTOPDF_BIN"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Create stores based on store type
	var (
		userStore         store.UserStore
		organizationStore store.OrganizationStore
		invitationStore   store.InvitationStore
		contractStore     store.ContractStore
	)

	switch c.StoreType {
	case "postgres":
		// Create shared connection pool for all PostgreSQL stores
		poolCfg := &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		userStore = postgresstore.NewUserStore(pool)
		organizationStore = postgresstore.NewOrganizationStore(pool)
		invitationStore = postgresstore.NewInvitationStore(pool)
		contractStore = postgresstore.NewContractStore(pool)

		log.Info().Msg("Using PostgreSQL stores with shared connection pool")

	default:
		userStore = memorystore.NewUserStore()
		organizationStore = memorystore.NewOrganizationStore()
		invitationStore = memorystore.NewInvitationStore()
		contractStore = memorystore.NewContractStore()
		log.Info().Msg("Using in-memory stores")
	}

	// Token issuer and blacklist
	tokens, err := auth.NewTokenIssuer(c.Auth.JWTSecret, c.Auth.AccessTTL, c.Auth.RefreshTTL)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	var blacklist auth.Blacklist
	if c.RedisURL != "" {
		redisBlacklist, err := auth.NewRedisBlacklist(ctx, c.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisBlacklist.Close()
		blacklist = redisBlacklist
		log.Info().Msg("Using Redis token blacklist")
	} else {
		blacklist = auth.NewMemoryBlacklist()
		log.Warn().Msg("Using in-memory token blacklist, revocations are lost on restart")
	}

	// Outbound mail
	var notifier notify.Notifier
	if c.Mail.Host != "" {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     c.Mail.Host,
			Port:     c.Mail.Port,
			Username: c.Mail.Username,
			Password: c.Mail.Password,
			From:     c.Mail.From,
			BaseURL:  c.Mail.BaseURL,
		})
		log.Info().Str("host", c.Mail.Host).Msg("Using SMTP notifier")
	} else {
		notifier = notify.Discard{}
		log.Warn().Msg("No SMTP host configured, outbound mail is disabled")
	}

	dispatcher := notify.NewDispatcher(notifier)
	defer dispatcher.Stop()

	// Document rendering
	if err := os.MkdirAll(c.Render.PDFDir, 0o755); err != nil {
		return fmt.Errorf("failed to create PDF directory: %w", err)
	}
	htmlRenderer, err := render.NewHTMLRenderer(c.Render.TemplateDir)
	if err != nil {
		return fmt.Errorf("failed to load document templates: %w", err)
	}
	rasterizer := render.NewWKHTMLToPDF(c.Render.WkhtmltopdfBin)
	renderService := render.NewService(contractStore, userStore, organizationStore, htmlRenderer, rasterizer, c.Render.PDFDir)
	catalog := render.NewCatalog()

	// Services
	authService := service.NewAuthService(userStore, organizationStore, tokens, blacklist, dispatcher)
	orgService := service.NewOrganizationService(organizationStore, userStore, invitationStore, contractStore, dispatcher)
	contractService := service.NewContractService(contractStore, organizationStore, userStore, dispatcher)

	router := httpapi.NewRouter(httpapi.Deps{
		Auth:           httpapi.NewAuthHandler(authService),
		Orgs:           httpapi.NewOrgHandler(orgService),
		Contracts:      httpapi.NewContractHandler(contractService, renderService, catalog),
		Templates:      httpapi.NewTemplateHandler(catalog),
		TokenIssuer:    tokens,
		Blacklist:      blacklist,
		AllowedOrigins: c.CORSOrigins,
	})

	server := configureHTTPServer(c.Listen, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", c.Listen).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/moumitha43-ops/MAILER/internal/analytics"
	"github.com/moumitha43-ops/MAILER/internal/api"
	"github.com/moumitha43-ops/MAILER/internal/config"
	"github.com/moumitha43-ops/MAILER/internal/dispatch"
	"github.com/moumitha43-ops/MAILER/internal/domain"
	"github.com/moumitha43-ops/MAILER/internal/jobstate"
	"github.com/moumitha43-ops/MAILER/internal/ledger"
	"github.com/moumitha43-ops/MAILER/internal/mailer"
	"github.com/moumitha43-ops/MAILER/internal/match"
	"github.com/moumitha43-ops/MAILER/internal/metrics"
	"github.com/moumitha43-ops/MAILER/internal/render"
	"github.com/moumitha43-ops/MAILER/internal/roster"
	"github.com/moumitha43-ops/MAILER/internal/scheduler"
	"github.com/moumitha43-ops/MAILER/internal/store/postgres"

	_ "github.com/lib/pq"
)

// rosterMatcher binds the matching engine to the configured roster file,
// reporting per-pass counts to the metrics sink.
type rosterMatcher struct {
	engine  *match.Engine
	path    string
	metrics metrics.Sink
}

func (r *rosterMatcher) Match() (domain.MatchResult, error) {
	result, err := r.engine.Match(roster.NewCSVSource(r.path))
	if err == nil {
		r.metrics.MatchRunCompleted(len(result.Matches), len(result.Skipped), result.TotalRows)
	}
	return result, err
}

func (r *rosterMatcher) Validate() (domain.ValidationReport, error) {
	return r.engine.Validate(roster.NewCSVSource(r.path))
}

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`mailer - birthday roster matching and dispatch service

Usage:
  mailer <command>

Commands:
  serve      Start the HTTP API and the daily send trigger
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  HTTP_ADDR                 HTTP server address (default: ":8080")
  TIMEZONE                  IANA timezone for birthday matching (default: "UTC")
  ROSTER_PATH               Roster CSV file (default: "data.csv")
  TEMPLATE_PATH             Card template HTML file (default: "template.html")
  OUTPUT_DIR                Rendered card output directory (default: "output")
  LEDGER_PATH               Same-day duplicate ledger file (default: "sent_today.log")

  SEND_TIME                 Daily send time HH:MM local (default: "08:00")
  AUTO_SEND                 Enable the daily trigger (default: "false")
  ADMIN_EMAIL               Operator address for run summaries (optional)

  MAILER_TRANSPORT          "smtp", "elastic" or "ses" (default: "smtp")
  SMTP_HOST                 SMTP server hostname
  SMTP_PORT                 SMTP server port (default: "587")
  SENDER_EMAIL              SMTP sender address
  SENDER_APP_PASSWORD       SMTP app password
  ELASTIC_API_URL           ElasticEmail API URL (default: v4 endpoint)
  ELASTIC_API_KEY           ElasticEmail API key
  ELASTIC_FROM              ElasticEmail sender address
  SES_FROM_EMAIL            SES sender address (AWS creds from environment)

  MAX_RETRIES               Delivery attempts per recipient (default: "3")
  RETRY_BACKOFF_UNIT        Exponential backoff unit (default: "1s")
  RATE_LIMIT_PER_SECOND     Delivery attempts per second, 0 = unlimited
  MAIL_TIMEOUT              Per-delivery transport timeout (default: "20s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_ADDR              Metrics server address (default: ":9090")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")

  REDIS_ADDR                Redis address for outcome analytics (optional)
  DATABASE_URL              PostgreSQL URL for delivery history (optional)
  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")`)
}

func buildMailer(cfg config.Config) (mailer.Mailer, error) {
	switch cfg.Transport {
	case config.TransportSMTP:
		return mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SenderEmail, cfg.SenderAppPassword), nil
	case config.TransportElastic:
		return mailer.NewElasticMailer(cfg.ElasticAPIURL, cfg.ElasticAPIKey, cfg.ElasticFrom).
			WithTimeout(cfg.MailTimeout), nil
	case config.TransportSES:
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return mailer.NewSESMailer(awsCfg, cfg.SESFrom)
	default:
		return nil, fmt.Errorf("unknown mailer transport %q", cfg.Transport)
	}
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load timezone: %v\n", err)
		return exitInvalidConfig
	}

	sender, err := buildMailer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build mailer: %v\n", err)
		return exitRuntimeError
	}
	log.Printf("mailer: transport=%s timezone=%s roster=%s", cfg.Transport, cfg.Timezone, cfg.RosterPath)

	// Initialize metrics sink (optional)
	var metricsSink metrics.Sink = metrics.NewNoopSink()
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("mailer: metrics enabled (addr=%s, path=%s)", cfg.MetricsAddr, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("mailer: metrics server listening on %s", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("mailer: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("mailer: METRICS_ENABLED not set; metrics disabled")
	}

	engine := match.New(loc)
	matcher := &rosterMatcher{
		engine:  engine,
		path:    cfg.RosterPath,
		metrics: metricsSink,
	}

	state := jobstate.New()
	sentLedger := ledger.NewFileLedger(cfg.LedgerPath, loc)
	renderer := render.NewCardRenderer(cfg.OutputDir)
	templates := render.NewTemplateFile(cfg.TemplatePath)

	coordinator := dispatch.New(state, sentLedger, renderer, sender).
		WithMaxRetries(cfg.MaxRetries).
		WithBackoffUnit(cfg.RetryBackoffUnit).
		WithRateLimit(cfg.RateLimitPerSecond).
		WithMetrics(metricsSink)

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		coordinator = coordinator.WithAnalytics(analytics.NewRedisSink(redisClient, loc))
		log.Printf("mailer: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("mailer: REDIS_ADDR not set; analytics disabled")
	}

	apiHandler := api.NewHandler(matcher, coordinator, state, templates, cfg, loc).
		WithRosterStore(roster.NewFileStore(cfg.RosterPath, engine))

	// Wire delivery history if Postgres is configured
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			return exitRuntimeError
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
			return exitRuntimeError
		}

		history := postgres.New(db)
		schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 10*time.Second)
		if err := history.EnsureSchema(schemaCtx); err != nil {
			cancelSchema()
			fmt.Fprintf(os.Stderr, "failed to ensure schema: %v\n", err)
			return exitRuntimeError
		}
		cancelSchema()

		coordinator = coordinator.WithHistory(history)
		apiHandler = apiHandler.WithHistory(history).WithHealthChecker(db)
		log.Println("mailer: delivery history enabled (postgres)")
	} else {
		log.Println("mailer: DATABASE_URL not set; delivery history disabled")
	}

	// Start the daily trigger if enabled
	var daily *scheduler.Daily
	if cfg.AutoSend {
		daily, err = scheduler.New(cfg.SendTime, loc, matcher, coordinator, templates)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to build scheduler: %v\n", err)
			return exitInvalidConfig
		}
		if cfg.AdminEmail != "" {
			daily = daily.WithNotifier(scheduler.NewMailNotifier(sender, cfg.AdminEmail))
		}
		if err := daily.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start scheduler: %v\n", err)
			return exitRuntimeError
		}
		apiHandler = apiHandler.WithScheduler(daily)
	} else {
		log.Println("mailer: AUTO_SEND not set; daily trigger disabled")
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}

	go func() {
		log.Printf("mailer: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("mailer: http server error: %v", err)
		}
	}()

	log.Printf("mailer: started (http=%s, send_time=%s)", cfg.HTTPAddr, cfg.SendTime)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("mailer: received signal %v, shutting down", received)

	// Phase 1: Stop the daily trigger (no new runs start)
	if daily != nil {
		log.Println("mailer: stopping scheduler...")
		daily.Stop()
	}

	// Phase 2: Let an in-flight dispatch run finish. Runs are short; bail
	// out after one shutdown timeout rather than hanging forever.
	if state.Snapshot().Running {
		log.Println("mailer: waiting for in-flight dispatch run...")
		deadline := time.Now().Add(cfg.HTTPShutdownTimeout)
		for state.Snapshot().Running && time.Now().Before(deadline) {
			time.Sleep(100 * time.Millisecond)
		}
		if state.Snapshot().Running {
			log.Println("mailer: dispatch run still in flight, abandoning wait")
		}
	}

	// Phase 3: Stop HTTP server with graceful shutdown
	log.Println("mailer: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("mailer: http server shutdown error: %v", err)
	}
	log.Println("mailer: http server stopped")

	// Phase 4: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("mailer: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("mailer: metrics server shutdown error: %v", err)
		}
		log.Println("mailer: metrics server stopped")
	}

	log.Println("mailer: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("mailer version %s (commit: %s)\n", version, commit)
	return exitSuccess
}

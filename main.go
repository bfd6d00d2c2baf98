package main

import (
	"context"
	"embed"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowdash/adapters/postgres"
	"flowdash/adapters/render"
	"flowdash/app"
	"flowdash/internal"
	"flowdash/internal/config"
	"flowdash/internal/errors"
	"flowdash/internal/migration"
	"flowdash/internal/session"
	"flowdash/internal/testkit"
	"flowdash/ports"
	"flowdash/ui"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

//go:embed ui/templates/* ui/static/*
var embeddedFiles embed.FS

// initDatabase connects to the upload history database and migrates it
func initDatabase(ctx context.Context, appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.DatabaseError("failed to ping database", err)
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}
	log.Printf("Database ready (schema %s)", migrator.Version())

	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(appConfig.LogLevel))
	gin.SetMode(appConfig.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Upload history is optional
	var uploads ports.UploadRepository
	if appConfig.Database.Enabled() {
		db, err := initDatabase(ctx, appConfig)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		uploads = postgres.NewUploadRepository(db)
	} else {
		log.Println("DATABASE_URL not set, upload history disabled")
	}

	dashboard := app.NewDashboardService(app.OptionsFromConfig(appConfig.Sankey), render.DefaultRegistry(), uploads)

	sessions := session.NewStore(appConfig.Session.TTL)
	go sessions.RunJanitor(ctx, appConfig.Session.SweepInterval)

	serverOptions := ui.ServerOptions{
		MaxUploadBytes: appConfig.Upload.MaxBytes(),
		SampleRows:     appConfig.Upload.SampleRows,
	}
	if appConfig.Server.Demo {
		data, err := testkit.CSV(testkit.EnergyTable())
		if err != nil {
			log.Fatalf("Failed to build demo data: %v", err)
		}
		serverOptions.DemoFile = &ui.DemoFile{Name: "sample-energy.csv", Data: data}
		log.Println("Demo mode: new sessions start with the sample energy table")
	}

	server, err := ui.NewServer(embeddedFiles, dashboard, sessions, serverOptions)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	// Start pprof server for performance profiling
	if appConfig.Profiling.Enabled {
		go func() {
			log.Printf("Profiling server starting on :%s", appConfig.Profiling.Port)
			if err := http.ListenAndServe(":"+appConfig.Profiling.Port, nil); err != nil {
				log.Printf("pprof server failed: %v", err)
			}
		}()
	}

	log.Printf("Starting flowdash on port %s", appConfig.Server.Port)
	if err := server.Start(ctx, ":"+appConfig.Server.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"cmdb_platform/cmdb/auth"
	"cmdb_platform/cmdb/schema"
	"cmdb_platform/cmdb/services"
	"cmdb_platform/utils/logging"

	env "github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogmulti "github.com/samber/slog-multi"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type cmdbEnv struct {
	DatabaseUri string
	JwtSecret   string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	PublicHostname string
}

// Tunables with sensible defaults, kept separate from the required secrets
// so that a bare dev setup only has to provide cmdbEnv values.
type cmdbTunables struct {
	LogDir         string `env:"CMDB_LOG_DIR" envDefault:"logs"`
	AllowedOrigins string `env:"CMDB_ALLOWED_ORIGINS" envDefault:""`
}

func optionalEnv(key string) string {
	return os.Getenv(key)
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

/**
 * ==========================================================================
 * ==== All variables that are used by the cmdb server are loaded here.  ====
 * ==== This is to make the data flow clear so that a user can see what  ====
 * ==== variables are exposed, and how the values are propagated through ====
 * ==== the system.                                                      ====
 * ==========================================================================
 */
func loadEnv() cmdbEnv {
	missingEnvs := []string{}

	requiredEnv := func(key string) string {
		env := os.Getenv(key)
		if env == "" {
			missingEnvs = append(missingEnvs, key)
			slog.Error("missing required env variable", "key", key)
		}
		return env
	}

	env := cmdbEnv{
		DatabaseUri: requiredEnv("DATABASE_URI"),
		JwtSecret:   requiredEnv("JWT_SECRET"),

		AdminUsername: requiredEnv("ADMIN_USERNAME"),
		AdminEmail:    requiredEnv("ADMIN_MAIL"),
		AdminPassword: requiredEnv("ADMIN_PASSWORD"),

		PublicHostname: optionalEnv("PUBLIC_HOSTNAME"),
	}

	if len(missingEnvs) > 0 {
		log.Fatalf("The following required env vars are missing: %s", strings.Join(missingEnvs, ", "))
	}

	return env
}

func loadTunables() cmdbTunables {
	cfg := cmdbTunables{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing env tunables: %v", err)
	}
	return cfg
}

func (env *cmdbEnv) postgresDsn() string {
	parts, err := url.Parse(env.DatabaseUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initLogging(logFile *os.File) {
	// victoria logs options transform keys like msg and time into victoria log keys _msg and _time
	var jsonHandler slog.Handler = slog.NewJSONHandler(logFile, logging.GetVictoriaLogsOptions(true))

	jsonHandler = jsonHandler.WithAttrs([]slog.Attr{
		slog.String("service_type", "cmdb"),
	})
	textHandler := slog.NewTextHandler(os.Stderr, nil)

	logger := slog.New(slogmulti.Fanout(jsonHandler, textHandler))
	slog.SetDefault(logger)

	slog.Info("logging initialized", "log_file", logFile.Name())
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(schema.AllTables()...)
	if err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")

	port := flag.Int("port", 8000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}
	env := loadEnv()
	tunables := loadTunables()

	err := os.MkdirAll(tunables.LogDir, 0777)
	if err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(tunables.LogDir, "cmdb.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	auditLog, err := os.OpenFile(filepath.Join(tunables.LogDir, "audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLog.Close()

	initLogging(logFile)

	db := initDb(env.postgresDsn())

	identityProvider, err := auth.NewBasicIdentityProvider(
		db,
		auth.NewAuditLogger(auditLog),
		auth.BasicProviderArgs{
			Secret:        []byte(env.JwtSecret),
			AdminUsername: env.AdminUsername,
			AdminEmail:    env.AdminEmail,
			AdminPassword: env.AdminPassword,
		},
	)
	if err != nil {
		log.Fatalf("error creating basic identity provider: %v", err)
	}

	platform := services.NewCmdbPlatform(db, identityProvider)

	allowedOrigins := []string{"*"}
	if tunables.AllowedOrigins != "" {
		allowedOrigins = strings.Split(tunables.AllowedOrigins, ",")
	} else if env.PublicHostname != "" {
		allowedOrigins = []string{env.PublicHostname}
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300, // Cache preflight response for 5 minutes
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api/v1", platform.Routes())

	slog.Info("starting server", "port", *port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", *port), r)
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}

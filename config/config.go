package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Postgres    Postgres
	Redis       Redis
	HTTP        HTTP
	Auth        Auth
	Telegram    Telegram
	API         API
	Cache       Cache
	Jobs        Jobs
	GoogleDrive GoogleDrive
	Pagination  Pagination
}

type Postgres struct {
	Host            string        `env:"PG_HOST"`
	Port            int           `env:"PG_PORT"`
	DbName          string        `env:"PG_DB_NAME"`
	Password        string        `env:"PG_PASSWORD"`
	User            string        `env:"PG_USER"`
	SSLMode         string        `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnAttempts    int           `env:"PG_CONN_ATTEMPTS" envDefault:"10"`
	ConnRetryDelay  time.Duration `env:"PG_CONN_RETRY_DELAY" envDefault:"1s"`
	MigrationDir    string        `env:"PG_MIGRATION_DIR" envDefault:"migrations"`
}

type Redis struct {
	Host        string        `env:"REDIS_HOST"`
	Port        int           `env:"REDIS_PORT"`
	Password    string        `env:"REDIS_PASSWORD" envDefault:""`
	DB          int           `env:"REDIS_DB" envDefault:"0"`
	PingTimeout time.Duration `env:"REDIS_PING_TIMEOUT" envDefault:"5s"`
}

type HTTP struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	GinMode         string        `env:"GIN_MODE" envDefault:"release"`
}

type Auth struct {
	JWTSecret string `env:"AUTH_JWT_SECRET"`
}

type Telegram struct {
	Enabled     bool   `env:"TELEGRAM_ENABLED" envDefault:"false"`
	Token       string `env:"TELEGRAM_TOKEN" envDefault:""`
	AdminChatID int64  `env:"TELEGRAM_ADMIN_CHAT_ID" envDefault:"0"`
}

type API struct {
	Debug        bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout      time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	CopytradeApi CopytradeApi
}

type CopytradeApi struct {
	Url string `env:"COPYTRADE_API_URL"`
}

type Cache struct {
	OptionsExpiration time.Duration `env:"CACHE_OPTIONS_EXPIRATION" envDefault:"30m"`
	FundsExpiration   time.Duration `env:"CACHE_FUNDS_EXPIRATION" envDefault:"5m"`
}

type Jobs struct {
	FillOptionsCacheInterval       time.Duration `env:"FILL_OPTIONS_CACHE_JOB_INTERVAL" envDefault:"15m"`
	RefreshPurchaseMetricsInterval time.Duration `env:"REFRESH_PURCHASE_METRICS_JOB_INTERVAL" envDefault:"1h"`
	PurchasesReportCrontab         string        `env:"PURCHASES_REPORT_JOB_CRONTAB" envDefault:"0 0 3 * * *"`
	JobTimeout                     time.Duration `env:"JOB_TIMEOUT" envDefault:"10m"`
}

type GoogleDrive struct {
	Enabled         bool          `env:"GOOGLE_DRIVE_ENABLED" envDefault:"false"`
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE" envDefault:""`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"720h"`
	FolderID        string        `env:"GOOGLE_DRIVE_FOLDER_ID" envDefault:""`
	Domain          string        `env:"GOOGLE_DRIVE_SHARE_DOMAIN" envDefault:""`
}

type Pagination struct {
	PurchasesPerPage int `env:"PURCHASES_PER_PAGE" envDefault:"20"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}

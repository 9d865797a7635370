package config

import (
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings is the typed view of the process environment.
type Settings struct {
	DBUser                string `env:"DB_USER"`
	DBPassword            string `env:"DB_PASSWORD"`
	DBHost                string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort                string `env:"DB_PORT" envDefault:"3306"`
	DBName                string `env:"DB_NAME" envDefault:"rms"`
	DBMaxOpenConns        int    `env:"DB_MAX_OPEN_CONNS" envDefault:"50"`
	DBMaxIdleConns        int    `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	DBConnMaxLifetimeSecs int    `env:"DB_CONN_MAX_LIFETIME_SECONDS" envDefault:"300"`
	DBConnMaxIdleTimeSecs int    `env:"DB_CONN_MAX_IDLE_TIME_SECONDS" envDefault:"60"`
	SkipMigrations        bool   `env:"SKIP_MIGRATIONS"`

	RedisAddress         string `env:"REDIS_ADDRESS" envDefault:"localhost:6379"`
	RateLimitEnabled     bool   `env:"RATE_LIMIT_ENABLED"`
	RateLimitMaxRequests int64  `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"600"`

	PubSubProjectID string `env:"PUBSUB_PROJECT_ID"`
	JobsTopic       string `env:"JOBS_TOPIC" envDefault:"rms-jobs"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailSender   string `env:"MAIL_SENDER" envDefault:"noreply@localhost"`

	// RealmFallbackRootOrg makes the fallback realm the root organisation
	// of the creating user's organisation instead of the organisation itself.
	RealmFallbackRootOrg   bool     `env:"REALM_FALLBACK_ROOT_ORG"`
	CapacityThresholdRatio float64  `env:"CAPACITY_THRESHOLD_RATIO" envDefault:"0.10"`
	OperatorRoles          []string `env:"OPERATOR_ROLES" envSeparator:"," envDefault:"wh_operator,logs_manager"`
	AppBaseURL             string   `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
	DefaultLanguage        string   `env:"DEFAULT_LANGUAGE" envDefault:"en"`

	StorageProvider   string `env:"STORAGE_PROVIDER" envDefault:"file"`
	GCSBucket         string `env:"GCS_BUCKET"`
	GeoJSONCacheDir   string `env:"GEOJSON_CACHE_DIR" envDefault:"static/cache"`
	LocationChunkSize int    `env:"LOCATION_CHUNK_SIZE" envDefault:"500"`
	HTTPTimeoutSecs   int    `env:"HTTP_TIMEOUT_SECONDS" envDefault:"20"`

	APISecret string `env:"API_SECRET"`
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

var (
	settings     *Settings
	settingsErr  error
	settingsOnce sync.Once
)

// GetSettings parses the environment once (after loading .env when present).
// A parse failure falls back to defaults and is reported by LoadSettings.
func GetSettings() *Settings {
	s, _ := LoadSettings()
	return s
}

func LoadSettings() (*Settings, error) {
	settingsOnce.Do(func() {
		_ = godotenv.Load()
		s := &Settings{}
		if err := env.Parse(s); err != nil {
			settingsErr = err
			s = DefaultSettings()
		}
		settings = s
	})
	return settings, settingsErr
}

// DefaultSettings returns the envDefault values without reading the environment.
func DefaultSettings() *Settings {
	s := &Settings{}
	_ = env.ParseWithOptions(s, env.Options{Environment: map[string]string{}})
	return s
}

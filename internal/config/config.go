package config

import (
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Predictor PredictorConfig
	Scheduler SchedulerConfig
	Worker    WorkerConfig
	Export    ExportConfig
	Import    ImportConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Enabled          bool
	URL              string
	Host             string
	Port             string
	Password         string
	DB               int
	ForecastTTLHours int
}

// PredictorConfig configures the LLM-backed demand predictor. When Endpoint
// is empty the engine runs on the heuristic predictor alone.
type PredictorConfig struct {
	Endpoint       string
	APIKey         string
	Model          string
	TimeoutSeconds int
	Seed           int64
}

type SchedulerConfig struct {
	Enabled     bool
	DailyHour   int
	DailyMinute int
}

type WorkerConfig struct {
	ForecastConcurrency int
	ForecastPerMinute   int
}

// ImportConfig points the sales backfill at a Drive folder. CredentialsFile
// is a service account JSON key.
type ImportConfig struct {
	CredentialsFile string
	FolderPath      string
}

type ExportConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "stockcast")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("REDIS_ENABLED", true)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("FORECAST_CACHE_TTL_HOURS", 24)
		viper.SetDefault("PREDICTOR_ENDPOINT", "")
		viper.SetDefault("PREDICTOR_API_KEY", "")
		viper.SetDefault("PREDICTOR_MODEL", "")
		viper.SetDefault("PREDICTOR_TIMEOUT_SECONDS", 30)
		viper.SetDefault("PREDICTOR_SEED", 0)
		viper.SetDefault("SCHEDULER_ENABLED", true)
		viper.SetDefault("SCHEDULER_DAILY_HOUR", 2)
		viper.SetDefault("SCHEDULER_DAILY_MINUTE", 0)
		viper.SetDefault("WORKER_FORECAST_CONCURRENCY", 3)
		viper.SetDefault("WORKER_FORECAST_PER_MINUTE", 10)
		viper.SetDefault("IMPORT_CREDENTIALS_FILE", "")
		viper.SetDefault("IMPORT_FOLDER_PATH", "sales-exports")
		viper.SetDefault("EXPORT_ENABLED", false)
		viper.SetDefault("EXPORT_ENDPOINT", "")
		viper.SetDefault("EXPORT_ACCESS_KEY", "")
		viper.SetDefault("EXPORT_SECRET_KEY", "")
		viper.SetDefault("EXPORT_BUCKET", "")
		viper.SetDefault("EXPORT_REGION", "us-east-1")
		viper.SetDefault("EXPORT_USE_SSL", true)

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Redis: RedisConfig{
				Enabled:          viper.GetBool("REDIS_ENABLED"),
				URL:              viper.GetString("REDIS_URL"),
				Host:             viper.GetString("REDIS_HOST"),
				Port:             viper.GetString("REDIS_PORT"),
				Password:         viper.GetString("REDIS_PASSWORD"),
				DB:               viper.GetInt("REDIS_DB"),
				ForecastTTLHours: viper.GetInt("FORECAST_CACHE_TTL_HOURS"),
			},
			Predictor: PredictorConfig{
				Endpoint:       viper.GetString("PREDICTOR_ENDPOINT"),
				APIKey:         viper.GetString("PREDICTOR_API_KEY"),
				Model:          viper.GetString("PREDICTOR_MODEL"),
				TimeoutSeconds: viper.GetInt("PREDICTOR_TIMEOUT_SECONDS"),
				Seed:           viper.GetInt64("PREDICTOR_SEED"),
			},
			Scheduler: SchedulerConfig{
				Enabled:     viper.GetBool("SCHEDULER_ENABLED"),
				DailyHour:   viper.GetInt("SCHEDULER_DAILY_HOUR"),
				DailyMinute: viper.GetInt("SCHEDULER_DAILY_MINUTE"),
			},
			Worker: WorkerConfig{
				ForecastConcurrency: viper.GetInt("WORKER_FORECAST_CONCURRENCY"),
				ForecastPerMinute:   viper.GetInt("WORKER_FORECAST_PER_MINUTE"),
			},
			Import: ImportConfig{
				CredentialsFile: viper.GetString("IMPORT_CREDENTIALS_FILE"),
				FolderPath:      viper.GetString("IMPORT_FOLDER_PATH"),
			},
			Export: ExportConfig{
				Enabled:   viper.GetBool("EXPORT_ENABLED"),
				Endpoint:  viper.GetString("EXPORT_ENDPOINT"),
				AccessKey: viper.GetString("EXPORT_ACCESS_KEY"),
				SecretKey: viper.GetString("EXPORT_SECRET_KEY"),
				Bucket:    viper.GetString("EXPORT_BUCKET"),
				Region:    viper.GetString("EXPORT_REGION"),
				UseSSL:    viper.GetBool("EXPORT_USE_SSL"),
			},
		}
	})

	return instance
}

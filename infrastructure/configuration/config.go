package configuration

import (
	"fmt"
	"os"
	"strconv"

	"autouploader/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App              `json:"app" mapstructure:"app"`
	Database    Database         `json:"database" mapstructure:"database"`
	Pubsub      Pubsub           `json:"pubsub" mapstructure:"pubsub"`
	ServiceBus  ServiceBus       `json:"serviceBus" mapstructure:"serviceBus"`
	RedisClient RedisClient      `json:"redisClient" mapstructure:"redisClient"`
	Logger      Logger           `json:"logger" mapstructure:"logger"`
	Credentials Credentials      `json:"credentials" mapstructure:"credentials"`
	Uploader    UploaderSettings `json:"uploader" mapstructure:"uploader"`
}

type App struct {
	Port           int      `json:"port" mapstructure:"port"`
	SecretKey      string   `json:"secretKey" mapstructure:"secretKey"`
	WatchDir       string   `json:"watchDir" mapstructure:"watchDir"`
	AutoStart      bool     `json:"autoStart" mapstructure:"autoStart"`
	AllowedOrigins []string `json:"allowedOrigins" mapstructure:"allowedOrigins"`
}

type Database struct {
	Vendor string `json:"vendor" mapstructure:"vendor"`
	Psql   Db     `json:"psql" mapstructure:"psql"`
	Mssql  Db     `json:"mssql" mapstructure:"mssql"`
}

type Db struct {
	Name     string `json:"name" mapstructure:"name"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	User     string `json:"user" mapstructure:"user"`
	Password string `json:"password" mapstructure:"password"`
}

type Pubsub struct {
	ProjectID string `json:"projectID" mapstructure:"projectID"`
	Topic     string `json:"topic" mapstructure:"topic"`
}

type ServiceBus struct {
	Namespace string `json:"namespace" mapstructure:"namespace"`
	Queue     string `json:"queue" mapstructure:"queue"`
}

type RedisClient struct {
	Host         string `json:"host" mapstructure:"host"`
	Port         string `json:"port" mapstructure:"port"`
	Password     string `json:"password" mapstructure:"password"`
	DatabaseName string `json:"databaseName" mapstructure:"databaseName"`
	Username     string `json:"username" mapstructure:"username"`
}

type Logger struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// Credentials points at the directories holding client secrets and tokens
type Credentials struct {
	SecretsDir string `json:"secretsDir" mapstructure:"secretsDir"`
	TokensDir  string `json:"tokensDir" mapstructure:"tokensDir"`
}

var C Config

func init() {
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func setDefaults() {
	d := DefaultUploaderSettings()
	viper.SetDefault("uploader.title_template", d.TitleTemplate)
	viper.SetDefault("uploader.description", d.Description)
	viper.SetDefault("uploader.tags", d.Tags)
	viper.SetDefault("uploader.privacy", d.Privacy)
	viper.SetDefault("uploader.category_id", d.CategoryID)
	viper.SetDefault("uploader.delete_after_upload", d.DeleteAfterUpload)
	viper.SetDefault("uploader.check_existing_files", d.CheckExistingFiles)
	viper.SetDefault("uploader.max_retries", d.MaxRetries)
	viper.SetDefault("uploader.upload_limit_duration", d.UploadLimitDuration)
	viper.SetDefault("uploader.delete_retry_count", d.DeleteRetryCount)
	viper.SetDefault("uploader.delete_retry_delay", d.DeleteRetryDelay)
	viper.SetDefault("uploader.debounce_seconds", d.DebounceSeconds)
	viper.SetDefault("uploader.poll_interval_seconds", d.PollIntervalSeconds)
	viper.SetDefault("uploader.retry_backoff_seconds", d.RetryBackoffSeconds)
	viper.SetDefault("uploader.retry_backoff_max_seconds", d.RetryBackoffMaxSeconds)
	viper.SetDefault("uploader.file_unavailable_retries", d.FileUnavailableRetries)
	viper.SetDefault("uploader.chunk_size_mb", d.ChunkSizeMB)
	viper.SetDefault("uploader.adaptive_chunks", d.AdaptiveChunks)
	viper.SetDefault("uploader.max_chunk_resumes", d.MaxChunkResumes)
	viper.SetDefault("uploader.connect_timeout_seconds", d.ConnectTimeoutSeconds)
	viper.SetDefault("uploader.read_timeout_seconds", d.ReadTimeoutSeconds)
	viper.SetDefault("uploader.quota_reset_policy", d.QuotaResetPolicy)
	viper.SetDefault("uploader.video_extensions", d.VideoExtensions)
	viper.SetDefault("credentials.secretsDir", "credentials")
	viper.SetDefault("credentials.tokensDir", "tokens")
	viper.SetDefault("database.vendor", "postgres")
}

func initDatabase(C *Config) {
	if v := os.Getenv("DB_VENDOR"); v != "" {
		C.Database.Vendor = v
	}
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}

	if C.Database.Mssql.Name == "" {
		C.Database.Mssql.Name = os.Getenv("MSSQL_DB_NAME")
	}
	if C.Database.Mssql.Host == "" {
		C.Database.Mssql.Host = os.Getenv("MSSQL_HOST")
	}
	if C.Database.Mssql.User == "" {
		C.Database.Mssql.User = os.Getenv("MSSQL_USER")
	}
	if C.Database.Mssql.Password == "" {
		C.Database.Mssql.Password = os.Getenv("MSSQL_PASSWORD")
	}
	if C.Database.Mssql.Port == "" {
		if v := os.Getenv("MSSQL_PORT"); v != "" {
			C.Database.Mssql.Port = v
		} else {
			C.Database.Mssql.Port = "1433"
		}
	}
}

func initApp(C *Config) {
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// APP_PORT -> PORT -> config -> default 10001
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10001
	}
	if v := os.Getenv("WATCH_DIR"); v != "" {
		C.App.WatchDir = v
	}
	if len(C.App.AllowedOrigins) == 0 {
		C.App.AllowedOrigins = []string{"http://localhost:4200", "http://localhost:10001"}
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Info("App.SecretKey not set; status API runs without bearer authentication")
	}
}

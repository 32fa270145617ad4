package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Razorpay  RazorpayConfig
	License   LicenseConfig
	SMTP      SMTPConfig
	Admin     AdminConfig
	Pricing   PricingConfig
	Download  DownloadConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	ShutdownPeriod time.Duration `mapstructure:"shutdownPeriod"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory". The memory store is for local
	// development and loses all data on restart.
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
	AutoMigrate     bool          `mapstructure:"autoMigrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type RazorpayConfig struct {
	KeyID         string        `mapstructure:"keyId"`
	KeySecret     string        `mapstructure:"keySecret"`
	WebhookSecret string        `mapstructure:"webhookSecret"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Currency      string        `mapstructure:"currency"`
}

type LicenseConfig struct {
	Secret string `mapstructure:"secret"`
}

type SMTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	From         string `mapstructure:"from"`
	SalesAddress string `mapstructure:"salesAddress"`
}

type AdminConfig struct {
	Token     string        `mapstructure:"token"`
	JWTSecret string        `mapstructure:"jwtSecret"`
	TokenTTL  time.Duration `mapstructure:"tokenTTL"`
}

// PricingConfig holds the initial prices in major currency units.
type PricingConfig struct {
	Professional int64 `mapstructure:"professional"`
	Enterprise   int64 `mapstructure:"enterprise"`
}

type DownloadConfig struct {
	BaseURL string `mapstructure:"baseURL"`
}

type RateLimitConfig struct {
	Requests int64  `mapstructure:"requests"`
	Period   string `mapstructure:"period"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// secretKeys are read from the environment (LICENSE_SECRET,
// RAZORPAY_KEYSECRET, ADMIN_TOKEN, ...) or from .env.
var secretKeys = []string{
	"license.secret",
	"razorpay.keyId",
	"razorpay.keySecret",
	"razorpay.webhookSecret",
	"admin.token",
	"admin.jwtSecret",
	"smtp.username",
	"smtp.password",
	"database.url",
	"redis.password",
}

func LoadConfig(configPath string) (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables and config file")
	}

	v := viper.New()

	v.SetDefault("server.port", "3000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.shutdownPeriod", 15*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 25)
	v.SetDefault("database.connMaxLifetime", 5*time.Minute)
	v.SetDefault("database.autoMigrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")

	v.SetDefault("razorpay.timeout", 10*time.Second)
	v.SetDefault("razorpay.currency", "INR")

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)

	v.SetDefault("admin.tokenTTL", 15*time.Minute)

	v.SetDefault("pricing.professional", 599)
	v.SetDefault("pricing.enterprise", 999)

	v.SetDefault("download.baseURL", "https://github.com/rajdipk/LedgerPro/releases/download")

	v.SetDefault("rateLimit.requests", 60)
	v.SetDefault("rateLimit.period", "1m")

	v.SetDefault("cors.allowedOrigins", []string{"http://localhost:3000"})

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)

	// Unmarshal only sees keys viper already knows, and secrets have no
	// default and usually no file entry.
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("Warning: could not read config file: %s. Error: %v\n", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

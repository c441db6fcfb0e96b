package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	CatalogCacheTTLSeconds int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	ManagerPIN             string
	DeliveryFeeCents       int64
	Currency               string
	MaxSplitBills          int
	Log                    LoggerConfig
	EventsDriver           string
	AMQPURL                string
	AMQPExchange           string
	KafkaBrokers           []string
	SalesTopic             string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("CATALOG_CACHE_TTL_SECONDS", "60"))
	if err != nil || ttl < 1 {
		ttl = 60
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	deliveryFee, err := strconv.ParseInt(getEnv("DELIVERY_FEE_CENTS", "0"), 10, 64)
	if err != nil || deliveryFee < 0 {
		deliveryFee = 0
	}
	maxSplits, err := strconv.Atoi(getEnv("MAX_SPLIT_BILLS", "3"))
	if err != nil || maxSplits < 1 {
		maxSplits = 3
	}

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		CatalogCacheTTLSeconds: ttl,
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  tokenTTL,
		ManagerPIN:             strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		DeliveryFeeCents:       deliveryFee,
		Currency:               strings.ToUpper(getEnv("CURRENCY", "IDR")),
		MaxSplitBills:          maxSplits,
		Log: LoggerConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		EventsDriver: strings.ToLower(getEnv("EVENTS_DRIVER", "none")),
		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pos_topic"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		SalesTopic:   getEnv("SALES_TOPIC", "pos.sales"),
	}

	return cfg
}

// Validate checks the integration settings. Secrets are checked by the server
// entrypoint before anything is wired.
func (c Config) Validate() error {
	var errs []error
	if c.Currency == "" || len(c.Currency) != 3 {
		errs = append(errs, fmt.Errorf("CURRENCY must be a 3-letter code, got %q", c.Currency))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unsupported LOG_FORMAT %q", c.Log.Format))
	}
	switch c.EventsDriver {
	case "none", "":
	case "rabbitmq":
		if c.AMQPURL == "" {
			errs = append(errs, errors.New("AMQP_URL is required when EVENTS_DRIVER=rabbitmq"))
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when EVENTS_DRIVER=kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported EVENTS_DRIVER %q", c.EventsDriver))
	}
	return errors.Join(errs...)
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

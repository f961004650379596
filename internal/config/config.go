package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	SQLitePath  string
	// Warehouse configuration
	DefaultWarehouseCode string
	DefaultWarehouseName string
	// Low-stock monitor configuration
	LowStockThreshold int
	LowStockInterval  time.Duration
	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
	// Kafka configuration
	KafkaBrokers     []string
	KafkaTopicStock  string
	KafkaTopicOrders string
	KafkaTopicAlerts string
	KafkaClientID    string
	KafkaAcks        string
	KafkaRetries     int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Parse Kafka brokers (comma-separated)
	kafkaBrokersStr := getEnv("KAFKA_BROKERS", "localhost:9093")
	kafkaBrokers := strings.Split(kafkaBrokersStr, ",")
	for i, broker := range kafkaBrokers {
		kafkaBrokers[i] = strings.TrimSpace(broker)
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/stock.db"),

		DefaultWarehouseCode: getEnv("DEFAULT_WAREHOUSE_CODE", "WH-DEFAULT"),
		DefaultWarehouseName: getEnv("DEFAULT_WAREHOUSE_NAME", "Default Warehouse"),

		LowStockThreshold: getEnvAsInt("LOW_STOCK_THRESHOLD", 5),
		LowStockInterval:  getEnvAsDuration("LOW_STOCK_INTERVAL", 10*time.Minute),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", 30*time.Second),

		KafkaBrokers:     kafkaBrokers,
		KafkaTopicStock:  getEnv("KAFKA_TOPIC_STOCK", "stock.moves"),
		KafkaTopicOrders: getEnv("KAFKA_TOPIC_ORDERS", "stock.orders"),
		KafkaTopicAlerts: getEnv("KAFKA_TOPIC_ALERTS", "stock.alerts"),
		KafkaClientID:    getEnv("KAFKA_CLIENT_ID", "stock-service"),
		KafkaAcks:        getEnv("KAFKA_ACKS", "all"),
		KafkaRetries:     getEnvAsInt("KAFKA_RETRIES", 3),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return result
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return result
}

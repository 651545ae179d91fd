package server

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration from environment variables.
type Config struct {
	Port                string
	GRPCPort            string
	APIKey              string
	AllowInsecureNoAuth bool
	AWSRegion           string
	AWSEndpointURL      string // For LocalStack
	DynamoDBTable       string
	SQSQueuePrefix      string
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	IdleTimeout         time.Duration
	ShutdownTimeout     time.Duration
}

// LoadConfig reads configuration from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		Port:                getEnv("PAYORCH_PORT", "8080"),
		GRPCPort:            getEnv("PAYORCH_GRPC_PORT", "9090"),
		APIKey:              getEnv("PAYORCH_API_KEY", ""),
		AllowInsecureNoAuth: getEnvBool("PAYORCH_ALLOW_INSECURE_NO_AUTH", false),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL:      getEnv("AWS_ENDPOINT_URL", ""), // Empty = real AWS
		DynamoDBTable:       getEnv("DYNAMODB_TABLE", "payorch-records"),
		SQSQueuePrefix:      getEnv("SQS_QUEUE_PREFIX", "payorch"),
		ReadTimeout:         getEnvDuration("PAYORCH_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:        getEnvDuration("PAYORCH_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:         getEnvDuration("PAYORCH_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:     getEnvDuration("PAYORCH_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

package storage

import "os"

// Mode represents the storage backend behind the weekly counters
type Mode string

const (
	ModeMemory      Mode = "memory"
	ModeFile        Mode = "file"
	ModeDynamoLocal Mode = "dynamo-local"
	ModeDynamoAWS   Mode = "dynamo-aws"
	ModePostgres    Mode = "postgres"
)

// Config holds storage configuration
type Config struct {
	Mode        Mode
	FilePath    string
	Endpoint    string // for dynamo-local
	Region      string
	DynamoTable string
	PostgresDSN string
	KVTable     string
}

// LoadConfig loads storage config from environment
func LoadConfig() Config {
	mode := Mode(getEnv("STORE_MODE", string(ModeFile)))
	switch mode {
	case ModeMemory, ModeFile, ModeDynamoLocal, ModeDynamoAWS, ModePostgres:
	default:
		mode = ModeMemory
	}

	return Config{
		Mode:        mode,
		FilePath:    getEnv("STORE_FILE", "data/frontdesk-store.json"),
		Endpoint:    getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
		Region:      getEnv("DYNAMO_REGION", "eu-west-3"),
		DynamoTable: getEnv("DYNAMO_TABLE", "frontdesk-kv"),
		PostgresDSN: getEnv("DATABASE_URL", ""),
		KVTable:     getEnv("KV_TABLE", "frontdesk_kv"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

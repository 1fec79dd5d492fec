package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type ConfigStruct struct {
	WSHost string
	WSPort int

	// Liveness settings. A connection that stays silent longer than
	// HeartbeatTimeout is disconnected by the registry sweep loop.
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration

	// Safety-net interval for re-attempting match formation on
	// non-empty queues.
	MatchSweepInterval time.Duration

	// Mode table override, "name:players" comma list. Empty keeps the
	// built-in modes.
	MatchModes string

	MySQLHost     string
	MySQLPort     int
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string

	MongoURI string
	MongoDB  string

	JWTSecret string
}

// Global config biến public
var Config *ConfigStruct

func init() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found or could not be loaded")
	}

	toInt := func(envVar string, defaultVal int) int {
		valStr := os.Getenv(envVar)
		if valStr == "" {
			return defaultVal
		}
		val, err := strconv.Atoi(valStr)
		if err != nil {
			log.Printf("Invalid value for %s: %v\n", envVar, err)
			return defaultVal
		}
		return val
	}

	toSeconds := func(envVar string, defaultVal int) time.Duration {
		return time.Duration(toInt(envVar, defaultVal)) * time.Second
	}

	Config = &ConfigStruct{
		WSHost: os.Getenv("WS_HOST"),
		WSPort: toInt("WS_PORT", 8080),

		HeartbeatTimeout:   toSeconds("HEARTBEAT_TIMEOUT_SECONDS", 60),
		SweepInterval:      toSeconds("SWEEP_INTERVAL_SECONDS", 10),
		MatchSweepInterval: toSeconds("MATCH_SWEEP_INTERVAL_SECONDS", 5),
		MatchModes:         os.Getenv("MATCH_MODES"),

		MySQLHost:     os.Getenv("MYSQL_HOST"),
		MySQLPort:     toInt("MYSQL_PORT", 3306),
		MySQLUser:     os.Getenv("MYSQL_USER"),
		MySQLPassword: os.Getenv("MYSQL_PASSWORD"),
		MySQLDatabase: os.Getenv("MYSQL_DATABASE"),

		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  os.Getenv("MONGO_DB"),

		JWTSecret: os.Getenv("JWT_SECRET"),
	}
}

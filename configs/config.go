package configs

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	MongoURI  string
	DBName    string
	JWTSecret string

	JWTTTLHours      int
	BorrowDays       int
	MaxActiveBorrows int

	SweepInterval       time.Duration
	AuditExportInterval time.Duration

	MediaDir       string
	MaxUploadBytes int64

	LoginRatePerMin int
	LoginBurst      int
}

func LoadConfig() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment variables")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Println("JWT_SECRET not set, using insecure development default")
		secret = "dev-secret-change-me"
	}

	return Config{
		Port:      envString("PORT", "8080"),
		MongoURI:  envString("MONGO_URI", "mongodb://localhost:27017"),
		DBName:    envString("DB_NAME", "candil"),
		JWTSecret: secret,

		JWTTTLHours:      envInt("JWT_TTL_HOURS", 24),
		BorrowDays:       envInt("BORROW_DAYS", 7),
		MaxActiveBorrows: envInt("MAX_ACTIVE_BORROWS", 3),

		SweepInterval:       envDuration("SWEEP_INTERVAL", 10*time.Minute),
		AuditExportInterval: envDuration("AUDIT_EXPORT_INTERVAL", 30*time.Second),

		MediaDir:       envString("MEDIA_DIR", "./data/media"),
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 64<<20),

		LoginRatePerMin: envInt("LOGIN_RATE_PER_MIN", 5),
		LoginBurst:      envInt("LOGIN_BURST", 5),
	}
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(val, "%d", &n); err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return n
}

func envInt64(key string, def int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	var n int64
	if _, err := fmt.Sscanf(val, "%d", &n); err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return d
}

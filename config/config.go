package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Secret used to mint session tokens. Tokens are stored on the actor
	// row and compared by value, the secret only signs them.
	TokenSecret   string
	TokenTTLHours int

	// Redis (password-reset tokens)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Kafka (async mail dispatch)
	KafkaBrokers   string
	KafkaMailTopic string

	// Fallback SMTP used when no credential row matches a (module, action)
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
	SMTPFromName  string
	SMTPFromEmail string

	UploadDir   string
	FrontendURL string
	BackendURL  string
}

// Load reads environment variables and returns a Config object
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using environment variables")
	}

	tokenTTL, _ := strconv.Atoi(os.Getenv("TOKEN_TTL_HOURS"))
	if tokenTTL <= 0 {
		tokenTTL = 2
	}
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "/data/uploads"
	}

	mailTopic := os.Getenv("KAFKA_MAIL_TOPIC")
	if mailTopic == "" {
		mailTopic = "bgv.mail.dispatch"
	}

	return &Config{
		Port: os.Getenv("PORT"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		TokenSecret:   os.Getenv("TOKEN_SECRET"),
		TokenTTLHours: tokenTTL,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		KafkaMailTopic: mailTopic,

		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      os.Getenv("SMTP_PORT"),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:  os.Getenv("SMTP_FROM_NAME"),
		SMTPFromEmail: os.Getenv("SMTP_FROM_EMAIL"),

		UploadDir:   uploadDir,
		FrontendURL: os.Getenv("FRONTEND_URL"),
		BackendURL:  os.Getenv("BACKEND_URL"),
	}
}

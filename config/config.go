package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/wangablestudio/paysplit/models"
)

type Config struct {
	Port        string
	DatabaseURL string
	Environment string // "production" or anything else (test gateway)
	BackendURL  string // public base URL for webhook callbacks

	// Acquiring gateway credentials
	GatewayBaseURL     string
	TerminalKey        string
	TerminalKeyPayout  string // E2C terminal used for payout legs
	TerminalPassword   string // shared signing secret
	GatewayTimeout     time.Duration
	PartnerCertFile    string // client certificate for partner registration
	PartnerCertKeyFile string

	// Fiscal receipt service (Basic auth)
	ReceiptURL       string
	ReceiptPublicID  string
	ReceiptAPISecret string
	ReceiptInn       string
	CalculationPlace string

	JWTSecret        string
	JWTRefreshSecret string
}

const (
	productionGatewayURL = "https://securepay.acquiring.example"
	testGatewayURL       = "https://rest-api-test.acquiring.example"
)

func LoadConfig() (*Config, error) {
	godotenv.Load()

	env := getEnvOrDefault("ENVIRONMENT", "development")

	gatewayURL := os.Getenv("GATEWAY_BASE_URL")
	if gatewayURL == "" {
		if env == "production" {
			gatewayURL = productionGatewayURL
		} else {
			gatewayURL = testGatewayURL
		}
	}

	return &Config{
		Port:        os.Getenv("PORT"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Environment: env,
		BackendURL:  os.Getenv("BACKEND_URL"),

		GatewayBaseURL:     gatewayURL,
		TerminalKey:        os.Getenv("TERMINAL_KEY"),
		TerminalKeyPayout:  os.Getenv("TERMINAL_KEY_E2C"),
		TerminalPassword:   os.Getenv("TERMINAL_PASSWORD"),
		GatewayTimeout:     30 * time.Second,
		PartnerCertFile:    os.Getenv("PARTNER_CERT_FILE"),
		PartnerCertKeyFile: os.Getenv("PARTNER_CERT_KEY_FILE"),

		ReceiptURL:       getEnvOrDefault("RECEIPT_URL", "https://api.billing.example/kkt/receipt"),
		ReceiptPublicID:  os.Getenv("RECEIPT_PUBLIC_ID"),
		ReceiptAPISecret: os.Getenv("RECEIPT_API_SECRET"),
		ReceiptInn:       os.Getenv("RECEIPT_INN"),
		CalculationPlace: getEnvOrDefault("CALCULATION_PLACE", "https://www.mbk.company"),

		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
	}, nil
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Contractor{},
		&models.Member{},
		&models.Payment{},
		&models.Payout{},
		&models.OutboxTask{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type InventoryPolicy string

const (
	// 注文作成と同じトランザクションで条件付き減算
	InventoryPolicyAtomic InventoryPolicy = "atomic"
	// 注文作成後にフォローアップとして減算
	InventoryPolicyFollowUp InventoryPolicy = "follow_up"
)

type CancelRestockPolicy string

const (
	CancelRestockNone    CancelRestockPolicy = "none"
	CancelRestockRestore CancelRestockPolicy = "restore"
)

type StorageDriver string

const (
	StoragePostgres StorageDriver = "postgres"
	StorageMemory   StorageDriver = "memory"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // dev/prod

	Storage          StorageDriver
	DatabaseURL      string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット

	RedisAddr     string   // 空ならidempotencyガード無効
	KafkaBrokers  []string // 空ならイベント送信無効
	KafkaTopic    string
	FollowUp      FollowUpConfig
	Checkout      CheckoutConfig
	CollaboratorT time.Duration // 外部呼び出し1回あたりのタイムアウト
}

type CheckoutConfig struct {
	BaseShippingFee        decimal.Decimal
	PerItemShippingFee     decimal.Decimal
	TaxRate                decimal.Decimal
	CODMaxOrderTotal       decimal.Decimal
	CODDenylistPincodes    []string
	OrderNumberMaxAttempts int
	HistoryLimit           int
	InventoryPolicy        InventoryPolicy
	CancelRestockPolicy    CancelRestockPolicy
}

type FollowUpConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	BaseBackoff time.Duration
}

// Loadは環境変数（.envがあれば先に読む）
func Load() (Config, error) {
	// .envは任意
	_ = godotenv.Load()

	cfg := Config{
		Port:  getenv("PORT", "8080"),
		GoEnv: getenv("GO_ENV", "dev"),

		Storage:          StorageDriver(getenv("STORAGE_DRIVER", string(StoragePostgres))),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "buyzaar"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "buyzaar.orders"),
	}

	var err error
	if cfg.PostgresPort, err = atoi("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}

	timeoutMS, err := atoi("COLLABORATOR_TIMEOUT_MS", 3000)
	if err != nil {
		return Config{}, err
	}
	cfg.CollaboratorT = time.Duration(timeoutMS) * time.Millisecond

	if cfg.Checkout, err = loadCheckout(); err != nil {
		return Config{}, err
	}
	if cfg.FollowUp, err = loadFollowUp(); err != nil {
		return Config{}, err
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		return Config{}, fmt.Errorf("STORAGE_DRIVER must be postgres or memory")
	}
	if cfg.CollaboratorT <= 0 {
		return Config{}, fmt.Errorf("COLLABORATOR_TIMEOUT_MS must be positive")
	}

	return cfg, nil
}

func loadCheckout() (CheckoutConfig, error) {
	c := CheckoutConfig{
		CODDenylistPincodes: splitCSV(os.Getenv("COD_DENYLIST_PINCODES")),
		InventoryPolicy:     InventoryPolicy(getenv("INVENTORY_POLICY", string(InventoryPolicyAtomic))),
		CancelRestockPolicy: CancelRestockPolicy(getenv("CANCEL_RESTOCK_POLICY", string(CancelRestockNone))),
	}

	var err error
	if c.BaseShippingFee, err = money("SHIPPING_BASE_FEE", "50"); err != nil {
		return c, err
	}
	if c.PerItemShippingFee, err = money("SHIPPING_PER_ITEM_FEE", "10"); err != nil {
		return c, err
	}
	if c.TaxRate, err = money("TAX_RATE", "0.18"); err != nil {
		return c, err
	}
	if c.CODMaxOrderTotal, err = money("COD_MAX_ORDER_TOTAL", "50000"); err != nil {
		return c, err
	}
	if c.OrderNumberMaxAttempts, err = atoi("ORDER_NUMBER_MAX_ATTEMPTS", 5); err != nil {
		return c, err
	}
	if c.HistoryLimit, err = atoi("HISTORY_LIMIT", 50); err != nil {
		return c, err
	}

	switch c.InventoryPolicy {
	case InventoryPolicyAtomic, InventoryPolicyFollowUp:
	default:
		return c, fmt.Errorf("INVENTORY_POLICY must be atomic or follow_up")
	}
	switch c.CancelRestockPolicy {
	case CancelRestockNone, CancelRestockRestore:
	default:
		return c, fmt.Errorf("CANCEL_RESTOCK_POLICY must be none or restore")
	}
	if c.OrderNumberMaxAttempts < 1 {
		return c, fmt.Errorf("ORDER_NUMBER_MAX_ATTEMPTS must be >= 1")
	}
	if c.HistoryLimit < 1 {
		return c, fmt.Errorf("HISTORY_LIMIT must be >= 1")
	}
	return c, nil
}

func loadFollowUp() (FollowUpConfig, error) {
	var f FollowUpConfig
	var err error
	if f.Workers, err = atoi("FOLLOWUP_WORKERS", 4); err != nil {
		return f, err
	}
	if f.QueueSize, err = atoi("FOLLOWUP_QUEUE_SIZE", 1024); err != nil {
		return f, err
	}
	if f.MaxAttempts, err = atoi("FOLLOWUP_MAX_ATTEMPTS", 5); err != nil {
		return f, err
	}
	backoffMS, err := atoi("FOLLOWUP_BACKOFF_MS", 200)
	if err != nil {
		return f, err
	}
	f.BaseBackoff = time.Duration(backoffMS) * time.Millisecond
	if f.Workers < 1 || f.MaxAttempts < 1 {
		return f, fmt.Errorf("FOLLOWUP_WORKERS and FOLLOWUP_MAX_ATTEMPTS must be >= 1")
	}
	return f, nil
}

// DSNはDATABASE_URLを優先
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoi(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func money(key string, def string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getenv(key, def))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be decimal: %w", key, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func splitCSV(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

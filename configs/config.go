package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout    time.Duration `koanf:"read_timeout"`
		WriteTimeout   time.Duration `koanf:"write_timeout"`
		IdleTimeout    time.Duration `koanf:"idle_timeout"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
	} `koanf:"http"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Checkout struct {
		DraftTTL          time.Duration `koanf:"draft_ttl"`
		IdempotencyTTL    time.Duration `koanf:"idempotency_ttl"`
		LotSize           int64         `koanf:"lot_size"`
		RequireAttachment bool          `koanf:"require_attachment"`
		Currency          string        `koanf:"currency"`
		MinorUnitExponent int32         `koanf:"minor_unit_exponent"`
		// max difference, in minor units, between a client total and the recomputed one
		TotalTolerance int64 `koanf:"total_tolerance"`
	} `koanf:"checkout"`

	Gateway struct {
		Name             string        `koanf:"name"`
		BaseURL          string        `koanf:"base_url"`
		CheckoutBaseURL  string        `koanf:"checkout_base_url"`
		PublicKey        string        `koanf:"public_key"`
		PrivateKey       string        `koanf:"private_key"`
		EventsSecret     string        `koanf:"events_secret"`
		Timeout          time.Duration `koanf:"timeout"`
		BreakerFailures  uint32        `koanf:"breaker_failures"`
		BreakerOpenDelay time.Duration `koanf:"breaker_open_delay"`
	} `koanf:"gateway"`

	Mail struct {
		SendGridAPIKey   string `koanf:"sendgrid_api_key"`
		From             string `koanf:"from"`
		FromName         string `koanf:"from_name"`
		DefaultRecipient string `koanf:"default_recipient"`
	} `koanf:"mail"`

	Frontend struct {
		BaseURL string `koanf:"base_url"`
	} `koanf:"frontend"`

	WhatsApp struct {
		Number string `koanf:"number"`
	} `koanf:"whatsapp"`

	Upload struct {
		MaxBytes int64  `koanf:"max_bytes"`
		Backend  string `koanf:"backend"` // disk | gcs
		Dir      string `koanf:"dir"`
		Bucket   string `koanf:"bucket"`
	} `koanf:"upload"`

	Firestore struct {
		ProjectID  string `koanf:"project_id"`
		Collection string `koanf:"collection"`
	} `koanf:"firestore"`

	GCP struct {
		CredentialsFile string `koanf:"credentials_file"` // empty: application default credentials
	} `koanf:"gcp"`

	Rabbit struct {
		URL        string `koanf:"url"`
		Exchange   string `koanf:"exchange"`
		RoutingKey string `koanf:"routing_key"`
		Queue      string `koanf:"queue"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers     []string `koanf:"brokers"`
		TopicEvents string   `koanf:"topic_events"`
		GroupID     string   `koanf:"group_id"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
		Clients   []struct {
			ID       string   `koanf:"id"`
			Secret   string   `koanf:"secret"`
			Perms    []string `koanf:"perms"`
			Disabled bool     `koanf:"disabled"`
		} `koanf:"clients"`
	} `koanf:"security"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix STOREFRONT_, nested with __)
	// e.g. STOREFRONT_GATEWAY__PRIVATE_KEY, STOREFRONT_MAIL__SENDGRID_API_KEY
	if err := k.Load(env.Provider("STOREFRONT_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "STOREFRONT_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Checkout.DraftTTL <= 0 {
		c.Checkout.DraftTTL = 24 * time.Hour
	}
	if c.Checkout.IdempotencyTTL <= 0 {
		c.Checkout.IdempotencyTTL = 10 * time.Minute
	}
	if c.Checkout.LotSize <= 0 {
		c.Checkout.LotSize = 1
	}
	if c.Checkout.Currency == "" {
		c.Checkout.Currency = "COP"
	}
	if c.Checkout.MinorUnitExponent == 0 {
		c.Checkout.MinorUnitExponent = 2
	}
	if c.Checkout.TotalTolerance <= 0 {
		c.Checkout.TotalTolerance = 1
	}
	if c.Gateway.Name == "" {
		c.Gateway.Name = "wompi"
	}
	if c.Gateway.CheckoutBaseURL == "" {
		c.Gateway.CheckoutBaseURL = "https://checkout.wompi.co"
	}
	if c.Gateway.Timeout <= 0 {
		c.Gateway.Timeout = 15 * time.Second
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = 5 << 20
	}
	if c.Upload.Backend == "" {
		c.Upload.Backend = "disk"
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = "./uploads"
	}
	if c.Firestore.Collection == "" {
		c.Firestore.Collection = "products"
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 20 * time.Second
	}
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required")
	}
	if c.Gateway.BaseURL == "" || c.Gateway.PrivateKey == "" {
		return fmt.Errorf("gateway.base_url and gateway.private_key required")
	}
	if c.Frontend.BaseURL == "" {
		return fmt.Errorf("frontend.base_url required (used to build the payment return url)")
	}
	if c.Upload.Backend == "gcs" && c.Upload.Bucket == "" {
		return fmt.Errorf("upload.bucket required when upload.backend=gcs")
	}
	if c.Kafka.TopicEvents == "" && len(c.Kafka.Brokers) > 0 {
		return fmt.Errorf("kafka.topic_events required when kafka.brokers is set")
	}
	if c.Rabbit.URL != "" && (c.Rabbit.Exchange == "" || c.Rabbit.Queue == "") {
		return fmt.Errorf("rabbitmq.exchange and rabbitmq.queue required when rabbitmq.url is set")
	}
	return nil
}

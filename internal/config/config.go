package config

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sealedbid/tender-service/internal/keyexchange"
	"github.com/sealedbid/tender-service/internal/utils"
	"github.com/sealedbid/tender-service/internal/vault"
)

// Config holds all application configuration, including secrets, flags, etc.
type Config struct {
	AppName string
	Env     string
	AppPort string
	AppUrl  string
	DBUrl   string

	BidMasterKey  []byte
	DHGroup       string
	RSAPrivateKey *rsa.PrivateKey
	RSAPublicKey  *rsa.PublicKey
	TokenExpiry   time.Duration

	RedisURL      string
	MongoURI      string
	MongoDatabase string
	AuditSink     string
	DocumentStore string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3Bucket      string

	SendGridAPIKey    string
	SendGridFromEmail string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromPhone   string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeCurrency      string

	PrivilegedRegistrationCode string

	// Static flags, from LaunchDarkly when LD_SDK_KEY is set, else from env.
	LDFlag_SendgridSandboxMode bool
	LDFlag_SeedDbWithTestData  bool
	LDFlag_CORSHighSecurity    bool
	LDFlag_AwardSweepEnabled   bool
}

const (
	EnvDev  = "dev"
	EnvTest = "test"

	AuditSinkPostgres     = "postgres"
	AuditSinkMongo        = "mongo"
	DocumentStorePostgres = "postgres"
	DocumentStoreS3       = "s3"

	DefaultTokenExpiry   = 30 * time.Minute
	DefaultAppPort       = "8080"
	DefaultMongoDatabase = "tenders"
	DefaultStripeCur     = "usd"
	LDConnectionTimeout  = 5 * time.Second
	devRSAKeyBits        = 2048
)

// Global compile-time overrides.
var (
	AppName             = "tender-service"
	LDServerContextKey  = "tender-service"
	LDServerContextKind = "service"
)

// LoadConfig reads the process environment, overlays Bitwarden secrets and
// LaunchDarkly flags when configured, and returns a *Config. Any problem is
// fatal.
func LoadConfig() *Config {
	utils.Logger.Info("Loading config for app: ", AppName)

	getenv := os.Getenv
	if os.Getenv("BWS_ACCESS_TOKEN") != "" {
		secrets, err := fetchBWSSecrets(os.Getenv("ENV"))
		if err != nil {
			utils.Logger.WithError(err).Fatal("Failed to fetch secrets from Bitwarden")
		}
		getenv = overlay(secrets, os.Getenv)
	}

	cfg, err := Build(getenv)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Invalid configuration")
	}

	if key := getenv("LD_SDK_KEY"); key != "" {
		if err := applyLDFlags(cfg, key); err != nil {
			utils.Logger.WithError(err).Fatal("Failed to load LaunchDarkly flags")
		}
	}

	utils.Logger.Debugf("App can be accessed at: %s", cfg.AppUrl)
	return cfg
}

func fetchBWSSecrets(env string) (map[string]string, error) {
	client, err := utils.NewBWSSecretsClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	project := fmt.Sprintf("%s-%s", AppName, env)
	utils.Logger.Debugf("Fetching secrets from Bitwarden project %s", project)
	return client.GetBWSSecrets(project)
}

// overlay prefers secrets over the fallback lookup.
func overlay(secrets map[string]string, fallback func(string) string) func(string) string {
	return func(key string) string {
		if v, ok := secrets[key]; ok && v != "" {
			return v
		}
		return fallback(key)
	}
}

// Build assembles a Config from getenv. It does no network I/O.
func Build(getenv func(string) string) (*Config, error) {
	env := getenv("ENV")
	if env == "" {
		return nil, errors.New("ENV env var is missing")
	}
	dbUrl := getenv("DB_URL")
	if dbUrl == "" {
		return nil, errors.New("DB_URL env var is missing")
	}

	masterKey, err := base64.StdEncoding.DecodeString(getenv("BID_MASTER_KEY_BASE64"))
	if err != nil {
		return nil, fmt.Errorf("decoding BID_MASTER_KEY_BASE64: %w", err)
	}
	if len(masterKey) != vault.MasterKeySize {
		return nil, fmt.Errorf("BID_MASTER_KEY_BASE64 must decode to %d bytes", vault.MasterKeySize)
	}

	dhGroup := getenv("DH_GROUP")
	if _, err := keyexchange.GroupByName(dhGroup); err != nil {
		return nil, err
	}

	priv, pub, err := loadRSAKeys(env, getenv)
	if err != nil {
		return nil, err
	}

	tokenExpiry := DefaultTokenExpiry
	if v := getenv("TOKEN_EXPIRY"); v != "" {
		if tokenExpiry, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("parsing TOKEN_EXPIRY: %w", err)
		}
	}

	cfg := &Config{
		AppName:       AppName,
		Env:           env,
		AppPort:       withDefault(getenv("APP_PORT"), DefaultAppPort),
		AppUrl:        getenv("APP_URL"),
		DBUrl:         dbUrl,
		BidMasterKey:  masterKey,
		DHGroup:       dhGroup,
		RSAPrivateKey: priv,
		RSAPublicKey:  pub,
		TokenExpiry:   tokenExpiry,

		RedisURL:      getenv("REDIS_URL"),
		MongoURI:      getenv("MONGO_URI"),
		MongoDatabase: withDefault(getenv("MONGO_DATABASE"), DefaultMongoDatabase),
		AuditSink:     withDefault(getenv("AUDIT_SINK"), AuditSinkPostgres),
		DocumentStore: withDefault(getenv("DOCUMENT_STORE"), DocumentStorePostgres),
		S3Region:      withDefault(getenv("S3_REGION"), "us-east-1"),
		S3Endpoint:    getenv("S3_ENDPOINT"),
		S3AccessKey:   getenv("S3_ACCESS_KEY"),
		S3SecretKey:   getenv("S3_SECRET_KEY"),
		S3Bucket:      getenv("S3_BUCKET"),

		SendGridAPIKey:    getenv("SENDGRID_API_KEY"),
		SendGridFromEmail: getenv("SENDGRID_FROM_EMAIL"),
		TwilioAccountSID:  getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromPhone:   getenv("TWILIO_FROM_PHONE"),

		StripeSecretKey:     getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: getenv("STRIPE_WEBHOOK_SECRET"),
		StripeCurrency:      withDefault(getenv("STRIPE_CURRENCY"), DefaultStripeCur),

		PrivilegedRegistrationCode: getenv("PRIVILEGED_REGISTRATION_CODE"),

		LDFlag_SendgridSandboxMode: envBool(getenv, "SENDGRID_SANDBOX_MODE", env != "prod"),
		LDFlag_SeedDbWithTestData:  envBool(getenv, "SEED_DB_WITH_TEST_DATA", env == EnvDev),
		LDFlag_CORSHighSecurity:    envBool(getenv, "CORS_HIGH_SECURITY", env == "prod"),
		LDFlag_AwardSweepEnabled:   envBool(getenv, "AWARD_SWEEP_ENABLED", true),
	}

	switch cfg.AuditSink {
	case AuditSinkPostgres:
	case AuditSinkMongo:
		if cfg.MongoURI == "" {
			return nil, errors.New("AUDIT_SINK=mongo requires MONGO_URI")
		}
	default:
		return nil, fmt.Errorf("unknown AUDIT_SINK %q", cfg.AuditSink)
	}

	switch cfg.DocumentStore {
	case DocumentStorePostgres:
	case DocumentStoreS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("DOCUMENT_STORE=s3 requires S3_BUCKET")
		}
	default:
		return nil, fmt.Errorf("unknown DOCUMENT_STORE %q", cfg.DocumentStore)
	}

	if cfg.PrivilegedRegistrationCode == "" {
		utils.Logger.Warn("PRIVILEGED_REGISTRATION_CODE is empty; officer and auditor registration is disabled")
	}
	return cfg, nil
}

// loadRSAKeys parses the PEM pair. Outside prod-like environments a missing
// pair is replaced by an ephemeral key, so tokens do not survive a restart.
func loadRSAKeys(env string, getenv func(string) string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privB64 := getenv("RSA_PRIVATE_KEY_BASE64")
	pubB64 := getenv("RSA_PUBLIC_KEY_BASE64")

	if privB64 == "" && pubB64 == "" {
		if env != EnvDev && env != EnvTest {
			return nil, nil, errors.New("RSA_PRIVATE_KEY_BASE64 and RSA_PUBLIC_KEY_BASE64 are required")
		}
		utils.Logger.Warn("No RSA key pair configured; generating an ephemeral one")
		priv, err := rsa.GenerateKey(rand.Reader, devRSAKeyBits)
		if err != nil {
			return nil, nil, err
		}
		return priv, &priv.PublicKey, nil
	}

	privPEM, err := base64.StdEncoding.DecodeString(privB64)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding RSA_PRIVATE_KEY_BASE64: %w", err)
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing RSA private key: %w", err)
	}

	pubPEM, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding RSA_PUBLIC_KEY_BASE64: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing RSA public key: %w", err)
	}
	return priv, pub, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func envBool(getenv func(string) string, key string, def bool) bool {
	v := getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		utils.Logger.Warnf("Ignoring non-boolean %s=%q", key, v)
		return def
	}
	return b
}

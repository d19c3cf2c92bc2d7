package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		SecretKey        string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridApiKey   string
		WorkDir          string
		UploadDir        string

		Server   ServerConfig
		Database DatabaseConfig
		Accounts AccountsConfig
		Uploads  UploadsConfig
	}

	ServerConfig struct {
		Host              string
		Address           string
		DebugHost         string
		BaseURL           string
		ShutdownTimeout   time.Duration
		SessionTimeout    time.Duration
		RememberMeTimeout time.Duration
		SecureCookies     bool
		DisableReqLogs    bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	AccountsConfig struct {
		PasswordSuffixLen int
	}

	UploadsConfig struct {
		MaxSize           int64
		AllowedExtensions []string
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

// NewConfig loads the configuration from the environment (and the optional `config/.env.<env>` file).
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Promissory")
	v.SetDefault("secretKey", "k2h!0u-x8wq$nz3)t@5v+7pd#4m(ejr9&ybc6g^a=flsq1o")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("uploadDir", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverBaseURL", "http://localhost:8000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("serverSessionTimeout", 12*time.Hour)
	v.SetDefault("serverRememberMeTimeout", 30*24*time.Hour)
	v.SetDefault("serverSecureCookies", false)
	v.SetDefault("serverDisableReqLogs", false)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "promissory")
	v.SetDefault("dbUser", "promissory")
	v.SetDefault("dbPassword", "promissory")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("accountsPasswordSuffixLen", 6)
	v.SetDefault("uploadsMaxSize", int64(10<<20))
	v.SetDefault("uploadsAllowedExtensions", "pdf,png,jpg,jpeg,doc,docx")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	uploadDir := v.GetString("uploadDir")
	if uploadDir == "" {
		uploadDir = filepath.Join(wd, "uploads")
	}

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		WorkDir:          wd,
		UploadDir:        uploadDir,
		Server: ServerConfig{
			Host:              v.GetString("serverHost"),
			Address:           v.GetString("serverAddress"),
			DebugHost:         v.GetString("serverDebugHost"),
			BaseURL:           strings.TrimRight(v.GetString("serverBaseURL"), "/"),
			ShutdownTimeout:   v.GetDuration("serverShutdownTimeout"),
			SessionTimeout:    v.GetDuration("serverSessionTimeout"),
			RememberMeTimeout: v.GetDuration("serverRememberMeTimeout"),
			SecureCookies:     v.GetBool("serverSecureCookies"),
			DisableReqLogs:    v.GetBool("serverDisableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Accounts: AccountsConfig{
			PasswordSuffixLen: v.GetInt("accountsPasswordSuffixLen"),
		},
		Uploads: UploadsConfig{
			MaxSize:           v.GetInt64("uploadsMaxSize"),
			AllowedExtensions: splitList(v.GetString("uploadsAllowedExtensions")),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no dotenv, no env lookups.
func NewTestConfig(uploadDir string) *Config {
	return &Config{
		TestMode:         true,
		Env:              "TEST",
		Build:            "test",
		AppName:          "Promissory",
		SecretKey:        "test-secret-key",
		DefaultFromEmail: mail.Address{Name: "Promissory", Address: "noreply@localhost"},
		UploadDir:        uploadDir,
		Server: ServerConfig{
			Host:              "localhost",
			BaseURL:           "http://localhost:8000",
			ShutdownTimeout:   time.Second,
			SessionTimeout:    time.Hour,
			RememberMeTimeout: 30 * 24 * time.Hour,
			DisableReqLogs:    true,
		},
		Accounts: AccountsConfig{PasswordSuffixLen: 6},
		Uploads: UploadsConfig{
			MaxSize:           1 << 20,
			AllowedExtensions: []string{"pdf", "png", "jpg", "jpeg", "doc", "docx"},
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = CleanString(item, true /* lower */); item != "" {
			out = append(out, strings.TrimPrefix(item, "."))
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"petshop/models"
)

const (
	DefaultConfigPath = "config/config.yaml"
	envPrefix         = "PETSHOP"
)

type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	Mode         string   `yaml:"mode"`
	AllowOrigins []string `yaml:"allow_origins" split_words:"true"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
	Debug    bool   `yaml:"debug"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"`
}

type JWTConfig struct {
	PrivateKeyPath string        `yaml:"private_key_path" split_words:"true"`
	PublicKeyPath  string        `yaml:"public_key_path" split_words:"true"`
	TTL            time.Duration `yaml:"ttl"`
}

type LoggerConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable" split_words:"true"`
	Filename   string `yaml:"filename"`
}

// JobsConfig holds cron schedules; an empty schedule disables the job.
type JobsConfig struct {
	Location     string `yaml:"location"`
	TokenPurge   string `yaml:"token_purge" split_words:"true"`
	CacheRefresh string `yaml:"cache_refresh" split_words:"true"`
}

// AdminConfig seeds the first administrator when the users table has none.
type AdminConfig struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Logger   LoggerConfig   `yaml:"logger"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Admin    AdminConfig    `yaml:"admin"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":3000",
			Mode:         "release",
			AllowOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Type: "mysql",
			Host: "127.0.0.1",
			Port: "3306",
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		JWT: JWTConfig{
			PrivateKeyPath: "jwt/private_key.pem",
			PublicKeyPath:  "jwt/public_key.pem",
			TTL:            24 * time.Hour,
		},
		Logger: LoggerConfig{
			Mode:     "development",
			Filename: "logs/petshop.log",
		},
		Jobs: JobsConfig{
			Location:     "Local",
			TokenPurge:   "@every 1h",
			CacheRefresh: "@every 15m",
		},
	}
}

// LoadConfig reads the YAML file on top of the built-in defaults, then applies
// PETSHOP_* environment overrides. A missing file is not an error.
func LoadConfig(filename string) (Config, error) {
	config := defaults()

	file, err := os.Open(filename)
	switch {
	case err == nil:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(&config); err != nil {
			return config, errors.Wrapf(err, "decode %s", filename)
		}
	case os.IsNotExist(err):
	default:
		return config, errors.Wrapf(err, "open %s", filename)
	}

	if err := envconfig.Process(envPrefix, &config); err != nil {
		return config, errors.Wrap(err, "apply environment overrides")
	}

	return config, nil
}

func (c DatabaseConfig) dialector() (gorm.Dialector, error) {
	switch c.Type {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.Username,
			c.Password,
			c.Host,
			c.Port,
			c.Database,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			c.Host,
			c.Username,
			c.Password,
			c.Database,
			c.Port,
		)
		return postgres.Open(dsn), nil
	default:
		return nil, errors.Errorf("unsupported database type %q", c.Type)
	}
}

func SetupDatabaseConnection(c DatabaseConfig) (*gorm.DB, error) {
	dialector, err := c.dialector()
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if c.Debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.LoginToken{},
		&models.Product{},
		&models.CartLine{},
		&models.WishlistEntry{},
	)
	return errors.Wrap(err, "migrate schema")
}

func SetupRedisConnection(c RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.Database,
	})
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/tablerest/core/backend"
	"github.com/relabs-tech/tablerest/core/csql"
)

// Service holds the configuration for this service
//
// use DB_DRIVER=postgres DB_HOST=localhost DB_PORT=5432 DB_USER=postgres DB_PASSWORD=docker DB_NAME=postgres
// for a local postgres container
type Service struct {
	Driver      string        `env:"DB_DRIVER,default=mysql" description:"the database dialect, mysql, postgres or sqlite"`
	Host        string        `env:"DB_HOST,default=localhost" description:"the database host"`
	Port        int           `env:"DB_PORT,default=3306" description:"the database port"`
	User        string        `env:"DB_USER,default=root" description:"the database user"`
	Password    string        `env:"DB_PASSWORD" description:"password of the database user"`
	Database    string        `env:"DB_NAME,default=northwind" description:"the database name, or the file for sqlite"`
	Schema      string        `env:"DB_SCHEMA" description:"the postgres schema, public by default"`
	PoolSize    int           `env:"DB_POOL_SIZE,default=10" description:"maximum number of open database connections"`
	PoolRecycle time.Duration `env:"DB_POOL_RECYCLE,default=1h" description:"maximum lifetime of a database connection"`

	ListenAddress string `env:"LISTEN_ADDR,default=:8000" description:"the address the http server listens on"`
	LogLevel      string `env:"LOG_LEVEL,default=info" description:"one of trace, debug, info, warning, error"`

	DefaultLimit int `env:"LIST_DEFAULT_LIMIT,default=10" description:"page size of list requests without limit"`
	MaxLimit     int `env:"LIST_MAX_LIMIT,default=100" description:"largest page size of list requests"`

	KafkaBrokers string `env:"KAFKA_BROKERS" description:"comma separated kafka brokers, table notifications are disabled if empty"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=table_notification" description:"the topic of table notifications"`
}

// LoadService decodes the service configuration from the environment
func LoadService() (*Service, error) {
	s := &Service{}
	if err := envdecode.Decode(s); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("cannot decode environment: %w", err)
	}
	return s, nil
}

// Level returns the log level
func (s *Service) Level() (logrus.Level, error) {
	level, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return level, nil
}

// Configuration returns the database configuration
func (s *Service) Configuration() (csql.Configuration, error) {
	dialect, ok := csql.ParseDialect(s.Driver)
	if !ok {
		return csql.Configuration{}, fmt.Errorf("invalid DB_DRIVER '%s'", s.Driver)
	}
	return csql.Configuration{
		Dialect:     dialect,
		Host:        s.Host,
		Port:        s.Port,
		User:        s.User,
		Password:    s.Password,
		Database:    s.Database,
		Schema:      s.Schema,
		PoolSize:    s.PoolSize,
		PoolRecycle: s.PoolRecycle,
	}, nil
}

// Brokers returns the kafka brokers, nil if notifications are disabled
func (s *Service) Brokers() []string {
	var brokers []string
	for _, broker := range strings.Split(s.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// Builder returns the backend builder without database and router
func (s *Service) Builder() backend.Builder {
	return backend.Builder{
		DefaultLimit: s.DefaultLimit,
		MaxLimit:     s.MaxLimit,
	}
}

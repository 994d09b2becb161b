//go:build integration

// Package test runs the table REST api against real containers. It needs docker:
//
//	go test -tags integration ./test/...
package test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/relabs-tech/tablerest/core/backend"
	"github.com/relabs-tech/tablerest/core/client"
	"github.com/relabs-tech/tablerest/core/csql"
	"github.com/relabs-tech/tablerest/core/notify"
)

const notificationTopic = "table_notification"

const northwindDDL = `
CREATE TABLE categories (
	"CategoryID" SERIAL PRIMARY KEY,
	"CategoryName" VARCHAR(15) NOT NULL UNIQUE,
	"Description" TEXT
);
CREATE TABLE products (
	"ProductID" INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	"ProductName" VARCHAR(40) NOT NULL,
	"CategoryID" INTEGER REFERENCES categories("CategoryID"),
	"UnitPrice" NUMERIC(10,4) DEFAULT 0,
	"Discontinued" BOOLEAN NOT NULL DEFAULT false,
	"Released" DATE
);
CREATE TABLE customers (
	"CustomerID" CHAR(5) PRIMARY KEY,
	"CompanyName" VARCHAR(40) NOT NULL,
	"Preferences" JSONB
);
`

type IntegrationTestSuite struct {
	*backend.Backend
	srv    *http.Server
	client client.Client

	dbConn   *csql.DB
	router   *mux.Router
	notifier *notify.Kafka
	suite.Suite
	network           testcontainers.Network
	kafkaContainer    testcontainers.Container
	zookeeper         testcontainers.Container
	postgresContainer testcontainers.Container
	kafkaConn         *kafka.Conn
	kafkaAddr         string
}

func (s *IntegrationTestSuite) createTopic(topic string, numPartitions int) error {
	if s.kafkaConn == nil {
		return fmt.Errorf("kafka connection is not established")
	}

	err := s.kafkaConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	return nil
}

// reader returns a reader for the notification topic, starting at the first message
func (s *IntegrationTestSuite) reader() *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:   []string{s.kafkaAddr},
		Topic:     notificationTopic,
		Partition: 0,
		MaxWait:   500 * time.Millisecond,
	})
}

func (s *IntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	// Create a shared Docker network for Kafka and Zookeeper
	networkName := "test-kafka-network_" + fmt.Sprintf("%d", time.Now().Unix())
	network, err := testcontainers.GenericNetwork(ctx, testcontainers.GenericNetworkRequest{
		NetworkRequest: testcontainers.NetworkRequest{
			Name:           networkName,
			CheckDuplicate: true,
		},
	})
	s.Require().NoError(err)
	s.network = network

	postgresUser := "testuser"
	postgresPassword := "testpass"
	postgresDB := "northwind"

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:15",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		Networks:       []string{networkName},
		NetworkAliases: map[string][]string{networkName: {"postgres"}},
		WaitingFor:     wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	s.Require().NoError(err)
	s.postgresContainer = pgC

	pgHost, err := pgC.Host(ctx)
	s.Require().NoError(err)
	pgPort, err := pgC.MappedPort(ctx, "5432")
	s.Require().NoError(err)

	zooReq := testcontainers.ContainerRequest{
		Image:        "confluentinc/cp-zookeeper:7.5.0",
		ExposedPorts: []string{"2181/tcp"},
		Env: map[string]string{
			"ZOOKEEPER_CLIENT_PORT": "2181",
			"ZOOKEEPER_TICK_TIME":   "2000",
		},
		WaitingFor:     wait.ForListeningPort("2181/tcp"),
		Networks:       []string{networkName},
		NetworkAliases: map[string][]string{networkName: {"zookeeper"}},
	}
	s.zookeeper, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: zooReq,
		Started:          true,
	})
	s.Require().NoError(err)

	kafkaReq := testcontainers.ContainerRequest{
		Image:        "confluentinc/cp-kafka:7.5.0",
		ExposedPorts: []string{"9092:9092/tcp", "29092:29092/tcp"},
		Env: map[string]string{
			"KAFKA_BROKER_ID":                        "1",
			"KAFKA_ZOOKEEPER_CONNECT":                "zookeeper:2181",
			"KAFKA_LISTENERS":                        "PLAINTEXT://0.0.0.0:9092,PLAINTEXT_HOST://0.0.0.0:29092,EXTERNAL://0.0.0.0:9093",
			"KAFKA_ADVERTISED_LISTENERS":             "PLAINTEXT://localhost:9092,PLAINTEXT_HOST://localhost:29092,EXTERNAL://kafka:9093",
			"KAFKA_LISTENER_SECURITY_PROTOCOL_MAP":   "PLAINTEXT:PLAINTEXT,PLAINTEXT_HOST:PLAINTEXT,EXTERNAL:PLAINTEXT",
			"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR": "1",
			"ALLOW_PLAINTEXT_LISTENER":               "yes",
		},
		WaitingFor:     wait.ForLog("started (kafka.server.KafkaServer)"),
		Networks:       []string{networkName},
		NetworkAliases: map[string][]string{networkName: {"kafka"}},
	}
	kafkaC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: kafkaReq,
		Started:          true,
	})
	s.Require().NoError(err)
	s.kafkaContainer = kafkaC

	kafkaHost, err := kafkaC.Host(ctx)
	s.Require().NoError(err)
	kafkaPort, err := kafkaC.MappedPort(ctx, "9092")
	s.Require().NoError(err)
	s.kafkaAddr = net.JoinHostPort(kafkaHost, kafkaPort.Port())

	s.kafkaConn, err = kafka.Dial("tcp", s.kafkaAddr)
	s.Require().NoError(err)
	err = s.createTopic(notificationTopic, 1)
	s.Require().NoError(err, "Failed to create table_notification topic")

	port, err := strconv.Atoi(pgPort.Port())
	s.Require().NoError(err)
	s.dbConn, err = csql.Open(ctx, csql.Configuration{
		Dialect:  csql.Postgres,
		Host:     pgHost,
		Port:     port,
		User:     postgresUser,
		Password: postgresPassword,
		Database: postgresDB,
	})
	s.Require().NoError(err)
	_, err = s.dbConn.ExecContext(ctx, northwindDDL)
	s.Require().NoError(err)

	s.notifier = notify.NewKafka([]string{s.kafkaAddr}, notificationTopic)
	s.router = mux.NewRouter()
	s.Backend, err = backend.New(ctx, &backend.Builder{
		DB:       s.dbConn,
		Router:   s.router,
		Notifier: s.notifier,
	})
	s.Require().NoError(err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		err := s.srv.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			s.T().Errorf("Failed to start HTTP server: %v", err)
		}
	}()
	s.client = client.NewWithURL("http://" + listener.Addr().String())
}

func (s *IntegrationTestSuite) TearDownSuite() {
	ctx := context.Background()
	// Stop the HTTP server
	if s.srv != nil {
		err := s.srv.Shutdown(ctx)
		s.Require().NoError(err)
	}
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.kafkaConn != nil {
		s.kafkaConn.Close()
	}
	if s.dbConn != nil {
		s.dbConn.Close()
	}

	for _, c := range []testcontainers.Container{s.kafkaContainer, s.zookeeper, s.postgresContainer} {
		if c != nil {
			err := c.Terminate(ctx)
			s.Require().NoError(err)
		}
	}
	if s.network != nil {
		s.network.Remove(ctx)
	}
}

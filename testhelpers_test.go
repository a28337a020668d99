//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/adapter"
	"github.com/pitlane/service-booking/internal/application"
	"github.com/pitlane/service-booking/internal/domain/catalog"
	"github.com/pitlane/service-booking/internal/domain/schedule"
	bookingEvents "github.com/pitlane/service-booking/internal/events"
	"github.com/pitlane/service-booking/internal/lock"
	"github.com/pitlane/service-booking/internal/platform/kafka"
	"github.com/pitlane/service-booking/internal/repository"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	Redis        *redis.Client
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Reservations *application.ReservationService
	Payments     *application.PaymentService
	Gateway      *adapter.MockGateway
	Consumer     *bookingEvents.PaymentNotificationConsumer
	Clock        *testClock
	cleanup      []func()
}

func (s *bookingStack) Close() {
	for _, fn := range s.cleanup {
		fn()
	}
}

// testClock is a settable time source shared by the services.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// monday is the fixed "now" of every integration test; the 12th is a Wednesday.
var monday = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

// setupPostgres starts a PostgreSQL container and returns a migrated GORM DB.
func setupPostgres(t *testing.T) (*gorm.DB, func()) {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_booking sslmode=disable TimeZone=UTC", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(repository.Models()...))

	return db, func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}
}

// setupRedis starts a Redis container for the distributed slot lock.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := lock.NewRedisClient(net.JoinHostPort(host, port.Port()), "", 0)
	require.NoError(t, err, "failed to connect to Redis")

	return client, func() {
		_ = client.Close()
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	}
}

// setupContainers starts PostgreSQL, Redis and Kafka.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	db, stopPG := setupPostgres(t)
	rdb, stopRedis := setupRedis(t)

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, bookingEvents.TopicReservationEvents, bookingEvents.TopicPaymentNotifications)

	return &testInfra{
		DB:           db,
		Redis:        rdb,
		KafkaBrokers: kafkaBrokers,
		Cleanup: func() {
			if err := kafkaContainer.Terminate(ctx); err != nil {
				t.Logf("failed to terminate Kafka container: %v", err)
			}
			stopRedis()
			stopPG()
		},
	}
}

// setupBookingStack wires the services against real repositories. A nil
// Redis client selects the in-process lock; no brokers disables Kafka.
func setupBookingStack(t *testing.T, db *gorm.DB, rdb *redis.Client, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	stack := &bookingStack{
		Gateway: adapter.NewMockGateway(logger),
		Clock:   &testClock{now: monday},
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, "test:", 5*time.Second)
	}

	var publisher application.EventPublisher = application.NoopPublisher{}
	if len(brokers) > 0 {
		producer := kafka.NewProducer(brokers, logger)
		stack.cleanup = append(stack.cleanup, func() { _ = producer.Close() })
		publisher = bookingEvents.NewReservationPublisher(producer)
	}

	settings := catalog.NewSettings(6, time.UTC, schedule.Default(), nil)
	tx := repository.NewTxManager(db)

	stack.Reservations = application.NewReservationService(
		repository.NewReservationRepository(db),
		repository.NewGormPromoRepository(db, logger),
		tx, locker, settings, publisher, logger,
	).WithClock(stack.Clock.Now)

	stack.Payments = application.NewPaymentService(
		repository.NewPaymentRepository(db),
		stack.Reservations,
		stack.Gateway,
		tx,
		application.CheckoutURLs{NotificationURL: "https://book.test/api/v1/payments/webhook"},
		logger,
	).WithClock(stack.Clock.Now)

	if len(brokers) > 0 {
		groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
		stack.Consumer = bookingEvents.NewPaymentNotificationConsumer(brokers, groupID, stack.Payments, logger)
		stack.cleanup = append(stack.cleanup, func() { _ = stack.Consumer.Close() })
	}
	return stack
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data any) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForReservationStatus polls the reservations table until the status matches.
func waitForReservationStatus(t *testing.T, db *gorm.DB, id uuid.UUID, expected string, timeout time.Duration) repository.ReservationModel {
	t.Helper()
	var result repository.ReservationModel
	require.Eventually(t, func() bool {
		var model repository.ReservationModel
		if err := db.Where("id = ?", id).First(&model).Error; err != nil {
			return false
		}
		if model.Status == expected {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "reservation did not transition to %s", expected)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the
// expected type about subject.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType, subject string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType && ce.Subject == subject {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	require.NoError(t, controllerConn.CreateTopics(topicConfigs...), "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}

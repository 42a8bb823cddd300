//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/atlastours/service-booking/internal/application"
	"github.com/atlastours/service-booking/internal/domain/payment"
	"github.com/atlastours/service-booking/internal/domain/policy"
	"github.com/atlastours/service-booking/internal/domain/pricing"
	"github.com/atlastours/service-booking/internal/domain/timeslot"
	tourDomain "github.com/atlastours/service-booking/internal/domain/tour"
	"github.com/atlastours/service-booking/internal/events"
	"github.com/atlastours/service-booking/internal/repository"
	"github.com/atlastours/service-booking/pkg/kafka"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Service         *application.BookingService
	Consumer        *events.PaymentConsumer
	Gateway         *stubGateway
	BookingRepo     *repository.GormBookingRepository
	SlotRepo        *repository.GormTimeSlotRepository
	TourRepo        *repository.GormTourRepository
	CleanupProducer func()
}

// stubGateway answers processor calls locally so integration tests exercise
// the database and Kafka paths without a payment service.
type stubGateway struct {
	balance int64
}

func (g *stubGateway) Charge(ctx context.Context, req payment.ChargeRequest) (string, error) {
	return "ch_" + uuid.New().String()[:8], nil
}

func (g *stubGateway) Refund(ctx context.Context, req payment.RefundRequest) (string, error) {
	return "re_" + uuid.New().String()[:8], nil
}

func (g *stubGateway) ReverseTransfer(ctx context.Context, req payment.ReversalRequest) (string, error) {
	return "trr_" + uuid.New().String()[:8], nil
}

func (g *stubGateway) AvailableBalance(ctx context.Context, accountRef string) (int64, error) {
	return g.balance, nil
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
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

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_booking sslmode=disable", pgHost, pgPort.Port())

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

	require.NoError(t, db.AutoMigrate(
		&repository.TourModel{},
		&repository.TimeSlotModel{},
		&repository.BookingModel{},
	))

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, "booking.events", "payment.events")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the full booking service stack.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewGormBookingRepository(db)
	tourRepo := repository.NewGormTourRepository(db)
	slotRepo := repository.NewGormTimeSlotRepository(db)

	gateway := &stubGateway{balance: 1 << 30}
	router := payment.NewSettlementRouter(gateway, logger)

	producer := kafka.NewProducer(brokers, logger)
	publisher := events.NewPublisher(producer, "booking.events", logger)

	service := application.NewBookingService(bookingRepo, tourRepo, slotRepo, gateway, router, publisher, logger)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := events.NewPaymentConsumer(
		kafka.NewConsumer(brokers, groupID, "payment.events", logger),
		service,
		logger,
	)

	return &bookingStack{
		Service:         service,
		Consumer:        consumer,
		Gateway:         gateway,
		BookingRepo:     bookingRepo,
		SlotRepo:        slotRepo,
		TourRepo:        tourRepo,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedTourWithSlot persists a per-person tour and one future slot.
func seedTourWithSlot(t *testing.T, stack *bookingStack, capacity int) (*tourDomain.Tour, *timeslot.TimeSlot) {
	t.Helper()
	ctx := context.Background()

	cfg := pricing.Configuration{Mode: pricing.ModePerPerson, PerPersonPriceCents: 5000}
	tr, err := tourDomain.NewTour(uuid.New(), "acct_test", "Harbor Kayak Tour", "", "USD", cfg, policy.Flexible)
	require.NoError(t, err)
	require.NoError(t, stack.TourRepo.Save(ctx, tr))

	start := time.Now().UTC().Add(72 * time.Hour)
	slot, err := timeslot.NewTimeSlot(tr.ID(), start, start.Add(3*time.Hour), capacity)
	require.NoError(t, err)
	require.NoError(t, stack.SlotRepo.Save(ctx, slot))

	return tr, slot
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		err := db.Where("id = ?", bookingID).First(&model).Error
		if err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
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
		if ce.Type == expectedType {
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
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}

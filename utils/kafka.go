package utils

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	mailWriter   *kafka.Writer
	kafkaBrokers []string
	mailTopic    string
)

// InitializeKafka sets up the mail-dispatch writer. When KAFKA_BROKERS is
// unset the queue is disabled and callers fall back to direct sends.
func InitializeKafka() {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		log.Println("ℹ️ KAFKA_BROKERS not set, mail queue disabled (direct send)")
		return
	}
	kafkaBrokers = strings.Split(brokers, ",")

	mailTopic = os.Getenv("KAFKA_MAIL_TOPIC")
	if mailTopic == "" {
		mailTopic = "bgv.mail.dispatch"
	}

	mailWriter = &kafka.Writer{
		Addr:         kafka.TCP(kafkaBrokers...),
		Topic:        mailTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	log.Printf("✅ Kafka mail writer ready (topic %s)", mailTopic)
}

// KafkaEnabled reports whether the dispatch queue is configured.
func KafkaEnabled() bool {
	return mailWriter != nil
}

// PublishMailJob enqueues one serialized mail job.
func PublishMailJob(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return mailWriter.WriteMessages(ctx, kafka.Message{Value: payload})
}

// NewMailReader returns a reader on the mail topic for the in-process
// consumer.
func NewMailReader() *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkaBrokers,
		Topic:    mailTopic,
		GroupID:  "bgv-mailer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

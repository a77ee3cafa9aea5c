// Package kafka prepares the broker for image events: readiness probing and topic creation
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Events are informational, one partition keeps them ordered per topic
const (
	eventPartitions  = 1
	eventReplication = 1
)

// InitKafkaTopics creates the event topics, retrying until every topic exists or ctx is done
func InitKafkaTopics(ctx context.Context, brokerAddr string, delay time.Duration, topics ...string) error {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}
	req := kafkago.CreateTopicsRequest{Topics: topicConfigs(topics)}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("topic creation interrupted: %w", err)
		}

		resp, err := client.CreateTopics(ctx, &req)
		if err != nil {
			log.Printf("Failed to run topics creation request: %v\nWait %v before next try...", err, delay)
			sleepCtx(ctx, delay)
			continue
		}

		failed := failedTopics(resp.Errors)
		if len(failed) == 0 {
			log.Printf("Event topics ready: %v", topics)
			return nil
		}
		for name, tErr := range failed {
			log.Printf("Topic %q creation error: %v", name, tErr)
		}
		sleepCtx(ctx, delay)
	}
}

func topicConfigs(topics []string) []kafkago.TopicConfig {
	res := make([]kafkago.TopicConfig, 0, len(topics))
	for _, t := range topics {
		res = append(res, kafkago.TopicConfig{
			Topic:             t,
			NumPartitions:     eventPartitions,
			ReplicationFactor: eventReplication,
		})
	}
	return res
}

// failedTopics drops topics that were created or already existed
func failedTopics(errs map[string]error) map[string]error {
	res := make(map[string]error)
	for name, err := range errs {
		if err == nil || errors.Is(err, kafkago.TopicAlreadyExists) {
			continue
		}
		res[name] = err
	}
	return res
}

// WaitKafkaReady blocks until the broker accepts a TCP connection. Returns false if ctx is done first.
func WaitKafkaReady(ctx context.Context, brokerAddr string, delay time.Duration) bool {
	for {
		conn, err := kafkago.DialContext(ctx, "tcp", brokerAddr)
		if err == nil {
			if errConn := conn.Close(); errConn != nil {
				log.Println("Failed to close readiness connection to Kafka:", errConn)
			}
			log.Printf("Kafka at %s is ready", brokerAddr)
			return true
		}
		log.Printf("Kafka at %s not ready (%v), retrying in %v...", brokerAddr, err, delay)
		if !sleepCtx(ctx, delay) {
			return false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Command stack-check probes every backing service the review server talks
// to: Redis for the bounds snapshot, the platform API for dataset bounds, and
// Kafka for dataset refresh events. It is meant for a quick "is my compose
// stack up" answer before starting the server itself.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/model"
	"github.com/shiroinekotfs/DanesfieldApp/internal/refresh"
	"github.com/shiroinekotfs/DanesfieldApp/internal/views/cellcover"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func checkRedis(ctx context.Context, addr string) error {
	fmt.Println("Redis check")
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
	})
	defer func() { _ = client.Close() }()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	if err := client.Set(ctx, "review:stack-check", "ok", 30*time.Second).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	val, err := client.Get(ctx, "review:stack-check").Result()
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}

	fmt.Println("redis GET review:stack-check:", val)
	return nil
}

func checkPlatform(baseURL string) error {
	fmt.Println("Platform API check")

	boundsURL := fmt.Sprintf("%s/dataset/bounds", strings.TrimRight(baseURL, "/"))
	u, err := url.Parse(boundsURL)
	if err != nil {
		return fmt.Errorf("bad platform URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	resp, err := http.Get(u.String())
	if err != nil {
		return fmt.Errorf("http get bounds: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Only read a small part of body (because it can be large)
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bounds status %d: %s", resp.StatusCode, string(b))
	}

	// Only read a small part of body (because it can be large)
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	fmt.Println("bounds sample:")
	fmt.Println(string(body))
	return nil
}

func checkKafka(brokers []string, topic string) error {
	fmt.Println("Kafka check")

	// Same protocol version the refresh consumer pins
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Version = sarama.V2_5_0_0
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("producer create: %w", err)
	}
	defer func() { _ = prod.Close() }()

	// Produce a well-formed refresh event so a running server treats the
	// probe as a real reload trigger rather than a decode error.
	event := refresh.Event{
		Version:   1,
		Op:        "updated",
		DatasetID: "stack-check",
		TS:        time.Now().UTC(),
	}
	msgBytes, _ := json.Marshal(event)
	_, _, err = prod.SendMessage(&sarama.ProducerMessage{
		Topic: topic, Value: sarama.ByteEncoder(msgBytes),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	fmt.Println("produced one refresh event")

	consumer, err := sarama.NewConsumer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("consumer create: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	pc, err := consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		pc, err = consumer.ConsumePartition(topic, 0, sarama.OffsetOldest)
		if err != nil {
			return fmt.Errorf("consume partition: %w", err)
		}
	}
	defer func() { _ = pc.Close() }()

	select {
	case m := <-pc.Messages():
		fmt.Println("consumed:", string(m.Value))
	case <-time.After(5 * time.Second):
		fmt.Println("no message consumed (timeout)")
	}

	return nil
}

func demoCellCover() error {
	fmt.Println("Cell cover demo")

	// Square over the Jacksonville demo dataset, wide enough to catch cell
	// centers at the default resolution
	square := geojson.NewGeometry(orb.Polygon{{
		{-81.72, 30.27}, {-81.62, 30.27}, {-81.62, 30.37}, {-81.72, 30.37}, {-81.72, 30.27},
	}})
	cond := model.NewRegionCondition(square)

	cover, err := cellcover.New(nil, 7, 5, 9, 16)
	if err != nil {
		return fmt.Errorf("cover create: %w", err)
	}
	cells, err := cover.CellsForConditions([]model.Condition{cond}, cover.Resolve(-1))
	if err != nil {
		return fmt.Errorf("cover compute: %w", err)
	}
	fmt.Printf("cells at default res: %d\n", len(cells))
	if len(cells) > 0 {
		fmt.Println("first cell:", cells[0])
	}
	return nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	redisAddr := getenv("REDIS_ADDR", "localhost:6379")
	platform := getenv("BACKEND_URL", "http://localhost:8080/api/v1")
	brokers := strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ",")
	topic := getenv("KAFKA_TOPIC", "dataset-events")

	if err := checkRedis(ctx, redisAddr); err != nil {
		fmt.Println("Redis error:", err)
		return
	}
	if err := checkPlatform(platform); err != nil {
		fmt.Println("Platform error:", err)
		return
	}
	if err := checkKafka(brokers, topic); err != nil {
		fmt.Println("Kafka error:", err)
		return
	}
	if err := demoCellCover(); err != nil {
		fmt.Println("Cell cover error:", err)
		return
	}
	fmt.Println("All checks completed")
}

// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"xuanji-chat-go/internal/config"
	"xuanji-chat-go/pkg/events"
	"xuanji-chat-go/pkg/log"
)

const (
	consumerGroupID = "xuanji-chat-analysis-recorder"
	maxAttempts     = 3
)

// EventHandler 处理一条分析事件。
// 它将 Kafka 消费者与具体的落库实现解耦。
type EventHandler interface {
	HandleAnalysisEvent(ctx context.Context, event events.AnalysisEvent) error
}

// Producer 向 Kafka 投递分析事件。
type Producer struct {
	writer *kafka.Writer
}

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers(cfg)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}}
	log.Info("Kafka 生产者初始化成功")
	return p
}

// PublishAnalysisEvent 发送一个分析事件，以会话 ID 为 key 保证同一会话内有序。
func (p *Producer) PublishAnalysisEvent(ctx context.Context, event events.AnalysisEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(event.SessionID), Value: value}); err != nil {
		return fmt.Errorf("failed to publish analysis event: %w", err)
	}
	return nil
}

// Close 关闭生产者并刷新未发送的消息。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者，将分析事件交给 handler 处理，直到 ctx 取消。
// rdb 用于记录失败次数，为 nil 时失败的消息不提交 offset，由 Kafka 重新投递。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, handler EventHandler, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  consumerGroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		var event events.AnalysisEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		if err := handler.HandleAnalysisEvent(ctx, event); err != nil {
			log.Errorf("处理分析事件失败: event=%s, Error: %v", event.EventID, err)
			if rdb == nil {
				continue
			}
			// 使用 Redis 计数失败次数，达到阈值后提交 offset 终止重试
			attemptsKey := fmt.Sprintf("kafka:attempts:%s", event.EventID)
			attempts, incErr := rdb.Incr(ctx, attemptsKey).Result()
			if incErr != nil {
				continue
			}
			_ = rdb.Expire(ctx, attemptsKey, 24*time.Hour).Err()
			if attempts >= maxAttempts {
				log.Errorf("分析事件多次处理失败(>=%d)，提交 offset 终止重试: event=%s", maxAttempts, event.EventID)
				commit(ctx, r, m)
			}
			continue
		}

		if rdb != nil {
			_ = rdb.Del(ctx, fmt.Sprintf("kafka:attempts:%s", event.EventID)).Err()
		}
		commit(ctx, r, m)
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

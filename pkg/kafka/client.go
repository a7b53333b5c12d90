// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"pmatch-go/internal/config"
	"pmatch-go/pkg/log"
	"pmatch-go/pkg/tasks"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.ProfileEmbedTask) error
}

// Producer 封装了画像向量化任务的生产端。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// ProduceEmbedTask 发送一个画像向量化任务到 Kafka。
func (p *Producer) ProduceEmbedTask(ctx context.Context, task tasks.ProfileEmbedTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ProfileID),
		Value: taskBytes,
	})
}

// Close 关闭生产者连接。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer 封装了画像向量化任务的消费端。
// 失败次数记录在 Redis，达到阈值后提交 offset 终止重试。
type Consumer struct {
	cfg config.KafkaConfig
	rdb *redis.Client
}

// NewConsumer 创建 Kafka 消费者。
func NewConsumer(cfg config.KafkaConfig, rdb *redis.Client) *Consumer {
	return &Consumer{cfg: cfg, rdb: rdb}
}

// Start 启动消费循环，processor 同步处理每条任务。
// ctx 取消后循环退出。
func (c *Consumer) Start(ctx context.Context, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{c.cfg.Brokers},
		Topic:    c.cfg.Topic,
		GroupID:  c.cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", c.cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者收到取消信号，退出")
				break
			}
			log.Error("从 Kafka 读取消息失败", err)
			break
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		var task tasks.ProfileEmbedTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infof("开始处理画像向量化任务: ProfileID=%s, Name=%s", task.ProfileID, task.Name)
		if err := processor.Process(ctx, task); err != nil {
			log.Errorf("处理画像向量化任务失败: ProfileID=%s, Error: %v", task.ProfileID, err)
			// 使用 Redis 计数失败次数，达到阈值后提交 offset 终止重试
			attemptsKey := fmt.Sprintf("kafka:attempts:%s", task.ProfileID)
			attempts, incErr := c.rdb.Incr(ctx, attemptsKey).Result()
			if incErr == nil {
				_ = c.rdb.Expire(ctx, attemptsKey, 24*time.Hour).Err()
			}
			if incErr != nil {
				// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
				continue
			}
			if attempts >= 3 {
				log.Errorf("画像任务多次失败(>=3)，提交 offset 终止重试: ProfileID=%s", task.ProfileID)
				if err := r.CommitMessages(ctx, m); err != nil {
					log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
				}
			}
			// attempts < 3 时，不提交 offset 让 Kafka 自动重试
		} else {
			log.Infof("画像向量化任务处理成功: ProfileID=%s", task.ProfileID)
			// 清理失败计数
			_ = c.rdb.Del(ctx, fmt.Sprintf("kafka:attempts:%s", task.ProfileID)).Err()
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

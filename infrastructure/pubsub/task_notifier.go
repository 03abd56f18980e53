package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"autouploader/domain/dto"
	"autouploader/domain/repository"
	"autouploader/infrastructure/logger"

	"cloud.google.com/go/pubsub"
)

// TaskNotifier publishes terminal task events to a Pub/Sub topic.
type TaskNotifier struct {
	client    *pubsub.Client
	topicName string

	mu    sync.Mutex
	topic *pubsub.Topic
}

func NewTaskNotifier(client *pubsub.Client, topicName string) *TaskNotifier {
	return &TaskNotifier{client: client, topicName: topicName}
}

var _ repository.ITaskNotifier = (*TaskNotifier)(nil)

func (n *TaskNotifier) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.topic != nil {
		return n.topic, nil
	}

	topic := n.client.Topic(n.topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.GetLogger().WithField("topic", n.topicName).Info("Topic doesn't exist, creating it")
		topic, err = n.client.CreateTopic(ctx, n.topicName)
		if err != nil {
			return nil, err
		}
	}
	n.topic = topic
	return topic, nil
}

func (n *TaskNotifier) Notify(ctx context.Context, event dto.TaskEvent) error {
	topic, err := n.ensureTopic(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare topic %s: %w", n.topicName, err)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal task event: %w", err)
	}

	serverID, err := topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"type": event.Type, "task_id": event.Task.ID},
	}).Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish task event: %w", err)
	}

	logger.GetLogger().WithField("server_id", serverID).WithField("task_id", event.Task.ID).Debug("Task event published")
	return nil
}

// Close flushes pending publishes.
func (n *TaskNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.topic != nil {
		n.topic.Stop()
	}
}

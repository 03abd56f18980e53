package servicebus

import (
	"context"
	"encoding/json"
	"fmt"

	"autouploader/domain/dto"
	"autouploader/domain/repository"
	"autouploader/infrastructure/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// TaskNotifier sends terminal task events to a Service Bus queue.
type TaskNotifier struct {
	sender messageSender
	queue  string
}

func NewTaskNotifier(client *azservicebus.Client, queue string) (*TaskNotifier, error) {
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while making new sender service bus.")
		return nil, err
	}
	return newTaskNotifier(sender, queue), nil
}

func newTaskNotifier(sender messageSender, queue string) *TaskNotifier {
	return &TaskNotifier{sender: sender, queue: queue}
}

var _ repository.ITaskNotifier = (*TaskNotifier)(nil)

func (n *TaskNotifier) Notify(ctx context.Context, event dto.TaskEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal task event: %w", err)
	}
	contentType := "application/json"
	subject := event.Type
	messageID := event.Task.ID + ":" + event.Type
	msg := &azservicebus.Message{
		Body:                  body,
		ContentType:           &contentType,
		Subject:               &subject,
		MessageID:             &messageID,
		ApplicationProperties: map[string]any{"task_id": event.Task.ID},
	}
	if err := n.sender.SendMessage(ctx, msg, nil); err != nil {
		return fmt.Errorf("failed to send task event to %s: %w", n.queue, err)
	}
	return nil
}

func (n *TaskNotifier) Close(ctx context.Context) {
	if err := n.sender.Close(ctx); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while closing sender.")
	}
}

package servicebus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"autouploader/domain/dto"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent    []*azservicebus.Message
	sendErr error
	closed  bool
}

func (f *fakeSender) SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeSender) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func TestTaskNotifier_Notify(t *testing.T) {
	sender := &fakeSender{}
	n := newTaskNotifier(sender, "upload-events")

	event := dto.TaskEvent{Type: dto.TaskEventFailed, Task: dto.TaskSnapshot{ID: "task-9", Filename: "b.mp4"}}
	require.NoError(t, n.Notify(context.Background(), event))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, dto.TaskEventFailed, *msg.Subject)
	assert.Equal(t, "task-9:task.failed", *msg.MessageID)
	assert.Equal(t, "task-9", msg.ApplicationProperties["task_id"])

	var decoded dto.TaskEvent
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "b.mp4", decoded.Task.Filename)

	n.Close(context.Background())
	assert.True(t, sender.closed)
}

func TestTaskNotifier_SendError(t *testing.T) {
	n := newTaskNotifier(&fakeSender{sendErr: errors.New("amqp link detached")}, "upload-events")
	err := n.Notify(context.Background(), dto.TaskEvent{Type: dto.TaskEventCompleted})
	assert.ErrorContains(t, err, "amqp link detached")
}

func TestNewServiceBus_EmptyNamespace(t *testing.T) {
	_, err := NewServiceBus(context.Background(), "")
	assert.Error(t, err)
}

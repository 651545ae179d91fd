package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/payorch/payorch-backend-sqs/internal/core"
	"github.com/payorch/payorch-backend-sqs/internal/state"
)

// Workflow executes one kind of process-tracker job. Execute runs the job
// from the top and must be safe to re-run on redelivery. OnError handles a
// failed execution and decides whether the process is retired.
type Workflow interface {
	Execute(ctx context.Context, process *core.ProcessTracker) error
	OnError(ctx context.Context, process *core.ProcessTracker, execErr error) error
}

// Consumer receives promoted processes from SQS and dispatches them to
// registered workflows by process name.
type Consumer struct {
	sqsClient *sqs.Client
	store     state.TrackerStore
	queueURL  string
	logger    *slog.Logger

	mu        sync.RWMutex
	workflows map[string]Workflow

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewConsumer creates a Consumer over the tracker queue.
func NewConsumer(sqsClient *sqs.Client, store state.TrackerStore, queueURL string) *Consumer {
	return &Consumer{
		sqsClient: sqsClient,
		store:     store,
		queueURL:  queueURL,
		logger:    slog.Default(),
		workflows: make(map[string]Workflow),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// SetLogger sets the logger for the consumer.
func (c *Consumer) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// RegisterWorkflow installs the workflow for a process name. Later
// registrations replace earlier ones.
func (c *Consumer) RegisterWorkflow(name string, wf Workflow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workflows[name] = wf
}

func (c *Consumer) workflow(name string) (Workflow, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	wf, ok := c.workflows[name]
	return wf, ok
}

// Start launches the receive loop in a goroutine.
func (c *Consumer) Start() {
	go c.runLoop()
	c.logger.Info("tracker consumer started", "queue_url", c.queueURL)
}

// Stop signals the receive loop to exit and waits for it. Safe to call more
// than once.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		<-c.done
		c.logger.Info("tracker consumer stopped")
	})
}

func (c *Consumer) runLoop() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		result, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     10, // Long polling
		})
		cancel()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("failed to receive tracker messages", "error", err)
			select {
			case <-c.stop:
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		for _, msg := range result.Messages {
			c.handleMessage(context.Background(), msg)
		}
	}
}

// handleMessage runs one promoted process to its next state. The SQS message
// is deleted on every decided outcome; only transient infrastructure errors
// leave it for redelivery.
func (c *Consumer) handleMessage(ctx context.Context, msg sqstypes.Message) {
	var task taskMessage
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &task); err != nil {
		c.logger.Error("malformed tracker message, dropping", "error", err)
		c.deleteMessage(ctx, msg)
		return
	}

	process, err := c.store.GetProcess(ctx, task.ProcessID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			c.logger.Warn("tracker message for unknown process, dropping", "process_id", task.ProcessID)
			c.deleteMessage(ctx, msg)
			return
		}
		// Transient store failure. Leave the message for redelivery.
		c.logger.Error("failed to load process", "process_id", task.ProcessID, "error", err)
		return
	}

	// Redelivered message for an already-retired job.
	if process.IsFinished() {
		c.deleteMessage(ctx, msg)
		return
	}

	wf, ok := c.workflow(process.Name)
	if !ok {
		c.logger.Error("no workflow registered for process", "process_id", process.ID, "name", process.Name)
		c.deleteMessage(ctx, msg)
		return
	}

	if err := wf.Execute(ctx, process); err != nil {
		if handlerErr := wf.OnError(ctx, process, err); handlerErr != nil {
			c.logger.Error("workflow error handler failed",
				"process_id", process.ID,
				"name", process.Name,
				"error", handlerErr,
			)
		}
	}
	c.deleteMessage(ctx, msg)
}

func (c *Consumer) deleteMessage(ctx context.Context, msg sqstypes.Message) {
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		c.logger.Error("failed to delete tracker message", "error", err)
	}
}

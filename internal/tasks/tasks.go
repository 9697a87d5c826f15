package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/config"
	"opalpixel/invoicing/internal/email"
	"opalpixel/invoicing/internal/models"
	"opalpixel/invoicing/internal/storage"
)

// TaskType defines the type of a background task.
const (
	TypeReceiptNotify  = "receipt:notify"
	TypeReceiptArchive = "receipt:archive"
)

// ReceiptPayload is the snapshot both receipt tasks work from.
type ReceiptPayload struct {
	Invoice models.Invoice `json:"invoice"`
	Receipt models.Receipt `json:"receipt"`
}

// --- Task Client (Enqueuing tasks) ---

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// Enqueuer is the part of *asynq.Client the publisher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher turns issued receipts into background tasks.
type Publisher struct {
	client  Enqueuer
	archive bool
	logger  *zap.Logger
}

func NewPublisher(client Enqueuer, archive bool, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, archive: archive, logger: logger}
}

// ReceiptIssued enqueues the client notification and, when enabled, the archive upload.
func (p *Publisher) ReceiptIssued(ctx context.Context, invoice *models.Invoice, receipt *models.Receipt) error {
	payload, err := json.Marshal(ReceiptPayload{Invoice: *invoice, Receipt: *receipt})
	if err != nil {
		return fmt.Errorf("failed to marshal receipt payload: %w", err)
	}

	var errs []error
	if invoice.ClientEmail != nil && *invoice.ClientEmail != "" {
		errs = append(errs, p.enqueue(ctx, TypeReceiptNotify, receipt.ReceiptNumber, payload, asynq.Queue("default"), asynq.MaxRetry(5)))
	}
	if p.archive {
		errs = append(errs, p.enqueue(ctx, TypeReceiptArchive, receipt.ReceiptNumber, payload, asynq.Queue("low"), asynq.MaxRetry(10)))
	}
	return errors.Join(errs...)
}

func (p *Publisher) enqueue(ctx context.Context, taskType, receiptNumber string, payload []byte, opts ...asynq.Option) error {
	// One task per receipt and type.
	opts = append(opts, asynq.TaskID(taskType+":"+receiptNumber))
	info, err := p.client.EnqueueContext(ctx, asynq.NewTask(taskType, payload), opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("failed to enqueue %s for %s: %w", taskType, receiptNumber, err)
	}
	p.logger.Debug("task enqueued", zap.String("type", taskType), zap.String("id", info.ID), zap.String("queue", info.Queue))
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
	storage     storage.IS3Storage // nil disables archiving
	logger      *zap.Logger
}

func NewTaskProcessor(cfg *config.Config, emailSender email.Sender, store storage.IS3Storage, logger *zap.Logger) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		emailSender: emailSender,
		storage:     store,
		logger:      logger,
	}
}

// ServeMux routes task types to their handlers.
func (p *TaskProcessor) ServeMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReceiptNotify, p.HandleReceiptNotifyTask)
	mux.HandleFunc(TypeReceiptArchive, p.HandleReceiptArchiveTask)
	return mux
}

// SetupServer configures and starts an Asynq server instance.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, logger *zap.Logger) (*asynq.Server, error) {
	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", zap.String("type", task.Type()), zap.Error(err))
			}),
		},
	)

	if err := srv.Start(processor.ServeMux()); err != nil {
		return nil, fmt.Errorf("could not start asynq server: %w", err)
	}
	logger.Info("background task server started")
	return srv, nil
}

// --- Task Handlers ---

func decodeReceiptPayload(t *asynq.Task) (*ReceiptPayload, error) {
	var payload ReceiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if payload.Receipt.ReceiptNumber == "" {
		return nil, fmt.Errorf("%s payload has no receipt number: %w", t.Type(), asynq.SkipRetry)
	}
	return &payload, nil
}

var receiptEmail = template.Must(template.New("receipt").Parse(`Dear {{.Invoice.ClientName}},

Thank you for your payment. This is your receipt.

Receipt number: {{.Receipt.ReceiptNumber}}
Invoice number: {{.InvoiceNumber}}
Payment date:   {{.Receipt.PaymentDate.Format "2006-01-02"}}
Amount paid:    {{printf "%.2f" .Receipt.AmountPaid}}

Items:
{{range .Invoice.Items}}  {{.Description}}: {{.Quantity}} x {{printf "%.2f" .UnitPrice}} = {{printf "%.2f" .Total}}
{{end}}
Tax ({{.Invoice.TaxRate}}%): {{printf "%.2f" .Invoice.TaxAmount}}

{{.AppName}}
`))

// RenderReceiptEmail returns the subject and body of the client notification.
func RenderReceiptEmail(appName string, payload *ReceiptPayload) (string, string, error) {
	var body bytes.Buffer
	err := receiptEmail.Execute(&body, struct {
		*ReceiptPayload
		InvoiceNumber string
		AppName       string
	}{payload, payload.Invoice.Number(), appName})
	if err != nil {
		return "", "", err
	}
	return "Receipt " + payload.Receipt.ReceiptNumber, body.String(), nil
}

func (p *TaskProcessor) HandleReceiptNotifyTask(ctx context.Context, t *asynq.Task) error {
	payload, err := decodeReceiptPayload(t)
	if err != nil {
		return err
	}
	if payload.Invoice.ClientEmail == nil || strings.TrimSpace(*payload.Invoice.ClientEmail) == "" {
		p.logger.Info("receipt has no client email, skipping notification", zap.String("receipt_number", payload.Receipt.ReceiptNumber))
		return nil
	}
	to := []string{strings.TrimSpace(*payload.Invoice.ClientEmail)}

	subject, body, err := RenderReceiptEmail(p.cfg.AppName, payload)
	if err != nil {
		return fmt.Errorf("failed to render receipt email: %v: %w", err, asynq.SkipRetry)
	}
	raw := email.BuildMessage(p.cfg.SmtpFromAddress, to, subject, body, time.Now())

	if err := p.emailSender.Send(ctx, to, subject, raw); err != nil {
		return fmt.Errorf("failed to send receipt %s: %w", payload.Receipt.ReceiptNumber, err)
	}
	p.logger.Info("receipt email sent", zap.String("receipt_number", payload.Receipt.ReceiptNumber))
	return nil
}

// ArchiveKey is the object key a receipt snapshot is stored under.
func ArchiveKey(receipt *models.Receipt) string {
	return fmt.Sprintf("receipts/%04d/%s.json", receipt.PaymentDate.UTC().Year(), receipt.ReceiptNumber)
}

func (p *TaskProcessor) HandleReceiptArchiveTask(ctx context.Context, t *asynq.Task) error {
	payload, err := decodeReceiptPayload(t)
	if err != nil {
		return err
	}
	if p.storage == nil {
		p.logger.Warn("receipt archive disabled, dropping task", zap.String("receipt_number", payload.Receipt.ReceiptNumber))
		return nil
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal receipt snapshot: %v: %w", err, asynq.SkipRetry)
	}
	key := ArchiveKey(&payload.Receipt)
	if err := p.storage.PutObject(ctx, key, "application/json", body); err != nil {
		return err
	}
	p.logger.Info("receipt archived", zap.String("bucket", p.storage.Bucket()), zap.String("key", key))
	return nil
}

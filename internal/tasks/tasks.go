package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
	"github.com/myloveankyy/xkey-auction-sub000/internal/email"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
	"github.com/myloveankyy/xkey-auction-sub000/internal/storage"
	"github.com/myloveankyy/xkey-auction-sub000/internal/utils"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery = "email:deliver"
	TypeImageProcess  = "image:process"
)

const (
	queueCritical = "critical"
	queueDefault  = "default"
	queueImages   = "images"
)

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// EmailTaskPayload asks a worker to render a template and send it to one recipient.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Locale     string                 `json:"locale,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

// ImageTaskPayload points at a stored vehicle image that should be shrunk in place.
type ImageTaskPayload struct {
	Key       string `json:"key"`
	VehicleID string `json:"vehicle_id"`
}

func NewEmailDeliveryTask(payload EmailTaskPayload) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	return asynq.NewTask(TypeEmailDelivery, b, asynq.MaxRetry(5), asynq.Queue(queueCritical)), nil
}

func NewImageProcessTask(payload ImageTaskPayload) (*asynq.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image task payload: %w", err)
	}
	return asynq.NewTask(TypeImageProcess, b, asynq.MaxRetry(3), asynq.Queue(queueImages), asynq.Timeout(2*time.Minute)), nil
}

// Dispatcher is the services.IJobQueue backed by asynq.
type Dispatcher struct {
	client *asynq.Client
}

var _ services.IJobQueue = (*Dispatcher)(nil)

func NewDispatcher(client *asynq.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

func (d *Dispatcher) EnqueueEmail(ctx context.Context, to, templateID string, data map[string]any) error {
	task, err := NewEmailDeliveryTask(EmailTaskPayload{To: to, TemplateID: templateID, Data: data})
	if err != nil {
		return err
	}
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue email to %s: %w", to, err)
	}
	log.Printf("Enqueued email task %s: To=%s, Template=%s", info.ID, to, templateID)
	return nil
}

func (d *Dispatcher) EnqueueImageProcess(ctx context.Context, key string, vehicleID utils.SixID) error {
	task, err := NewImageProcessTask(ImageTaskPayload{Key: key, VehicleID: vehicleID.String()})
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue image task for %s: %w", key, err)
	}
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	storage              storage.IStorage
	vehicleService       services.IVehicleService // optional, used to drop work for deleted vehicles
	emailTemplateService services.IEmailTemplateService
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	store storage.IStorage,
	vehicleService services.IVehicleService,
	emailTemplateService services.IEmailTemplateService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		storage:              store,
		vehicleService:       vehicleService,
		emailTemplateService: emailTemplateService,
	}
}

// SetupServer configures an Asynq server and the handlers for the given worker roles.
// It returns nil when neither role is enabled. The caller runs the server.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		return nil, nil
	}

	queues := map[string]int{}
	mux := asynq.NewServeMux()
	if isBgWorker {
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		queues[queueCritical] = 6
		queues[queueDefault] = 3
		log.Println("Registered background task handlers.")
	}
	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		queues[queueImages] = 5
		log.Println("Registered image processing task handlers.")
	}

	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: queues,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)
	return srv, mux
}

// --- Task Handlers ---

// HandleEmailDeliveryTask renders the template named in the payload and sends it.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	locale := payload.Locale
	if locale == "" {
		locale = services.DefaultLocale
	}

	rendered, err := p.emailTemplateService.Render(ctx, payload.TemplateID, locale, payload.Data)
	if err != nil {
		log.Printf("Error rendering email template %s/%s: %v", payload.TemplateID, locale, err)
		if errors.Is(err, services.ErrTemplateNotFound) || errors.Is(err, services.ErrTemplateInvalid) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("WARNING: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}
	to := []string{payload.To}
	raw := email.Compose(fromAddress, to, rendered.Subject, rendered.Body, payload.TemplateID, time.Now())

	if err := p.emailSender.Send(ctx, to, rendered.Subject, raw); err != nil {
		log.Printf("Email to %s failed, will retry: %v", payload.To, err)
		return err
	}
	log.Printf("Email task processed successfully: To=%s, Template=%s", payload.To, payload.TemplateID)
	return nil
}

// HandleImageProcessTask shrinks an oversized vehicle image in place. The key, and
// so the URL on the vehicle, stays the same.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}
	vehicleID, err := utils.ParseSixID(payload.VehicleID)
	if err != nil {
		return fmt.Errorf("invalid vehicle ID %q in payload: %w", payload.VehicleID, asynq.SkipRetry)
	}

	if p.vehicleService != nil {
		if _, err := p.vehicleService.Get(ctx, vehicleID); err != nil {
			if errors.Is(err, services.ErrVehicleNotFound) {
				log.Printf("Vehicle %s is gone, skipping image %s", vehicleID, payload.Key)
				return nil
			}
			return err
		}
	}

	rc, contentType, err := p.storage.Open(ctx, payload.Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("image %s not found: %w", payload.Key, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to open image %s: %w", payload.Key, err)
	}
	defer rc.Close()

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	imgData, err := io.ReadAll(io.LimitReader(rc, maxSizeBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read image %s: %w", payload.Key, err)
	}
	if int64(len(imgData)) > maxSizeBytes {
		return fmt.Errorf("image %s exceeds max size: %w", payload.Key, asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			// webp has no decoder here; the upload is served as is.
			log.Printf("Image %s (%s) cannot be decoded, leaving it unchanged", payload.Key, contentType)
			return nil
		}
		return fmt.Errorf("corrupt image %s: %v: %w", payload.Key, err, asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.ImageMaxDimension)
	if maxDim == 0 || (uint(img.Bounds().Dx()) <= maxDim && uint(img.Bounds().Dy()) <= maxDim) {
		return nil
	}

	resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := encodeImage(&buf, resized, format); err != nil {
		return fmt.Errorf("failed to re-encode image %s: %w", payload.Key, err)
	}
	if err := p.storage.Save(ctx, payload.Key, &buf, int64(buf.Len()), contentType); err != nil {
		return fmt.Errorf("failed to store resized image %s: %w", payload.Key, err)
	}

	log.Printf("Resized image %s of vehicle %s from %dx%d to %dx%d", payload.Key, vehicleID,
		img.Bounds().Dx(), img.Bounds().Dy(), resized.Bounds().Dx(), resized.Bounds().Dy())
	return nil
}

// encodeImage writes img in its original format so the stored content type stays true.
func encodeImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 85})
	case "png":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

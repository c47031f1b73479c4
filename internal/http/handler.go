package http

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ecobot-service/internal/config"
	"ecobot-service/internal/domain/detection"
	"ecobot-service/internal/metrics"
	"ecobot-service/internal/service"
)

const imageField = "image"

type Handler struct {
	detectionService *service.DetectionService
	config           *config.Config
	metrics          *metrics.Metrics
	log              zerolog.Logger
}

func NewHandler(
	detectionService *service.DetectionService,
	cfg *config.Config,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		detectionService: detectionService,
		config:           cfg,
		metrics:          m,
		log:              log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Public endpoints
	r.GET("/", h.status)

	// Protected endpoints; authMiddleware lets everything through when no
	// secret is configured.
	protected := r.Group("/api")
	protected.Use(authMiddleware)
	{
		protected.POST("/detect", h.detect)
	}
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.detectionService.Status())
}

func (h *Handler) detect(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.detectionService.EnsureModel(ctx); err != nil {
		h.metrics.RecordRequest(metrics.OutcomeModelUnavailable)
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to load model"))
		return
	}

	data, status, msg := h.readUpload(c)
	if status != 0 {
		h.metrics.RecordRequest(metrics.OutcomeBadRequest)
		c.JSON(status, errorResponse(msg))
		return
	}

	result, err := h.detectionService.Process(ctx, data)
	if err != nil {
		// Processing failures are reported in-band with 200.
		h.log.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg("failed to process image")
		h.metrics.RecordRequest(metrics.OutcomeProcessingError)
		c.JSON(http.StatusOK, errorResponse(err.Error()))
		return
	}

	h.metrics.RecordRequest(metrics.OutcomeSuccess)
	c.JSON(http.StatusOK, result)
}

// readUpload returns the bytes of the first "image" file part. A non-zero
// status means the request is rejected with msg.
func (h *Handler) readUpload(c *gin.Context) ([]byte, int, string) {
	if limit := int64(h.config.HTTP.MaxUploadMB) << 20; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	mr, err := c.Request.MultipartReader()
	if err != nil {
		return nil, http.StatusBadRequest, "No image file provided"
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, http.StatusBadRequest, "No image file provided"
		}
		if err != nil {
			status, msg := uploadErrorStatus(err)
			return nil, status, msg
		}

		filename, isFile := fileName(part)
		if part.FormName() != imageField || !isFile {
			// Plain form values, including a text field named "image", are
			// not uploads.
			_ = part.Close()
			continue
		}
		if filename == "" {
			_ = part.Close()
			return nil, http.StatusBadRequest, "No image selected"
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			h.log.Error().Err(err).Msg("failed to read upload")
			status, msg := uploadErrorStatus(err)
			return nil, status, msg
		}
		return data, 0, ""
	}
}

// fileName reports the part's filename parameter and whether it was sent at
// all, since filename="" marks a file input left empty.
func fileName(part *multipart.Part) (string, bool) {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return "", false
	}
	name, ok := params["filename"]
	return name, ok
}

func uploadErrorStatus(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "Image too large"
	}
	return http.StatusBadRequest, "No image file provided"
}

func errorResponse(message string) detection.ErrorResponse {
	return detection.ErrorResponse{
		Success: false,
		Error:   message,
	}
}

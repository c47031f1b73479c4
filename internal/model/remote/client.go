// Package remote talks to an inference server that hosts the weights,
// e.g. a small ultralytics sidecar. The server exposes:
//
//	POST /load     {"model_path": "..."}           -> {"names": {"0": "can", ...}}
//	POST /predict  multipart "image" + "model_path" -> {"boxes": [{"cls", "conf", "xyxy"}]}
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"ecobot-service/internal/annotate"
	"ecobot-service/internal/domain/detection"
	"ecobot-service/internal/httpclient"
	"ecobot-service/internal/imageio"
	"ecobot-service/internal/model"
)

const uploadQuality = 95

var ErrInference = errors.New("inference server error")

type Client struct {
	baseURL   string
	modelPath string
	http      *httpclient.Client
	names     map[int]string
	annotator *annotate.Annotator
	log       zerolog.Logger
}

var _ model.Detector = (*Client)(nil)

type loadRequest struct {
	ModelPath string `json:"model_path"`
}

type loadResponse struct {
	Names map[int]string `json:"names"`
}

type predictResponse struct {
	Boxes []detection.RawBox `json:"boxes"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Loader adapts Load to model.LoadFunc.
func Loader(baseURL string, hc *httpclient.Client, log zerolog.Logger) model.LoadFunc {
	return func(ctx context.Context, path string) (model.Detector, error) {
		return Load(ctx, baseURL, path, hc, log)
	}
}

// Load asks the server to load modelPath and fetches its class table.
func Load(ctx context.Context, baseURL, modelPath string, hc *httpclient.Client, log zerolog.Logger) (*Client, error) {
	if hc == nil {
		hc = httpclient.New(nil)
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		modelPath: modelPath,
		http:      hc,
		annotator: annotate.New(),
		log:       log,
	}

	body, err := json.Marshal(loadRequest{ModelPath: modelPath})
	if err != nil {
		return nil, err
	}
	resp, err := hc.Post(ctx, c.baseURL+"/load", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var lr loadResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("decode load response: %w", err)
	}
	if len(lr.Names) == 0 {
		return nil, fmt.Errorf("%w: model has no class names", ErrInference)
	}
	c.names = lr.Names

	log.Debug().
		Str("inference_url", c.baseURL).
		Str("model_path", modelPath).
		Int("classes", len(lr.Names)).
		Msg("remote model ready")
	return c, nil
}

func (c *Client) Detect(ctx context.Context, img image.Image) ([]detection.RawBox, error) {
	jpegBytes, err := imageio.EncodeJPEG(img, uploadQuality)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("model_path", c.modelPath); err != nil {
		return nil, err
	}
	part, err := w.CreateFormFile("image", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(jpegBytes); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	resp, err := c.http.Post(ctx, c.baseURL+"/predict", w.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	if pr.Boxes == nil {
		pr.Boxes = []detection.RawBox{}
	}
	return pr.Boxes, nil
}

func (c *Client) Names() map[int]string {
	return c.names
}

func (c *Client) Annotate(img image.Image, dets []detection.Detection) image.Image {
	return c.annotator.Draw(img, dets)
}

func (c *Client) Close() error {
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
		return fmt.Errorf("%w: status %d: %s", ErrInference, resp.StatusCode, eb.Error)
	}
	return fmt.Errorf("%w: status %d", ErrInference, resp.StatusCode)
}

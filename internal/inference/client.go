// Package inference is the HTTP client of the face inference server, which performs
// detection, landmark extraction and descriptor embedding on JPEG images.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/facecheck/internal/face"
	"github.com/kozaktomas/facecheck/internal/metrics"
)

const defaultInferenceURL = "http://localhost:8000"

var (
	// ErrNetwork wraps transport failures talking to the inference server.
	ErrNetwork = errors.New("inference server unreachable")
	// ErrInference wraps error responses and malformed payloads from the inference server.
	ErrInference = errors.New("inference failed")
)

// Client talks to the face inference server.
// It is safe for concurrent use by both detection loops.
type Client struct {
	baseURL       string
	modelsBaseURL string
	models        []string
	client        *http.Client
}

// NewClient creates a new inference client.
// A zero timeout leaves requests bounded only by their context.
func NewClient(baseURL, modelsBaseURL string, models []string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultInferenceURL
	}
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		modelsBaseURL: modelsBaseURL,
		models:        models,
		client:        &http.Client{Timeout: timeout},
	}
}

// Mode selects how many faces the server reports.
type Mode string

const (
	ModeAll    Mode = "all"
	ModeSingle Mode = "single"
)

// DetectRequest describes one detection call.
type DetectRequest struct {
	Options     face.DetectorOptions
	Mode        Mode
	Landmarks   bool
	Descriptors bool
}

// loadModelRequest is the body of POST /models/load.
type loadModelRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// detectResponse is the body returned by POST /detect.
type detectResponse struct {
	ImageWidth  int            `json:"image_width"`
	ImageHeight int            `json:"image_height"`
	InputWidth  int            `json:"input_width"`
	InputHeight int            `json:"input_height"`
	Faces       []detectedFace `json:"faces"`
}

type detectedFace struct {
	BBox       []float64    `json:"bbox"` // [x1, y1, x2, y2]
	Score      float64      `json:"score"`
	Landmarks  [][2]float64 `json:"landmarks,omitempty"`
	Descriptor []float32    `json:"descriptor,omitempty"`
}

// do executes a request, records metrics and returns the body of a 200 response.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.InferenceRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, fmt.Errorf("%w: request failed: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.InferenceRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrNetwork, err)
	}

	metrics.InferenceRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrInference, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// LoadModels asks the server to load every configured model bundle from the models base URL.
// The first failure aborts; nothing is retried.
func (c *Client) LoadModels(ctx context.Context) error {
	for _, name := range c.models {
		reqBody, err := json.Marshal(loadModelRequest{Name: name, URL: c.modelsBaseURL})
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/load", bytes.NewReader(reqBody))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		if _, err := c.do(req, "models_load"); err != nil {
			return fmt.Errorf("loading model %s: %w", name, err)
		}
	}
	return nil
}

// postDetect builds the multipart detect request.
func (c *Client) postDetect(ctx context.Context, imageData []byte, dr DetectRequest) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	fields := map[string]string{
		"input_size":      strconv.Itoa(dr.Options.InputSize),
		"score_threshold": strconv.FormatFloat(dr.Options.ScoreThreshold, 'f', -1, 64),
		"mode":            string(dr.Mode),
		"landmarks":       strconv.FormatBool(dr.Landmarks),
		"descriptors":     strconv.FormatBool(dr.Descriptors),
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req, "detect")
}

// Detect runs detection on a JPEG image and returns the faces in the coordinate
// space the model worked in.
func (c *Client) Detect(ctx context.Context, imageData []byte, dr DetectRequest) ([]face.Result, error) {
	if dr.Mode == "" {
		dr.Mode = ModeAll
	}
	body, err := c.postDetect(ctx, imageData, dr)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", ErrInference, err)
	}
	return resp.results(dr.Descriptors)
}

// DetectAll detects every face with landmarks, and descriptors when requested.
func (c *Client) DetectAll(ctx context.Context, imageData []byte, opts face.DetectorOptions, withDescriptors bool) ([]face.Result, error) {
	return c.Detect(ctx, imageData, DetectRequest{
		Options:     opts,
		Mode:        ModeAll,
		Landmarks:   true,
		Descriptors: withDescriptors,
	})
}

// DetectSingle detects the largest face with landmarks, and its descriptor when requested.
// It returns nil without error when no face is found.
func (c *Client) DetectSingle(ctx context.Context, imageData []byte, opts face.DetectorOptions, withDescriptor bool) (*face.Result, error) {
	results, err := c.Detect(ctx, imageData, DetectRequest{
		Options:     opts,
		Mode:        ModeSingle,
		Landmarks:   true,
		Descriptors: withDescriptor,
	})
	if err != nil {
		return nil, err
	}
	return face.Largest(results), nil
}

// results converts the wire format into face results.
func (r detectResponse) results(wantDescriptors bool) ([]face.Result, error) {
	width, height := r.InputWidth, r.InputHeight
	if width <= 0 || height <= 0 {
		width, height = r.ImageWidth, r.ImageHeight
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: response has no image dimensions", ErrInference)
	}

	results := make([]face.Result, 0, len(r.Faces))
	for i, f := range r.Faces {
		if len(f.BBox) != 4 {
			return nil, fmt.Errorf("%w: face %d has invalid bbox %v", ErrInference, i, f.BBox)
		}
		res := face.Result{
			Detection: face.Detection{
				Box:         face.BoxFromCorners(f.BBox),
				Score:       f.Score,
				ImageWidth:  width,
				ImageHeight: height,
			},
		}
		if len(f.Landmarks) > 0 {
			points := make([]face.Point, len(f.Landmarks))
			for j, p := range f.Landmarks {
				points[j] = face.Point{X: p[0], Y: p[1]}
			}
			res.Landmarks = &face.Landmarks{Points: points, ImageWidth: width, ImageHeight: height}
		}
		if wantDescriptors && len(f.Descriptor) > 0 {
			if len(f.Descriptor) != face.DescriptorSize {
				return nil, fmt.Errorf("%w: face %d descriptor has %d values, want %d",
					ErrInference, i, len(f.Descriptor), face.DescriptorSize)
			}
			res.Descriptor = face.Descriptor(f.Descriptor)
		}
		results = append(results, res)
	}
	return results, nil
}

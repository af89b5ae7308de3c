package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/kozaktomas/facecheck/internal/config"
	"github.com/kozaktomas/facecheck/internal/face"
)

// testConfig creates a config for handler tests.
func testConfig() *config.Config {
	return &config.Config{
		Inference: config.InferenceConfig{
			URL:    "http://inference.test",
			Models: []string{"tiny_face_detector", "face_landmark_68_tiny", "face_recognition"},
		},
		Detectors: config.DetectorsConfig{
			Video: face.DetectorOptions{InputSize: 256, ScoreThreshold: 0.5},
			Image: face.DetectorOptions{InputSize: 512, ScoreThreshold: 0.5},
		},
		Matcher: config.MatcherConfig{DistanceThreshold: 0.6},
		Capture: config.CaptureConfig{MaxFrameSize: 1 << 20},
	}
}

// testJPEG encodes a blank JPEG of the given size.
func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// multipartUpload builds a request with a "file" part of the given content type.
func multipartUpload(t *testing.T, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="face.jpg"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/photo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// decodeJSON decodes a recorder body into v.
func decodeJSON(t *testing.T, recorder *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response %q: %v", recorder.Body.String(), err)
	}
}

// assertStatusCode checks the response status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks for a JSON error response carrying message.
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, message string) {
	t.Helper()
	var body map[string]string
	decodeJSON(t, recorder, &body)
	if body["error"] != message {
		t.Errorf("expected error %q, got %q", message, body["error"])
	}
}

package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kozaktomas/facecheck/internal/face"
)

var videoOpts = face.DetectorOptions{InputSize: 256, ScoreThreshold: 0.5}

func descriptorJSON(v float32) []float32 {
	d := make([]float32, face.DescriptorSize)
	for i := range d {
		d[i] = v
	}
	return d
}

func TestLoadModels(t *testing.T) {
	var mu sync.Mutex
	var loaded []loadModelRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/load" || r.Method != http.MethodPost {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var req loadModelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		mu.Lock()
		loaded = append(loaded, req)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	models := []string{"tiny_face_detector", "face_landmark_68_tiny", "face_recognition"}
	client := NewClient(server.URL+"/", "https://models.example.com/", models, 0)

	if err := client.LoadModels(context.Background()); err != nil {
		t.Fatalf("LoadModels() error: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 load requests, got %d", len(loaded))
	}
	for i, req := range loaded {
		if req.Name != models[i] {
			t.Errorf("request %d name = %q, want %q", i, req.Name, models[i])
		}
		if req.URL != "https://models.example.com/" {
			t.Errorf("request %d url = %q", i, req.URL)
		}
	}
}

func TestLoadModels_FailureAborts(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", []string{"a", "b", "c"}, 0)
	err := client.LoadModels(context.Background())
	if !errors.Is(err, ErrInference) {
		t.Fatalf("expected ErrInference, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected loading to stop after the first failure, got %d calls", calls)
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("expected server message in error, got %v", err)
	}
}

func TestLoadModels_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, "", []string{"a"}, 0)
	if err := client.LoadModels(context.Background()); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestDetectAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.FormValue("input_size") != "512" || r.FormValue("mode") != "all" ||
			r.FormValue("descriptors") != "true" || r.FormValue("landmarks") != "true" {
			http.Error(w, "unexpected fields", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "jpeg-bytes" || header.Header.Get("Content-Type") != "image/jpeg" {
			http.Error(w, "unexpected file", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"image_width":  1024,
			"image_height": 768,
			"input_width":  512,
			"input_height": 384,
			"faces": []map[string]any{
				{
					"bbox":       []float64{10, 20, 110, 140},
					"score":      0.93,
					"landmarks":  [][2]float64{{30, 50}, {80, 50}},
					"descriptor": descriptorJSON(0.1),
				},
				{
					"bbox":       []float64{200, 20, 250, 80},
					"score":      0.71,
					"descriptor": descriptorJSON(0.2),
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil, 0)
	results, err := client.DetectAll(context.Background(), []byte("jpeg-bytes"),
		face.DetectorOptions{InputSize: 512, ScoreThreshold: 0.5}, true)
	if err != nil {
		t.Fatalf("DetectAll() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := results[0]
	if first.Detection.Box != (face.Box{X: 10, Y: 20, Width: 100, Height: 120}) {
		t.Errorf("box = %+v", first.Detection.Box)
	}
	if first.Detection.ImageWidth != 512 || first.Detection.ImageHeight != 384 {
		t.Errorf("expected model input space 512x384, got %dx%d", first.Detection.ImageWidth, first.Detection.ImageHeight)
	}
	if first.Landmarks == nil || len(first.Landmarks.Points) != 2 {
		t.Fatalf("expected 2 landmarks, got %+v", first.Landmarks)
	}
	if len(first.Descriptor) != face.DescriptorSize {
		t.Errorf("descriptor length = %d", len(first.Descriptor))
	}
	if results[1].Landmarks != nil {
		t.Error("expected nil landmarks for second face")
	}
}

func TestDetectSingle(t *testing.T) {
	tests := []struct {
		name      string
		faces     []map[string]any
		wantNil   bool
		wantWidth float64
	}{
		{
			name:    "no face",
			faces:   []map[string]any{},
			wantNil: true,
		},
		{
			name: "largest of many",
			faces: []map[string]any{
				{"bbox": []float64{0, 0, 10, 10}, "score": 0.9},
				{"bbox": []float64{0, 0, 50, 40}, "score": 0.6},
			},
			wantWidth: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseMultipartForm(1 << 20); err != nil || r.FormValue("mode") != "single" {
					http.Error(w, "expected single mode", http.StatusBadRequest)
					return
				}
				json.NewEncoder(w).Encode(map[string]any{
					"image_width":  640,
					"image_height": 480,
					"faces":        tt.faces,
				})
			}))
			defer server.Close()

			client := NewClient(server.URL, "", nil, 0)
			res, err := client.DetectSingle(context.Background(), []byte("x"), videoOpts, false)
			if err != nil {
				t.Fatalf("DetectSingle() error: %v", err)
			}
			if tt.wantNil {
				if res != nil {
					t.Errorf("expected nil result, got %+v", res)
				}
				return
			}
			if res == nil {
				t.Fatal("expected a result")
			}
			if res.Detection.Box.Width != tt.wantWidth {
				t.Errorf("width = %v, want %v", res.Detection.Box.Width, tt.wantWidth)
			}
			if res.Detection.ImageWidth != 640 {
				t.Errorf("expected image space fallback 640, got %d", res.Detection.ImageWidth)
			}
		})
	}
}

func TestDetect_InvalidResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"malformed json", http.StatusOK, `{"faces":`},
		{"missing dimensions", http.StatusOK, `{"faces":[]}`},
		{"bad bbox", http.StatusOK, `{"image_width":10,"image_height":10,"faces":[{"bbox":[1,2,3]}]}`},
		{"short descriptor", http.StatusOK, `{"image_width":10,"image_height":10,"faces":[{"bbox":[1,2,3,4],"descriptor":[0.1,0.2]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, "", nil, 0)
			_, err := client.DetectAll(context.Background(), []byte("x"), videoOpts, true)
			if !errors.Is(err, ErrInference) {
				t.Errorf("expected ErrInference, got %v", err)
			}
		})
	}
}

func TestDetect_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "", nil, 0)
	_, err := client.DetectAll(ctx, []byte("x"), videoOpts, false)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

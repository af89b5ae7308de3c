package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/facecheck/internal/face"
)

//go:embed detectors.yaml
var detectorsYAML []byte

const (
	defaultInferenceURL  = "http://localhost:8000"
	defaultModelsBaseURL = "https://www.rocksetta.com/tensorflowjs/saved-models/face-api-js/"
)

type Config struct {
	Inference InferenceConfig
	Detectors DetectorsConfig
	Matcher   MatcherConfig
	Loop      LoopConfig
	Capture   CaptureConfig
	Photo     PhotoConfig
	Database  DatabaseConfig
	Log       LogConfig
}

type InferenceConfig struct {
	URL           string        // face inference server, defaults to http://localhost:8000
	ModelsBaseURL string        // where the inference server fetches model bundles from
	Models        []string      // bundle names, from detectors.yaml
	Timeout       time.Duration // per request, zero means no timeout
}

// DetectorsConfig holds the two detector option sets.
type DetectorsConfig struct {
	Video face.DetectorOptions `yaml:"video"`
	Image face.DetectorOptions `yaml:"image"`
}

type MatcherConfig struct {
	DistanceThreshold float64
}

type LoopConfig struct {
	PhotoInterval time.Duration // reference photo matching period
	VideoInterval time.Duration // delay between video overlay passes
	RestartDelay  time.Duration // pause between a failed attempt and the restart
}

type CaptureConfig struct {
	AcquireTimeout time.Duration // how long to wait for the first webcam frame
	MaxFrameSize   int           // bytes per websocket frame
}

type PhotoConfig struct {
	DefaultPath string // JPEG shown when no photo is uploaded, a placeholder is generated if empty
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL, match history is disabled if empty
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type LogConfig struct {
	Env   string // prod, dev or local
	Level string // overrides the environment default level
}

type fileConfig struct {
	Detectors DetectorsConfig `yaml:"detectors"`
	Models    []string        `yaml:"models"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads a non-negative time.Duration such as "500ms".
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// parseFileConfig decodes the embedded detector and model settings.
func parseFileConfig(data []byte) (fileConfig, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse detectors.yaml: %w", err)
	}
	if len(fc.Models) == 0 {
		return fc, fmt.Errorf("parse detectors.yaml: no model bundles listed")
	}
	return fc, nil
}

func Load() *Config {
	fc, err := parseFileConfig(detectorsYAML)
	if err != nil {
		// Embedded file, this only happens with a broken build.
		panic(err.Error())
	}

	detectors := fc.Detectors
	detectors.Video.InputSize = envInt("DETECTOR_VIDEO_INPUT_SIZE", detectors.Video.InputSize)
	detectors.Video.ScoreThreshold = envFloat("DETECTOR_VIDEO_SCORE_THRESHOLD", detectors.Video.ScoreThreshold)
	detectors.Image.InputSize = envInt("DETECTOR_IMAGE_INPUT_SIZE", detectors.Image.InputSize)
	detectors.Image.ScoreThreshold = envFloat("DETECTOR_IMAGE_SCORE_THRESHOLD", detectors.Image.ScoreThreshold)

	return &Config{
		Inference: InferenceConfig{
			URL:           envString("INFERENCE_URL", defaultInferenceURL),
			ModelsBaseURL: envString("MODELS_BASE_URL", defaultModelsBaseURL),
			Models:        fc.Models,
			Timeout:       envDuration("INFERENCE_TIMEOUT", 0),
		},
		Detectors: detectors,
		Matcher: MatcherConfig{
			DistanceThreshold: envFloat("MATCHER_DISTANCE_THRESHOLD", 0.6),
		},
		Loop: LoopConfig{
			PhotoInterval: envDuration("LOOP_PHOTO_INTERVAL", 500*time.Millisecond),
			VideoInterval: envDuration("LOOP_VIDEO_INTERVAL", 0),
			RestartDelay:  envDuration("RESTART_DELAY", time.Second),
		},
		Capture: CaptureConfig{
			AcquireTimeout: envDuration("CAPTURE_ACQUIRE_TIMEOUT", 30*time.Second),
			MaxFrameSize:   envInt("CAPTURE_MAX_FRAME_SIZE", 4<<20),
		},
		Photo: PhotoConfig{
			DefaultPath: os.Getenv("PHOTO_DEFAULT_PATH"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Log: LogConfig{
			Env:   envString("LOG_ENV", "dev"),
			Level: os.Getenv("LOG_LEVEL"),
		},
	}
}

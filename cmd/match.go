package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facecheck/internal/config"
	"github.com/kozaktomas/facecheck/internal/inference"
	"github.com/kozaktomas/facecheck/internal/matcher"
	"github.com/kozaktomas/facecheck/internal/photo"
)

var matchCmd = &cobra.Command{
	Use:   "match --photo <reference> <frame>...",
	Short: "Match a reference photo against image files",
	Long: `Match the faces of a reference photo against a batch of frames offline.
Each frame is treated like a webcam frame: its single largest face is compared
with every face of the reference photo. Frames may be JPEG, PNG or BMP.

Examples:
  facecheck match --photo me.jpg frames/*.jpg
  facecheck match --photo me.jpg --json snapshot.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("photo", "", "Reference photo (required)")
	matchCmd.Flags().Float64("threshold", 0, "Match distance threshold (defaults to MATCHER_DISTANCE_THRESHOLD)")
	matchCmd.Flags().Int("max-size", 1280, "Downscale images to this size on the longer side before detection (0 keeps the size)")
	matchCmd.Flags().Bool("json", false, "Output as JSON")
	_ = matchCmd.MarkFlagRequired("photo")
}

// FrameMatch is the match outcome of one frame.
type FrameMatch struct {
	File     string  `json:"file"`
	Found    bool    `json:"found"`
	Label    string  `json:"label,omitempty"`
	Distance float64 `json:"distance,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// MatchOutput is the JSON output of the match command.
type MatchOutput struct {
	Photo      string       `json:"photo"`
	PhotoFaces int          `json:"photo_faces"`
	Threshold  float64      `json:"threshold"`
	Frames     []FrameMatch `json:"frames"`
	Found      int          `json:"found"`
}

// readAsJPEG loads an image file and normalizes it to JPEG.
func readAsJPEG(path string, maxSize int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	jpg, err := photo.ToJPEG(data, maxSize)
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", path, err)
	}
	return jpg, nil
}

// buildMatcher detects every face of the reference photo and indexes its descriptors.
func buildMatcher(ctx context.Context, client *inference.Client, cfg *config.Config, data []byte, threshold float64) (*matcher.FaceMatcher, int, error) {
	results, err := client.DetectAll(ctx, data, cfg.Detectors.Image, true)
	if err != nil {
		return nil, 0, fmt.Errorf("detecting faces in reference photo: %w", err)
	}
	m, err := matcher.New(results, threshold)
	if err != nil {
		return nil, len(results), fmt.Errorf("reference photo: %w", err)
	}
	return m, len(results), nil
}

// matchFrame compares the largest face of one frame with the reference matcher.
func matchFrame(ctx context.Context, client *inference.Client, cfg *config.Config, m *matcher.FaceMatcher, path string, maxSize int) FrameMatch {
	out := FrameMatch{File: path}
	data, err := readAsJPEG(path, maxSize)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	result, err := client.DetectSingle(ctx, data, cfg.Detectors.Video, true)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if result == nil || len(result.Descriptor) == 0 {
		return out
	}

	best := m.FindBestMatch(result.Descriptor)
	out.Distance = best.Distance
	if !best.IsUnknown() {
		out.Found = true
		out.Label = best.Label
	}
	return out
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	photoPath := mustGetString(cmd, "photo")
	threshold := mustGetFloat64(cmd, "threshold")
	maxSize := mustGetInt(cmd, "max-size")
	jsonOutput := mustGetBool(cmd, "json")
	if threshold <= 0 {
		threshold = cfg.Matcher.DistanceThreshold
	}

	client := inference.NewClient(cfg.Inference.URL, cfg.Inference.ModelsBaseURL, cfg.Inference.Models, cfg.Inference.Timeout)
	if !jsonOutput {
		fmt.Printf("Loading models on %s...\n", cfg.Inference.URL)
	}
	if err := client.LoadModels(ctx); err != nil {
		return fmt.Errorf("loading models: %w", err)
	}

	ref, err := readAsJPEG(photoPath, maxSize)
	if err != nil {
		return err
	}
	m, photoFaces, err := buildMatcher(ctx, client, cfg, ref, threshold)
	if err != nil {
		return err
	}
	if !jsonOutput {
		fmt.Printf("Reference photo %s: %d face(s)\n", filepath.Base(photoPath), photoFaces)
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(args),
			progressbar.OptionSetDescription("Matching frames"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("frames"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	output := MatchOutput{
		Photo:      photoPath,
		PhotoFaces: photoFaces,
		Threshold:  threshold,
		Frames:     make([]FrameMatch, 0, len(args)),
	}
	for _, path := range args {
		fm := matchFrame(ctx, client, cfg, m, path, maxSize)
		if fm.Found {
			output.Found++
		}
		output.Frames = append(output.Frames, fm)
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}

	fmt.Println()
	for _, fm := range output.Frames {
		switch {
		case fm.Error != "":
			fmt.Printf("  %s: error: %s\n", fm.File, fm.Error)
		case fm.Found:
			fmt.Printf("  %s: %s (distance %.3f)\n", fm.File, fm.Label, fm.Distance)
		default:
			fmt.Printf("  %s: not found\n", fm.File)
		}
	}
	fmt.Printf("\nFace found in %d of %d frames\n", output.Found, len(output.Frames))
	return nil
}

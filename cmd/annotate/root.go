package main

import (
	"FaceOverlay/internal/config"
	"FaceOverlay/pkg/faceapi"
	"FaceOverlay/pkg/log"
	"FaceOverlay/pkg/overlay"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	input       string
	output      string
	maxWidth    int
	runtimeURL  string
	modelURL    string
	loadTimeout time.Duration
	timeout     time.Duration
	jsonOut     bool
	verbose     bool
}

type summary struct {
	Status string      `json:"status"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Faces  interface{} `json:"faces"`
	Output string      `json:"output"`
}

func newRootCmd(newRuntime func(url string) faceapi.Runtime) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "annotate",
		Short:         "Detect faces in an image and write the overlay as PNG",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, newRuntime(opts.runtimeURL))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", "image to annotate")
	flags.StringVarP(&opts.output, "output", "o", "", "overlay output path (default: <input>.overlay.png)")
	flags.IntVar(&opts.maxWidth, "max-width", overlay.DefaultMaxWidth, "display width the overlay is fitted to")
	flags.StringVar(&opts.runtimeURL, "runtime-url", envOr("FACEAPI_WS_URL", config.DefaultRuntimeURL), "face runtime websocket url")
	flags.StringVar(&opts.modelURL, "model-url", envOr("MODEL_URL", faceapi.DefaultModelURL), "base url of the model weights")
	flags.DurationVar(&opts.loadTimeout, "load-timeout", time.Minute, "time allowed for loading the models")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "time allowed for detection")
	flags.BoolVar(&opts.jsonOut, "json", false, "print the result as JSON")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log runtime traffic")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, stdout, stderr io.Writer, opts *options, runtime faceapi.Runtime) error {
	if opts.maxWidth <= 0 {
		return fmt.Errorf("--max-width must be positive")
	}

	data, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	asset, err := overlay.Decode(filepath.Base(opts.input), data)
	if err != nil {
		return err
	}

	logger := log.NewLogger()
	if !opts.verbose {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	loader := faceapi.NewLoader(runtime, opts.modelURL, opts.loadTimeout, logger)
	defer loader.Close()

	fmt.Fprintln(stderr, faceapi.StatusLoading)
	if err := loader.EnsureReady(ctx); err != nil {
		fmt.Fprintln(stderr, faceapi.StatusFailed)
		return err
	}
	fmt.Fprintln(stderr, loader.Status())

	detectCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	renderer := overlay.NewRenderer(loader, opts.maxWidth)
	result, err := renderer.Render(detectCtx, asset, loader.Ready())
	if err != nil {
		return err
	}
	if result == nil {
		return errors.New(loader.Status())
	}

	output := opts.output
	if output == "" {
		output = opts.input + ".overlay.png"
	}
	if err := imaging.Save(result.Image(), output); err != nil {
		return fmt.Errorf("failed to write overlay: %w", err)
	}

	if opts.jsonOut {
		return jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(stdout).Encode(summary{
			Status: result.Status,
			Width:  result.Display.Width,
			Height: result.Display.Height,
			Faces:  result.Faces,
			Output: output,
		})
	}

	fmt.Fprintln(stdout, result.Status)
	for _, face := range result.Faces {
		fmt.Fprintf(stdout, "Face %d: %s\n", face.Index, face.Expression)
	}
	fmt.Fprintf(stdout, "Overlay written to %s (%dx%d)\n", output, result.Display.Width, result.Display.Height)

	return nil
}

package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"docqa/internal/domain"
	"docqa/internal/port"
)

const (
	DefaultHugotModel     = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultHugotDimension = 384
)

var _ port.Embedder = (*HugotEmbedder)(nil)

// HugotEmbedder runs a sentence-transformers ONNX model in-process with the
// hugot pure Go backend.
type HugotEmbedder struct {
	model     string
	dimension int
	batchSize int

	mu      sync.Mutex // the pipeline is not documented as safe for concurrent use
	run     func(texts []string) ([][]float32, error)
	destroy func() error
}

// HugotOptions configures NewHugotEmbedder.
type HugotOptions struct {
	Model     string
	ModelDir  string
	Dimension int
	BatchSize int
}

// PrepareModel downloads the model into modelDir if it is not there yet and
// returns the local model path.
func PrepareModel(modelName, modelDir string) (string, error) {
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		if err := os.MkdirAll(modelDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create model directory: %w", err)
		}
		downloadOptions := hugot.NewDownloadOptions()
		downloadOptions.OnnxFilePath = "onnx/model.onnx"
		downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
		if err != nil {
			return "", fmt.Errorf("failed to download model: %w", err)
		}
		modelPath = downloadedPath
	}

	return modelPath, nil
}

func NewHugotEmbedder(opts HugotOptions) (*HugotEmbedder, error) {
	if opts.Model == "" {
		opts.Model = DefaultHugotModel
	}
	if opts.ModelDir == "" {
		opts.ModelDir = "models"
	}
	if opts.Dimension <= 0 {
		opts.Dimension = DefaultHugotDimension
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}

	modelPath, err := PrepareModel(opts.Model, opts.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create hugot session: %v", domain.ErrEmbedding, err)
	}

	// all-MiniLM-L6-v2 ends in a Normalize layer; L2 ranking expects unit vectors.
	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "docqa-embedder",
		Options:   []hugot.FeatureExtractionOption{pipelines.WithNormalization()},
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("%w: failed to create pipeline: %v (cleanup error: %v)", domain.ErrEmbedding, err, destroyErr)
		}
		return nil, fmt.Errorf("%w: failed to create pipeline: %v", domain.ErrEmbedding, err)
	}

	return &HugotEmbedder{
		model:     opts.Model,
		dimension: opts.Dimension,
		batchSize: opts.BatchSize,
		run: func(texts []string) ([][]float32, error) {
			result, err := pipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		},
		destroy: session.Destroy,
	}, nil
}

func (e *HugotEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateInputs(texts); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
		}
		end := min(i+e.batchSize, len(texts))

		vectors, err := e.run(texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
		}
		if len(vectors) != end-i {
			return nil, fmt.Errorf("%w: model returned %d vectors for %d inputs", domain.ErrEmbedding, len(vectors), end-i)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *HugotEmbedder) Dimension() int { return e.dimension }

func (e *HugotEmbedder) ModelName() string { return e.model }

// Close releases the hugot session.
func (e *HugotEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroy == nil {
		return nil
	}
	err := e.destroy()
	e.destroy = nil
	return err
}

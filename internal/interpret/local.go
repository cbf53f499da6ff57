//go:build llamacpp

package interpret

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/hybridgroup/yzma/pkg/llama"
)

// llama.Load and llama.Init are process-global and must only happen once.
var (
	libOnce    sync.Once
	libLoadErr error
)

func loadLib(libPath string) error {
	libOnce.Do(func() {
		if err := llama.Load(libPath); err != nil {
			libLoadErr = fmt.Errorf("loading yzma shared library from %q: %w", libPath, err)
			return
		}
		llama.LogSet(llama.LogSilent())
		llama.Init()
	})
	return libLoadErr
}

// LocalEmbedder embeds text with a local GGUF model via hybridgroup/yzma.
// All model access is serialized; a llama context is created per Embed call
// and freed immediately.
type LocalEmbedder struct {
	libPath     string
	modelPath   string
	gpuLayers   int
	contextSize int

	mu      sync.Mutex
	model   llama.Model
	vocab   llama.Vocab
	nEmbd   int32
	loaded  bool
	loadErr error
	once    sync.Once
}

// NewLocalEmbedder creates a LocalEmbedder. The model is loaded on first use.
func NewLocalEmbedder(cfg LocalConfig) *LocalEmbedder {
	ctxSize := cfg.ContextSize
	if ctxSize <= 0 {
		ctxSize = 512
	}
	return &LocalEmbedder{
		libPath:     cfg.LibPath,
		modelPath:   cfg.ModelPath,
		gpuLayers:   cfg.GPULayers,
		contextSize: ctxSize,
	}
}

func (c *LocalEmbedder) resolveLibPath() string {
	if c.libPath != "" {
		return c.libPath
	}
	return os.Getenv("YZMA_LIB")
}

func (c *LocalEmbedder) loadModel() error {
	c.once.Do(func() {
		if c.modelPath == "" {
			c.loadErr = fmt.Errorf("no model path configured")
			return
		}
		libPath := c.resolveLibPath()
		if libPath == "" {
			c.loadErr = fmt.Errorf("no library path configured (set local_lib_path or YZMA_LIB)")
			return
		}
		if err := loadLib(libPath); err != nil {
			c.loadErr = err
			return
		}

		modelParams := llama.ModelDefaultParams()
		gpuLayers := c.gpuLayers
		if gpuLayers > math.MaxInt32 {
			gpuLayers = math.MaxInt32
		}
		modelParams.NGpuLayers = int32(gpuLayers)

		model, err := llama.ModelLoadFromFile(c.modelPath, modelParams)
		if err != nil {
			c.loadErr = fmt.Errorf("loading model %s: %w", c.modelPath, err)
			return
		}
		if model == 0 {
			c.loadErr = fmt.Errorf("loading model %s: returned null handle", c.modelPath)
			return
		}

		c.model = model
		c.vocab = llama.ModelGetVocab(model)
		c.nEmbd = int32(llama.ModelNEmbd(model))
		c.loaded = true
	})
	return c.loadErr
}

// Available returns true if both the library directory and model file exist.
// It does not load anything.
func (c *LocalEmbedder) Available() bool {
	libPath := c.resolveLibPath()
	if libPath == "" || c.modelPath == "" {
		return false
	}
	if info, err := os.Stat(libPath); err != nil || !info.IsDir() {
		return false
	}
	_, err := os.Stat(c.modelPath)
	return err == nil
}

// Embed returns an L2-normalized embedding for text.
func (c *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.loadModel(); err != nil {
		return nil, fmt.Errorf("local embed: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := llama.Tokenize(c.vocab, text, true, true)
	if len(tokens) > c.contextSize {
		tokens = tokens[:c.contextSize]
	}

	ctxParams := llama.ContextDefaultParams()
	ctxParams.NCtx = uint32(len(tokens) + 64)

	lctx, err := llama.InitFromModel(c.model, ctxParams)
	if err != nil {
		return nil, fmt.Errorf("creating embedding context: %w", err)
	}
	defer func() { _ = llama.Free(lctx) }()

	llama.SetEmbeddings(lctx, true)

	batch := llama.BatchGetOne(tokens)
	if _, err := llama.Decode(lctx, batch); err != nil {
		return nil, fmt.Errorf("decoding tokens: %w", err)
	}

	rawVec, err := llama.GetEmbeddingsSeq(lctx, 0, c.nEmbd)
	if err != nil {
		return nil, fmt.Errorf("getting embeddings: %w", err)
	}

	// rawVec is owned by lctx.
	vec := make([]float32, len(rawVec))
	copy(vec, rawVec)
	normalize(vec)
	return vec, nil
}

// Close releases the model. Safe to call multiple times. The library itself
// stays loaded for the life of the process.
func (c *LocalEmbedder) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		_ = llama.ModelFree(c.model)
		c.model = 0
		c.vocab = 0
		c.nEmbd = 0
		c.loaded = false
		c.once = sync.Once{}
	}
	return nil
}

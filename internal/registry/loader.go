// Package registry locates a pretrained checkpoint directory and resolves
// the per-rank weight shards the workers load. Directories are addressed
// through the afs virtual file system, so local paths and object-store URLs
// both work.
package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/viant/afs"

	"luminad/internal/common/fsutil"
	"luminad/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var fileSystem = afs.New()

// modelArgs mirrors the model_args.json file written next to the weights at
// training time.
type modelArgs struct {
	Model             string `json:"model"`
	ImageSize         int    `json:"image_size"`
	VAE               string `json:"vae"`
	LM                string `json:"lm"`
	TokenizerPath     string `json:"tokenizer_path"`
	QKNorm            bool   `json:"qk_norm"`
	ModelParallelSize int    `json:"model_parallel_size"`
}

// Options selects which weight variant to resolve.
type Options struct {
	// EMA picks the consolidated_ema shards over the raw training weights.
	EMA bool
	// Precision is recorded on the checkpoint info verbatim.
	Precision string
	// Devices is the accelerator count; the checkpoint must carry a shard
	// for every rank.
	Devices int
}

// Checkpoint is a resolved checkpoint: its metadata plus the shard path for
// each rank.
type Checkpoint struct {
	Info          types.CheckpointInfo
	Shards        []string
	TokenizerPath string
	QKNorm        bool
}

// Load reads model_args.json from the checkpoint directory and verifies that
// a weight shard exists for every device rank.
func Load(ctx context.Context, dir string, opts Options) (*Checkpoint, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	if opts.Devices < 1 {
		opts.Devices = 1
	}

	data, err := fileSystem.DownloadWithURL(ctx, join(base, "model_args.json"))
	if err != nil {
		return nil, ErrCheckpointNotFound("checkpoint %s: read model_args.json: %v", dir, err)
	}
	var args modelArgs
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("parse model_args.json: %w", err)
	}
	if args.Model == "" {
		return nil, fmt.Errorf("checkpoint %s does not name a model architecture", dir)
	}
	if args.ImageSize == 0 {
		args.ImageSize = 1024
	}
	if args.VAE == "" {
		args.VAE = "ema"
	}
	world := args.ModelParallelSize
	if world == 0 {
		world = 1
	}
	if opts.Devices != world {
		return nil, fmt.Errorf("checkpoint was trained with model parallel size %d, cannot load on %d device(s)", world, opts.Devices)
	}

	shards := make([]string, 0, opts.Devices)
	for rank := 0; rank < opts.Devices; rank++ {
		shard := join(base, shardName(rank, world, opts.EMA))
		ok, err := fileSystem.Exists(ctx, shard)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", shard, err)
		}
		if !ok {
			return nil, ErrCheckpointNotFound("checkpoint %s is missing shard %s", dir, shardName(rank, world, opts.EMA))
		}
		shards = append(shards, shard)
	}

	tokenizer := args.TokenizerPath
	if tokenizer != "" && !isURL(tokenizer) && !filepath.IsAbs(tokenizer) {
		tokenizer = join(base, tokenizer)
	}

	return &Checkpoint{
		Info: types.CheckpointInfo{
			Path:      dir,
			Model:     args.Model,
			ImageSize: args.ImageSize,
			VAE:       args.VAE,
			LM:        args.LM,
			EMA:       opts.EMA,
			Precision: opts.Precision,
		},
		Shards:        shards,
		TokenizerPath: tokenizer,
		QKNorm:        args.QKNorm,
	}, nil
}

// shardName builds the consolidated weight filename for a rank, e.g.
// "consolidated_ema.00-of-01.pth".
func shardName(rank, world int, ema bool) string {
	variant := ""
	if ema {
		variant = "_ema"
	}
	return fmt.Sprintf("consolidated%s.%02d-of-%02d.pth", variant, rank, world)
}

// join builds a child path under base, preserving URL schemes like s3://.
func join(base string, elem ...string) string {
	if isURL(base) {
		return strings.TrimSuffix(base, "/") + "/" + strings.Join(elem, "/")
	}
	return filepath.Join(append([]string{base}, elem...)...)
}

func isURL(s string) bool {
	return strings.Contains(s, "://")
}

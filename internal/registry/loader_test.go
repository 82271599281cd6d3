package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCheckpoint(t *testing.T, args string, shards ...string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "model_args.json"), []byte(args), 0o644); err != nil {
		t.Fatalf("write model_args.json: %v", err)
	}
	for _, s := range shards {
		if err := os.WriteFile(filepath.Join(dir, s), []byte("weights"), 0o644); err != nil {
			t.Fatalf("write shard %s: %v", s, err)
		}
	}
	return dir
}

func TestLoadResolvesCheckpoint(t *testing.T) {
	dir := writeCheckpoint(t,
		`{"model":"DiT_Llama_5B_patch2","image_size":1024,"vae":"ema","lm":"meta-llama/Llama-2-7b-hf","model_parallel_size":1}`,
		"consolidated_ema.00-of-01.pth",
	)
	ckpt, err := Load(context.Background(), dir, Options{EMA: true, Precision: "bf16", Devices: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ckpt.Info.Model != "DiT_Llama_5B_patch2" {
		t.Fatalf("model = %q", ckpt.Info.Model)
	}
	if ckpt.Info.ImageSize != 1024 || ckpt.Info.VAE != "ema" {
		t.Fatalf("info = %+v", ckpt.Info)
	}
	if !ckpt.Info.EMA || ckpt.Info.Precision != "bf16" {
		t.Fatalf("info = %+v", ckpt.Info)
	}
	if len(ckpt.Shards) != 1 || !strings.HasSuffix(ckpt.Shards[0], "consolidated_ema.00-of-01.pth") {
		t.Fatalf("shards = %v", ckpt.Shards)
	}
}

func TestLoadNonEMAShardName(t *testing.T) {
	dir := writeCheckpoint(t,
		`{"model":"DiT_Llama_2B_patch2"}`,
		"consolidated.00-of-01.pth",
	)
	ckpt, err := Load(context.Background(), dir, Options{Devices: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasSuffix(ckpt.Shards[0], "consolidated.00-of-01.pth") {
		t.Fatalf("shards = %v", ckpt.Shards)
	}
	// Defaults apply when the training args omit optional fields.
	if ckpt.Info.ImageSize != 1024 || ckpt.Info.VAE != "ema" {
		t.Fatalf("info = %+v", ckpt.Info)
	}
}

func TestLoadMissingShard(t *testing.T) {
	dir := writeCheckpoint(t, `{"model":"DiT_Llama_2B_patch2"}`)
	_, err := Load(context.Background(), dir, Options{EMA: true, Devices: 1})
	if err == nil || !strings.Contains(err.Error(), "missing shard") {
		t.Fatalf("Load: %v", err)
	}
	if !IsNotFound(err) {
		t.Fatalf("expected a not-found error, got %T", err)
	}
}

func TestLoadParallelSizeMismatch(t *testing.T) {
	dir := writeCheckpoint(t,
		`{"model":"DiT_Llama_5B_patch2","model_parallel_size":4}`,
		"consolidated_ema.00-of-04.pth",
	)
	_, err := Load(context.Background(), dir, Options{EMA: true, Devices: 1})
	if err == nil || !strings.Contains(err.Error(), "model parallel size") {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoadMissingArgs(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir(), Options{Devices: 1})
	if err == nil {
		t.Fatal("expected error for empty directory")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected a not-found error, got %T", err)
	}
}

func TestLoadRejectsUnnamedModel(t *testing.T) {
	dir := writeCheckpoint(t, `{"image_size":512}`, "consolidated.00-of-01.pth")
	if _, err := Load(context.Background(), dir, Options{Devices: 1}); err == nil {
		t.Fatal("expected error for missing model name")
	}
}

func TestLoadResolvesTokenizerPath(t *testing.T) {
	dir := writeCheckpoint(t,
		`{"model":"DiT_Llama_2B_patch2","tokenizer_path":"tokenizer.model"}`,
		"consolidated.00-of-01.pth",
	)
	ckpt, err := Load(context.Background(), dir, Options{Devices: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := filepath.Join(dir, "tokenizer.model")
	if ckpt.TokenizerPath != want {
		t.Fatalf("tokenizer path = %q, want %q", ckpt.TokenizerPath, want)
	}
}

package types

// CheckpointInfo describes the loaded checkpoint for GET /checkpoint.
type CheckpointInfo struct {
	// Checkpoint directory (or object-store URL) the daemon was started with.
	// example: /data/ckpt/lumina-5b
	Path string `json:"path" example:"/data/ckpt/lumina-5b"`
	// Denoiser architecture name recorded at training time.
	// example: DiT_Llama_5B_patch2
	Model string `json:"model" example:"DiT_Llama_5B_patch2"`
	// Base training resolution in pixels.
	// example: 1024
	ImageSize int `json:"image_size" example:"1024"`
	// VAE variant used to decode latents (ema, mse or sdxl).
	// example: ema
	VAE string `json:"vae" example:"ema"`
	// Language-model backbone that produces caption features.
	// example: meta-llama/Llama-2-7b-hf
	LM string `json:"lm" example:"meta-llama/Llama-2-7b-hf"`
	// Whether the EMA weight variant is loaded.
	// example: true
	EMA bool `json:"ema" example:"true"`
	// Numeric precision used for inference.
	// example: bf16
	Precision string `json:"precision" example:"bf16"`
}

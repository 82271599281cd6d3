package worker

import (
	"fmt"
	"math/rand"
	"time"

	"gorgonia.org/tensor"

	"luminad/internal/diffusion"
	"luminad/internal/transport"
)

// run is the worker loop: load the model stack, rendezvous at the startup
// barrier, then serve requests one at a time until the queue closes.
func (w *worker) run() {
	defer w.pool.wg.Done()

	backend, err := w.pool.cfg.Backend(w.rank)
	if err != nil {
		logErrf(err, "worker event=load_failed rank=%d", w.rank)
		w.pool.setWorkerError(w.rank, err)
		w.pool.barrier.Wait()
		return
	}
	w.backend = backend
	w.pool.mu.Lock()
	w.state = StateReady
	w.pool.mu.Unlock()
	logf("worker event=loaded rank=%d", w.rank)
	w.pool.barrier.Wait()

	for req := range w.reqCh {
		w.inflight.Store(1)
		res := w.process(req)
		w.inflight.Store(0)
		w.pool.mu.Lock()
		w.lastUsed = time.Now()
		w.pool.mu.Unlock()
		if w.publishResults {
			w.pool.respCh <- res
		}
	}
}

// process runs one request through the sampling state machine. Errors and
// panics are contained here: the worker logs the cause and publishes the
// failure sentinel instead of crashing.
func (w *worker) process(req Request) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logErrf(fmt.Errorf("%v", r), "worker event=request_panic rank=%d request_id=%s", w.rank, req.ID)
			w.pool.publish(Event{Name: "request_failed", RequestID: req.ID.String(), Fields: map[string]any{"panic": fmt.Sprint(r)}})
			res = Result{ID: req.ID, Failed: true, Duration: time.Since(start)}
		}
	}()

	logf("worker event=request_start rank=%d request_id=%s caption=%q steps=%d cfg_scale=%g solver=%s",
		w.rank, req.ID, req.Caption, req.Steps, req.CFGScale, req.Solver)
	w.pool.publish(Event{Name: "request_start", RequestID: req.ID.String(), Fields: map[string]any{
		"caption": req.Caption, "steps": req.Steps, "cfg_scale": req.CFGScale,
	}})

	out, err := w.generate(req)
	if err != nil {
		logErrf(err, "worker event=request_failed rank=%d request_id=%s", w.rank, req.ID)
		w.pool.publish(Event{Name: "request_failed", RequestID: req.ID.String(), Fields: map[string]any{"error": err.Error()}})
		return Result{ID: req.ID, Failed: true, Duration: time.Since(start)}
	}
	out.Duration = time.Since(start)
	logf("worker event=request_done rank=%d request_id=%s steps=%d dur_ms=%d",
		w.rank, req.ID, out.Steps, out.Duration/time.Millisecond)
	w.pool.publish(Event{Name: "request_done", RequestID: req.ID.String(), Fields: map[string]any{
		"steps": out.Steps, "dur_ms": int(out.Duration / time.Millisecond),
	}})
	return out
}

// generate walks the per-request pipeline: configure the transport and
// solver, build conditioning, draw the seeded latent noise, integrate, and
// decode the conditional half.
func (w *worker) generate(req Request) (Result, error) {
	cfg := w.pool.cfg

	tr, err := transport.New(cfg.Transport)
	if err != nil {
		return Result{}, err
	}
	sampler := transport.NewSampler(tr)

	progress := func(step, total int) {
		w.pool.publish(Event{Name: "progress", RequestID: req.ID.String(), Fields: map[string]any{
			"step": step, "total": total,
		}})
		if req.Progress != nil {
			req.Progress(step, total)
		}
	}

	var sampleFn transport.SampleFn
	seed := req.Seed
	if seed == 0 {
		seed = rand.Int63n(maxSeed) + 1
	}
	rng := rand.New(rand.NewSource(seed))

	if req.UseSDE {
		sampleFn, err = sampler.SampleSDE(transport.SDEOptions{
			Method:        transport.SDEMethod(cfg.SDE.Method),
			Steps:         req.Steps,
			DiffusionForm: transport.DiffusionForm(cfg.SDE.DiffusionForm),
			DiffusionNorm: cfg.SDE.DiffusionNorm,
			LastStep:      transport.LastStep(cfg.SDE.LastStep),
			LastStepSize:  cfg.SDE.LastStepSize,
			TimeShift:     req.TimeShift,
			RNG:           rng,
		})
	} else {
		sampleFn, err = sampler.SampleODE(transport.ODEOptions{
			Method:    transport.SolverMethod(req.Solver),
			Steps:     req.Steps,
			ATol:      cfg.ATol,
			RTol:      cfg.RTol,
			Reverse:   cfg.Reverse,
			TimeShift: req.TimeShift,
		})
	}
	if err != nil {
		return Result{}, err
	}

	width, height, err := ParseResolution(req.Resolution)
	if err != nil {
		return Result{}, err
	}
	lw := width / diffusion.LatentDownsample
	lh := height / diffusion.LatentDownsample

	cond, err := diffusion.BuildConditioning(cfg.Tokenizer, w.backend.TextEncoder, diffusion.CondParams{
		Caption:          req.Caption,
		CFGScale:         req.CFGScale,
		Width:            width,
		Height:           height,
		ImageSize:        cfg.ImageSize,
		NTKScaling:       req.NTKScaling,
		ProportionalAttn: req.ProportionalAttn,
	})
	if err != nil {
		return Result{}, err
	}

	// Draw one latent and repeat it across the CFG pair, so both branches
	// start from the same noise.
	half := diffusion.LatentChannels * lh * lw
	noise := make([]float32, 2*half)
	for i := 0; i < half; i++ {
		n := float32(rng.NormFloat64())
		noise[i] = n
		noise[half+i] = n
	}
	z := tensor.New(tensor.WithShape(2, diffusion.LatentChannels, lh, lw), tensor.WithBacking(noise))

	field := diffusion.CFGField(w.backend.Denoiser, cond)
	final, steps, err := sampleFn(z, field, progress)
	if err != nil {
		return Result{}, err
	}

	// Keep the conditional half and decode it.
	latent := tensor.New(
		tensor.WithShape(1, diffusion.LatentChannels, lh, lw),
		tensor.WithBacking(final.Data().([]float32)[:half]),
	)
	img, err := w.backend.Decoder.Decode(latent)
	if err != nil {
		return Result{}, err
	}
	return Result{ID: req.ID, Image: img, Seed: seed, Steps: steps}, nil
}

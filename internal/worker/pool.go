// Package worker owns the sampling side of the daemon: a pool of
// single-flight workers (one per device), a startup barrier, and the
// request/response queues between the front end and the model.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"luminad/internal/diffusion"
	"luminad/internal/transport"
	"luminad/pkg/types"
)

// State represents lifecycle state of the pool/workers.
type State string

const (
	StateReady   State = "ready"
	StateLoading State = "loading"
	StateError   State = "error"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultQueueDepth = 8
	defaultMaxWait    = 30 * time.Second
)

// SDEDefaults carries the SDE flag group; per-request parameters (steps,
// time shift, seed) come from the request itself.
type SDEDefaults struct {
	Method        string
	DiffusionForm string
	DiffusionNorm float64
	LastStep      string
	LastStepSize  float64
}

// BackendLoader loads the model stack for a device rank. It runs inside the
// worker goroutine, before the startup barrier releases.
type BackendLoader func(rank int) (*diffusion.Backend, error)

// Config encapsulates all tunables for Pool construction.
type Config struct {
	// Devices is the accelerator count. Only 1 is supported.
	Devices    int
	QueueDepth int
	MaxWait    time.Duration

	// ImageSize is the base training resolution from the checkpoint.
	ImageSize int

	Transport transport.Config
	// ODE tolerances and direction, fixed at startup by flags.
	ATol    float64
	RTol    float64
	Reverse bool
	SDE     SDEDefaults

	Tokenizer diffusion.Tokenizer
	Backend   BackendLoader
	Publisher EventPublisher
}

// Pool coordinates the workers and routes responses back to submitters.
type Pool struct {
	cfg Config

	mu      sync.RWMutex
	state   State
	lastErr string

	workers []*worker
	barrier *Barrier
	respCh  chan Result

	wmu     sync.Mutex
	waiters map[uuid.UUID]chan Result

	generations atomic.Uint64
	failures    atomic.Uint64
	startTime   time.Time
	wg          sync.WaitGroup
}

type worker struct {
	rank    int
	pool    *Pool
	reqCh   chan Request
	backend *diffusion.Backend
	// publishResults: only rank 0 owns the response queue; other ranks
	// sample in lockstep and drop their output.
	publishResults bool

	state    State
	lastUsed time.Time
	inflight atomic.Int32
}

// zlog is an optional structured logger. If unset, falls back to log.Printf.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the worker pool.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logf(format string, args ...any) {
	if zlog != nil {
		zlog.Info().Msgf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func logErrf(err error, format string, args ...any) {
	if zlog != nil {
		zlog.Error().Err(err).Msgf(format, args...)
		return
	}
	log.Printf(format+" err=%v", append(args, err)...)
}

// New constructs a Pool. The device count is validated here: multi-device
// sampling is not supported.
func New(cfg Config) (*Pool, error) {
	if cfg.Devices != 1 {
		return nil, fmt.Errorf("inference with %d devices is not supported (single device only)", cfg.Devices)
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("worker pool requires a backend loader")
	}
	if cfg.Tokenizer == nil {
		return nil, fmt.Errorf("worker pool requires a tokenizer")
	}
	// Fail fast on a bad transport flag combination.
	if _, err := transport.New(cfg.Transport); err != nil {
		return nil, err
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	p := &Pool{
		cfg:       cfg,
		state:     StateLoading,
		respCh:    make(chan Result),
		waiters:   make(map[uuid.UUID]chan Result),
		startTime: time.Now(),
	}
	for rank := 0; rank < cfg.Devices; rank++ {
		p.workers = append(p.workers, &worker{
			rank:           rank,
			pool:           p,
			reqCh:          make(chan Request, cfg.QueueDepth),
			publishResults: rank == 0,
			state:          StateLoading,
		})
	}
	return p, nil
}

// Start launches the workers and blocks on the startup barrier until every
// worker has loaded its model (or failed to). A load failure is returned
// and leaves the pool in the error state.
func (p *Pool) Start() error {
	p.barrier = NewBarrier(len(p.workers) + 1)
	for _, w := range p.workers {
		p.wg.Add(1)
		go w.run()
	}
	go p.dispatch()
	p.barrier.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastErr != "" {
		p.state = StateError
		return fmt.Errorf("worker startup failed: %s", p.lastErr)
	}
	p.state = StateReady
	logf("pool event=ready workers=%d", len(p.workers))
	return nil
}

// Close shuts the request queues, waits for in-flight work to drain, and
// stops the response dispatcher.
func (p *Pool) Close() {
	for _, w := range p.workers {
		close(w.reqCh)
	}
	p.wg.Wait()
	close(p.respCh)
}

// Ready reports whether the startup barrier has released successfully.
func (p *Pool) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == StateReady
}

// Submit validates the request, reserves a queue slot with the configured
// max wait, and blocks until the worker publishes a result. There is no
// cancellation once the request has been enqueued.
func (p *Pool) Submit(ctx context.Context, req Request) (Result, error) {
	if !p.Ready() {
		return Result{}, notReadyError{}
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	ch := make(chan Result, 1)
	p.wmu.Lock()
	p.waiters[req.ID] = ch
	p.wmu.Unlock()
	defer func() {
		p.wmu.Lock()
		delete(p.waiters, req.ID)
		p.wmu.Unlock()
	}()

	// Fan the request out to every rank; only rank 0 publishes the result.
	timer := time.NewTimer(p.cfg.MaxWait)
	defer timer.Stop()
	for _, w := range p.workers {
		select {
		case w.reqCh <- req:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-timer.C:
			return Result{}, tooBusyError{rank: w.rank}
		}
	}

	res := <-ch
	if res.Failed {
		p.failures.Add(1)
		return res, generationFailedError{id: req.ID.String()}
	}
	p.generations.Add(1)
	return res, nil
}

// dispatch routes worker results to the matching submitter.
func (p *Pool) dispatch() {
	for res := range p.respCh {
		p.wmu.Lock()
		ch, ok := p.waiters[res.ID]
		p.wmu.Unlock()
		if ok {
			ch <- res
		} else {
			logf("pool event=orphan_result request_id=%s", res.ID)
		}
	}
}

func (p *Pool) publish(ev Event) {
	p.cfg.Publisher.Publish(ev)
}

func (p *Pool) setWorkerError(rank int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workers[rank].state = StateError
	p.lastErr = err.Error()
}

// Status builds a detailed status response for /status.
func (p *Pool) Status() types.StatusResponse {
	p.mu.RLock()
	defer p.mu.RUnlock()
	resp := types.StatusResponse{
		State:            string(p.state),
		LastError:        p.lastErr,
		GenerationsTotal: p.generations.Load(),
		FailuresTotal:    p.failures.Load(),
		UptimeSeconds:    int64(time.Since(p.startTime).Seconds()),
		ServerTimeUnix:   time.Now().Unix(),
	}
	resp.Workers = make([]types.WorkerStatus, 0, len(p.workers))
	for _, w := range p.workers {
		resp.Workers = append(resp.Workers, types.WorkerStatus{
			Rank:          w.rank,
			State:         string(w.state),
			LastUsed:      w.lastUsed.Unix(),
			QueueLen:      len(w.reqCh),
			Inflight:      int(w.inflight.Load()),
			MaxQueueDepth: cap(w.reqCh),
		})
	}
	return resp
}

// Package pipeline wires source, decoder, coordinate stamping, registry
// and sink into a pool of workers.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"geomesh.io/hyperbr/internal/config"
	"geomesh.io/hyperbr/internal/core/ipv6"
	"geomesh.io/hyperbr/internal/decoder"
	"geomesh.io/hyperbr/internal/hyperspace"
	"geomesh.io/hyperbr/internal/log"
	"geomesh.io/hyperbr/internal/registry"
	"geomesh.io/hyperbr/internal/sink"
	"geomesh.io/hyperbr/internal/source"
)

// Pipeline pulls frames from one source, stamps or observes coordinate
// options, and pushes the results to one sink.
type Pipeline struct {
	node    config.NodeConfig
	workers int

	src  source.Source
	snk  sink.Sink
	reg  *registry.Registry
	pool *ipv6.PacketPool

	counters Counters

	intake chan []byte
	cancel context.CancelFunc
	wg     sync.WaitGroup
	srcErr chan error

	mu      sync.Mutex
	started bool
}

// New assembles a stopped pipeline. reg may be nil when no registry is
// wired (offline replay runs).
func New(cfg *config.GlobalConfig, src source.Source, snk sink.Sink, reg *registry.Registry) *Pipeline {
	workers := cfg.Ingest.Workers
	if workers <= 0 {
		workers = 1
	}
	queue := cfg.Ingest.QueueSize
	if queue <= 0 {
		queue = 64
	}
	bufSize := cfg.Ingest.BufferSize
	if bufSize <= 0 {
		bufSize = 2048
	}
	return &Pipeline{
		node:    cfg.Node,
		workers: workers,
		src:     src,
		snk:     snk,
		reg:     reg,
		pool:    ipv6.NewPacketPool(bufSize),
		intake:  make(chan []byte, queue),
		srcErr:  make(chan error, 1),
	}
}

// Start launches the source reader and the worker pool.
func (pl *Pipeline) Start() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.started {
		return fmt.Errorf("pipeline already started")
	}
	pl.started = true

	ctx, cancel := context.WithCancel(context.Background())
	pl.cancel = cancel

	for i := 0; i < pl.workers; i++ {
		pl.wg.Add(1)
		go pl.worker(i)
	}

	go func() {
		err := pl.src.Run(ctx, pl.intake)
		if err != nil && ctx.Err() == nil {
			log.GetLogger().WithError(err).Errorf("source %s failed", pl.src.Name())
		}
		close(pl.intake)
		pl.srcErr <- err
	}()

	log.GetLogger().WithFields(map[string]interface{}{
		"source":  pl.src.Name(),
		"sink":    pl.snk.Name(),
		"workers": pl.workers,
	}).Info("pipeline started")
	return nil
}

// Stop cancels the source and waits for the workers to drain.
func (pl *Pipeline) Stop() {
	pl.mu.Lock()
	if !pl.started {
		pl.mu.Unlock()
		return
	}
	pl.mu.Unlock()

	pl.cancel()
	pl.wg.Wait()
}

// Wait blocks until the source is exhausted and all queued frames are
// processed. File sources finish on their own; network sources only
// return after Stop.
func (pl *Pipeline) Wait() error {
	err := <-pl.srcErr
	pl.wg.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// Stats returns a snapshot of the pipeline counters.
func (pl *Pipeline) Stats() Stats { return pl.counters.snapshot() }

// worker processes frames until the intake channel closes. Each worker
// owns its decoder and packet-identifier counter.
func (pl *Pipeline) worker(idx int) {
	defer pl.wg.Done()

	dec := decoder.New(pl.src.Link())
	// spread the identifier space so concurrent workers do not issue
	// overlapping runs from zero
	hctx := hyperspace.NewContext(uint16(idx) << 12)

	for frame := range pl.intake {
		if err := pl.process(dec, hctx, frame); err != nil {
			pl.counters.dropped.Add(1)
			log.GetLogger().WithError(err).Debug("frame dropped")
		}
	}
}

func (pl *Pipeline) process(dec *decoder.Decoder, hctx *hyperspace.Context, frame []byte) error {
	pl.counters.received.Add(1)

	raw, err := dec.IPv6Payload(frame)
	if err != nil {
		return err
	}

	pkt := pl.pool.Acquire()
	defer pl.pool.Release(pkt)
	if err := pkt.Load(raw); err != nil {
		return err
	}

	opt, found, err := hyperspace.Find(pkt)
	if err != nil {
		return err
	}

	if found {
		if dest, seq, ok := opt.Destination(); ok {
			// response path: the peer reported its own coordinate as
			// the destination it answered from
			pl.counters.observed.Add(1)
			if pl.reg != nil {
				pl.reg.Upsert(pkt.SrcAddr(), dest, seq)
			}
			return pl.snk.Send(pkt.Bytes())
		}
	} else {
		opt, _, err = hyperspace.Insert(hctx, pkt)
		if err != nil {
			return err
		}
	}

	opt.SetSource(pl.node.R, pl.node.T, pl.node.Seq)
	if err := pkt.Finalize(); err != nil {
		return err
	}
	pl.counters.stamped.Add(1)
	return pl.snk.Send(pkt.Bytes())
}

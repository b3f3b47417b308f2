// Package graph implements the minimal cooperative stream-graph scheduler
// (spec §5): a single worker goroutine drains a queue of nodes in
// run-to-completion fashion: one worker per graph rather than one
// goroutine per node.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Node is one stage of a stream graph. ProcessData runs to completion
// before the scheduler moves to the next queued invocation — it must
// never block on external I/O (spec §5's suspension rules route actual
// blocking I/O to dedicated platform threads, not graph nodes).
type Node interface {
	Name() string
	ProcessData(ctx context.Context, data []byte) error
}

type job struct {
	node Node
	data []byte
}

// Graph is a cooperative pipeline: nodes wired TX-to-RX in registration
// order, executed by a single worker goroutine.
type Graph struct {
	mu     sync.Mutex
	nodes  []Node
	queue  chan job
	stop   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates a graph with the given queue depth (backpressure bound).
func New(queueDepth int, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		queue:  make(chan job, queueDepth),
		stop:   make(chan struct{}),
		logger: logger,
	}
}

// AddNode appends a node to the pipeline's registration order.
func (g *Graph) AddNode(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = append(g.nodes, n)
}

// Start launches the single worker goroutine that drains queued jobs.
func (g *Graph) Start(ctx context.Context) {
	g.wg.Add(1)
	go g.run(ctx)
}

func (g *Graph) run(ctx context.Context) {
	defer g.wg.Done()
	for {
		select {
		case <-g.stop:
			return
		case <-ctx.Done():
			return
		case j := <-g.queue:
			if err := j.node.ProcessData(ctx, j.data); err != nil {
				g.logger.Warn("graph: node processing failed", "node", j.node.Name(), "error", err)
			}
		}
	}
}

// Push enqueues data for processing by node, returning an error if the
// queue is full (the caller's backpressure signal).
func (g *Graph) Push(node Node, data []byte) error {
	select {
	case g.queue <- job{node: node, data: data}:
		return nil
	default:
		return fmt.Errorf("graph: queue full, dropping data for node %q", node.Name())
	}
}

// Stop signals the worker to exit and waits for it to return; jobs still
// queued at that point are not processed.
func (g *Graph) Stop() {
	close(g.stop)
	g.wg.Wait()
}

// Nodes returns the registered nodes in pipeline order (a copy).
func (g *Graph) Nodes() []Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

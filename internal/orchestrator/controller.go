package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/r1k0/nuxhash/internal/interfaces"
	"github.com/r1k0/nuxhash/internal/lib"
	"github.com/r1k0/nuxhash/internal/mining"
)

var ErrAlreadyMining = errors.New("mining already started")

// Factory builds a fresh orchestrator with its own immutable settings and
// benchmark snapshot. Called once per start, so configuration edits take
// effect on the next start, never on a running loop
type Factory func() *Orchestrator

// Controller is the start/stop control surface over the orchestration loop
type Controller struct {
	mu      sync.Mutex
	factory Factory
	current *Orchestrator
	task    *lib.Task
	log     interfaces.ILogger
}

func NewController(factory Factory, log interfaces.ILogger) *Controller {
	return &Controller{
		factory: factory,
		log:     log,
	}
}

// StartMining launches a new orchestration run
func (c *Controller) StartMining(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.task != nil {
		select {
		case <-c.task.Done():
		default:
			if c.current.State() != StateTerminated {
				return ErrAlreadyMining
			}
		}
	}

	c.current = c.factory()
	c.task = lib.NewTask(c.current)
	c.task.Start(ctx)
	c.log.Infof("mining started")
	return nil
}

// StopMining requests shutdown and blocks until the run has terminated.
// Calling it when mining is not running is a no-op
func (c *Controller) StopMining() {
	c.mu.Lock()
	task := c.task
	current := c.current
	c.mu.Unlock()

	if task == nil {
		return
	}
	<-task.Stop()
	// the task context cancel triggers the shutdown job; wait for the loop
	if current != nil {
		current.Stop()
	}
	c.log.Infof("mining stopped")
}

// State reports the current run's lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return StateCreated
	}
	return c.current.State()
}

// Assignment returns the current run's device assignment
func (c *Controller) Assignment() mining.Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return mining.Assignment{}
	}
	return c.current.Assignment()
}

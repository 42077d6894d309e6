// Package crowd evaluates many independent skeleton instances per frame on
// a shared pool of reusable workers. Each actor owns a skeleton clone and
// its own animation state set, so evaluation tasks never share mutable
// state and the single-writer contract of the animation core holds.
package crowd

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"go.uber.org/zap"

	"github.com/Faultbox/skelkit/pkg/anim"
	"github.com/Faultbox/skelkit/pkg/math3"
)

// Config sizes the worker pool. Zero values pick defaults: NumCPU-1
// workers (at least one), a 256 task queue, one second idle timeout.
type Config struct {
	Workers     int
	QueueSize   int
	IdleTimeout time.Duration
}

// Actor is one animated skeleton instance in the crowd.
type Actor struct {
	skeleton *anim.Skeleton
	states   *anim.AnimationStateSet
	matrices []math3.Mat4
	err      error
}

// Skeleton returns the actor's private skeleton clone.
func (a *Actor) Skeleton() *anim.Skeleton { return a.skeleton }

// States returns the actor's animation state set. Mutate it between
// Advance calls, not during.
func (a *Actor) States() *anim.AnimationStateSet { return a.states }

// BoneMatrices returns the skinning matrices computed by the last Advance,
// indexed by bone handle.
func (a *Actor) BoneMatrices() []math3.Mat4 { return a.matrices }

// evaluate is the per-frame task body. It only touches this actor.
func (a *Actor) evaluate() {
	a.err = a.skeleton.SetAnimationState(a.states)
	if a.err == nil {
		a.skeleton.BoneMatrices(a.matrices)
	}
}

// Crowd owns the actors and the worker pool. It is driven from a single
// thread, parallelism stays inside Advance.
type Crowd struct {
	pool   worker.DynamicWorkerPool
	actors []*Actor
	log    *zap.Logger
	taskID int
}

// New creates an empty crowd with its worker pool. A nil logger disables
// logging.
func New(cfg Config, log *zap.Logger) *Crowd {
	if log == nil {
		log = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = max(runtime.NumCPU()-1, 1)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = time.Second
	}

	log.Debug("crowd pool configured",
		zap.Int("workers", workers),
		zap.Int("queue_size", queueSize),
		zap.Duration("idle_timeout", idle))

	return &Crowd{
		pool: worker.NewDynamicWorkerPool(workers, queueSize, idle),
		log:  log,
	}
}

// Spawn adds an actor cloned from the prototype skeleton, with a state per
// available animation (all disabled).
func (c *Crowd) Spawn(proto *anim.Skeleton) *Actor {
	skel := proto.Clone(fmt.Sprintf("%s#%d", proto.Name(), len(c.actors)))
	states := anim.NewAnimationStateSet()
	skel.InitAnimationState(states)

	actor := &Actor{
		skeleton: skel,
		states:   states,
		matrices: make([]math3.Mat4, skel.BoneCount()),
	}
	c.actors = append(c.actors, actor)
	return actor
}

// Actors returns the spawned actors. Treat it as read-only.
func (c *Crowd) Actors() []*Actor { return c.actors }

// Advance steps every enabled animation state by dt seconds, then evaluates
// all actors in parallel: one pose-and-matrices task per actor, with a
// WaitGroup barrier so the frame completes before returning. Pool workers
// are reused across frames. Returns the first evaluation error.
func (c *Crowd) Advance(dt float32) error {
	var wg sync.WaitGroup
	for _, actor := range c.actors {
		for _, st := range actor.states.EnabledAnimationStates() {
			st.AddTime(dt)
		}

		wg.Add(1)
		aCap := actor // capture for closure
		id := c.taskID
		c.taskID++
		c.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				aCap.evaluate()
				return nil, nil
			},
		})
	}
	wg.Wait()

	for i, actor := range c.actors {
		if actor.err != nil {
			c.log.Error("actor evaluation failed",
				zap.Int("actor", i),
				zap.Error(actor.err))
			return fmt.Errorf("actor %d: %w", i, actor.err)
		}
	}
	return nil
}

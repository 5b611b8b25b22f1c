// Package queue serializes pipeline runs. Captioning, synthesis, and video
// encoding are heavyweight; one worker keeps concurrent uploads from
// thrashing the encoder while each run still gets its own artifact dir.
package queue

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"dreamcanvas/pkg/pipeline"
	"dreamcanvas/pkg/utils"
)

type Queue struct {
	orch  *pipeline.Orchestrator
	stop  chan struct{}
	items chan *Item
}

type Item struct {
	Ctx     context.Context
	Request pipeline.Request
	Notify  pipeline.Observer
	Result  chan *pipeline.Result
}

func New(orch *pipeline.Orchestrator) *Queue {
	return &Queue{
		orch:  orch,
		items: make(chan *Item, 16),
		stop:  make(chan struct{}),
	}
}

func (q *Queue) Start() {
	go q.processLoop()
}

func (q *Queue) Stop() {
	close(q.stop)
}

// Add enqueues a run. The returned channel delivers exactly one result.
// A full queue is rejected immediately rather than blocking the upload
// handler.
func (q *Queue) Add(ctx context.Context, req pipeline.Request, notify pipeline.Observer) (chan *pipeline.Result, error) {
	item := &Item{
		Ctx:     ctx,
		Request: req,
		Notify:  notify,
		Result:  make(chan *pipeline.Result, 1),
	}

	select {
	case q.items <- item:
		return item.Result, nil
	default:
		return nil, errors.New("queue is full")
	}
}

func (q *Queue) processLoop() {
	log.Info("run queue started")
	for {
		select {
		case <-q.stop:
			log.Info("run queue stopped")
			return
		case item := <-q.items:
			q.processItem(item)
		}
	}
}

func (q *Queue) processItem(item *Item) {
	req := item.Request
	log.Info("processing run", "run", req.RunID, "image", utils.LimitStr(req.ImagePath, 60))

	// The item's context belongs to the originating request; a user who
	// navigated away cancels their own run only.
	res := q.orch.Run(item.Ctx, req, item.Notify)
	item.Result <- res
	close(item.Result)
}

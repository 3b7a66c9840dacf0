package jobs

import "context"

// Pricer is the entry point used by host layers: submit requests, then run them
// as one batch.
type Pricer struct {
	queue *Queue
	proc  *Processor
}

func NewPricer(proc *Processor) *Pricer {
	if proc == nil {
		proc = NewProcessor()
	}
	return &Pricer{queue: NewQueue(), proc: proc}
}

func (p *Pricer) SubmitJob(req JobRequest) SubmitOutcome {
	return p.queue.Submit(NewJob(req))
}

// RunBatch prices everything submitted so far. Pass a context with a deadline to
// bound the batch; onResult may be nil when only the returned slice is wanted.
func (p *Pricer) RunBatch(ctx context.Context, onResult ResultHandler) ([]JobResult, error) {
	return p.proc.RunBatch(ctx, p.queue, onResult)
}

func (p *Pricer) Pending() int {
	return p.queue.Len()
}

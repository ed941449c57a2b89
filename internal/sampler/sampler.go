package sampler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"pkt.systems/pslog"

	"github.com/Dicklesworthstone/dwatch/internal/model"
)

// Runner executes a single command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// Sampler runs every configured command once per pass, in parallel, and
// joins the results in command order.
type Sampler struct {
	Commands []string
	Interval time.Duration

	runner Runner
	seq    uint64
}

// New returns a Sampler running commands through runner.
func New(commands []string, interval time.Duration, runner Runner) *Sampler {
	return &Sampler{
		Commands: commands,
		Interval: interval,
		runner:   runner,
	}
}

// Sample dispatches one worker per command and blocks until all of them have
// returned. A failing command only affects its own result.
func (s *Sampler) Sample(ctx context.Context) model.Pass {
	s.seq++
	pass := model.Pass{
		Seq:      s.seq,
		Started:  time.Now(),
		Interval: s.Interval,
		Results:  make([]model.CommandResult, len(s.Commands)),
	}
	log := pslog.Ctx(ctx)

	var g errgroup.Group
	for i, command := range s.Commands {
		g.Go(func() error {
			started := time.Now()
			out, err := s.runner.Run(ctx, command)
			pass.Results[i] = model.CommandResult{
				Command: command,
				Output:  out,
				Err:     err,
				Elapsed: time.Since(started),
			}
			if err != nil {
				log.Debug("command failed", "pass", pass.Seq, "command", command, "err", err)
			} else {
				log.Trace("command done", "pass", pass.Seq, "command", command, "bytes", len(out))
			}
			return nil
		})
	}
	_ = g.Wait()
	return pass
}

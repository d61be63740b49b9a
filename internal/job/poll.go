package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/avatarstudio/avatargw/internal/domain"
	"github.com/avatarstudio/avatargw/internal/gateway"
	"github.com/avatarstudio/avatargw/internal/infra/metrics"
)

// PollPolicy bounds the inline poll loop.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts uint64
	MaxElapsed  time.Duration
}

// DefaultPollPolicy polls every 500ms for at most 600 attempts or 5 minutes.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval:    500 * time.Millisecond,
		MaxAttempts: 600,
		MaxElapsed:  5 * time.Minute,
	}
}

func (p PollPolicy) withDefaults() PollPolicy {
	d := DefaultPollPolicy()
	if p.Interval <= 0 {
		p.Interval = d.Interval
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = d.MaxElapsed
	}
	return p
}

func (p PollPolicy) backoff() retry.Backoff {
	b := retry.NewConstant(p.Interval)
	b = retry.WithMaxDuration(p.MaxElapsed, b)
	// MaxRetries counts the waits between attempts.
	return retry.WithMaxRetries(p.MaxAttempts-1, b)
}

var errStillRunning = errors.New("task still running")

// Poll performs one status query. It is a pure read and safe to repeat.
func (s *Service) Poll(ctx context.Context, h domain.TaskHandle, apiKey string) (domain.PollResult, error) {
	if err := s.validate(PollRequest{APIKey: apiKey, ID: h.TaskID}); err != nil {
		return domain.PollResult{}, err
	}
	return s.pollOnce(ctx, h, apiKey)
}

func (s *Service) pollOnce(ctx context.Context, h domain.TaskHandle, apiKey string) (domain.PollResult, error) {
	n, err := s.vendors.Lookup(h.Vendor)
	if err != nil {
		return domain.PollResult{}, err
	}

	resp, err := s.gw.Send(ctx, gateway.Request{
		Op:        "poll_" + string(h.Vendor),
		Method:    http.MethodGet,
		Path:      n.StatusPath(h.TaskID),
		APIKey:    apiKey,
		NoTimeout: true,
	})
	if err != nil {
		return domain.PollResult{}, err
	}

	res, err := n.ToPollResult(resp.Body)
	if res.Status != "" {
		metrics.Polls.WithLabelValues(string(h.Vendor), string(res.Status)).Inc()
	}
	if res.Status.IsTerminal() {
		s.log.Info("task finished", "vendor", h.Vendor, "task_id", h.TaskID, "status", res.Status)
		s.finish(h, res)
	}
	return res, err
}

// PollUntilDone loops until the task reaches a terminal status, the policy
// budget runs out, or ctx ends. A zero policy uses the service default.
//
// Budget exhaustion and ctx deadlines yield a timeout result with
// domain.ErrVendorTimeout. Vendor failures and transport errors end the
// loop on the attempt that saw them.
func (s *Service) PollUntilDone(ctx context.Context, h domain.TaskHandle, apiKey string, policy PollPolicy) (domain.PollResult, error) {
	if err := s.validate(PollRequest{APIKey: apiKey, ID: h.TaskID}); err != nil {
		return domain.PollResult{}, err
	}
	if policy == (PollPolicy{}) {
		policy = s.policy
	}
	policy = policy.withDefaults()

	var (
		last     domain.PollResult
		attempts int
		start    = time.Now()
	)
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempts++
		res, err := s.pollOnce(ctx, h, apiKey)
		last = res
		if err != nil {
			return err
		}
		if !res.Status.IsTerminal() {
			return retry.RetryableError(errStillRunning)
		}
		return nil
	})
	metrics.InlinePollAttempts.WithLabelValues(string(h.Vendor)).Observe(float64(attempts))

	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, errStillRunning), errors.Is(ctx.Err(), context.DeadlineExceeded):
		res := s.timeout(h, attempts, time.Since(start))
		return res, fmt.Errorf("%w: %s task %s after %d attempts", domain.ErrVendorTimeout, h.Vendor, h.TaskID, attempts)
	case ctx.Err() != nil:
		return domain.PollResult{}, ctx.Err()
	default:
		return last, err
	}
}

func (s *Service) timeout(h domain.TaskHandle, attempts int, elapsed time.Duration) domain.PollResult {
	res := domain.PollResult{
		Status: domain.StatusTimeout,
		Error:  &domain.ResultError{Code: "timeout", Message: "task did not finish in time"},
	}
	metrics.Polls.WithLabelValues(string(h.Vendor), string(res.Status)).Inc()
	s.log.Warn("poll budget exhausted", "vendor", h.Vendor, "task_id", h.TaskID,
		"attempts", attempts, "elapsed", elapsed.Round(time.Millisecond))
	s.finish(h, res)
	return res
}

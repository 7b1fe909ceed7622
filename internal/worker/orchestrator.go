package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/satwatch-io/satwatch/internal/broker"
	"github.com/satwatch-io/satwatch/pkg/models"
)

// EventPublisher is the slice of the broker the orchestrator publishes
// lifecycle events through.
type EventPublisher interface {
	PublishEvent(ctx context.Context, routingKey string, evt models.Event) error
}

// Orchestrator turns one consumed order message into a deterministic event
// lifecycle: order.started, one provider.update per provider and mode, and
// exactly one terminal order.complete or order.failed.
type Orchestrator struct {
	providers    []models.ImageryProvider
	bus          EventPublisher
	startupDelay time.Duration
	now          func() time.Time
}

// NewOrchestrator builds an orchestrator over an explicit provider set.
// The set is constructed once at startup and never mutated, so tests can
// substitute fakes freely.
func NewOrchestrator(providers []models.ImageryProvider, bus EventPublisher, startupDelay time.Duration) *Orchestrator {
	return &Orchestrator{
		providers:    providers,
		bus:          bus,
		startupDelay: startupDelay,
		now:          time.Now,
	}
}

type orderEnvelope struct {
	OrderID string `json:"orderId"`
	Type    string `json:"type"`
	models.JobRequest
}

// HandleMessage processes one raw order message. A nil return means the
// lifecycle reached a terminal event and the message must be acknowledged;
// a non-nil return is a plumbing failure (undecodable envelope, broker
// publish failure) and the message must be negatively acknowledged without
// requeue.
func (o *Orchestrator) HandleMessage(ctx context.Context, body []byte) error {
	var env orderEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decoding order message: %w", err)
	}
	if env.OrderID == "" {
		return fmt.Errorf("order message missing orderId")
	}

	orderID := env.OrderID
	jobType := env.Type
	if jobType == "" {
		jobType = models.JobTypeSearch
	}

	slog.Info("processing order", "order_id", orderID, "job_type", jobType)

	if jobType != models.JobTypeSearch && jobType != models.JobTypeTask {
		slog.Warn("unknown job type", "order_id", orderID, "job_type", jobType)
		o.pause(ctx)
		return o.bus.PublishEvent(ctx, broker.OrderKey(orderID, "failed"), models.Event{
			Type:    models.EventOrderFailed,
			OrderID: orderID,
			Error:   fmt.Sprintf("Unknown job type: %s", jobType),
		})
	}

	// Pause so stream clients see the order.started event arrive.
	o.pause(ctx)

	if err := o.bus.PublishEvent(ctx, broker.OrderKey(orderID, "started"), models.Event{
		Type:    models.EventOrderStarted,
		OrderID: orderID,
	}); err != nil {
		return err
	}

	req, err := validateRequest(env.JobRequest)
	if err != nil {
		return o.bus.PublishEvent(ctx, broker.OrderKey(orderID, "failed"), models.Event{
			Type:    models.EventOrderFailed,
			OrderID: orderID,
			Error:   err.Error(),
		})
	}

	// Fan out one task per provider. Tasks never cancel each other: every
	// provider failure is caught at the task boundary and reported as a
	// provider.update event. The only error a task returns is a broker
	// publish failure.
	g := new(errgroup.Group)
	for _, p := range o.providers {
		p := p
		g.Go(func() error {
			return o.runProvider(ctx, orderID, jobType, p, req)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("order failed", "order_id", orderID, "error", err)
		return o.bus.PublishEvent(ctx, broker.OrderKey(orderID, "failed"), models.Event{
			Type:    models.EventOrderFailed,
			OrderID: orderID,
			Error:   err.Error(),
		})
	}

	return o.bus.PublishEvent(ctx, broker.OrderKey(orderID, "complete"), models.Event{
		Type:    models.EventOrderComplete,
		OrderID: orderID,
	})
}

// validateRequest checks the parts of the payload the orchestrator depends
// on. A malformed payload terminates the order with order.failed, never a
// crash.
func validateRequest(req models.JobRequest) (models.JobRequest, error) {
	if _, _, err := req.Window(); err != nil {
		return models.JobRequest{}, err
	}
	if len(req.BBox) != 4 {
		return models.JobRequest{}, fmt.Errorf("bbox must have exactly 4 elements, got %d", len(req.BBox))
	}
	return req, nil
}

// runProvider is the per-adapter isolation boundary: provider errors and
// panics become provider.update events and never propagate to siblings.
func (o *Orchestrator) runProvider(ctx context.Context, orderID, jobType string, p models.ImageryProvider, req models.JobRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in provider task", "order_id", orderID, "provider", p.Name(), "error", r)
			err = o.publishProviderError(ctx, orderID, p.Name(), fmt.Sprintf("panic: %v", r))
		}
	}()

	switch jobType {
	case models.JobTypeSearch:
		return o.runSearch(ctx, orderID, p, req)
	case models.JobTypeTask:
		return o.runTask(ctx, orderID, p, req)
	}
	return nil
}

func (o *Orchestrator) runSearch(ctx context.Context, orderID string, p models.ImageryProvider, req models.JobRequest) error {
	start, end, err := req.Window()
	if err != nil {
		return o.publishProviderError(ctx, orderID, p.Name(), err.Error())
	}

	for _, mode := range ResolveModes(start, end, o.now()) {
		evt := models.Event{
			Type:     models.EventProviderUpdate,
			OrderID:  orderID,
			Provider: p.Name(),
			Mode:     string(mode),
		}

		count := 0
		if mode == ModeArchive || mode == ModeMixed {
			features, err := p.SearchArchive(ctx, req.StartDate, req.EndDate, req.BBox)
			if err != nil {
				return o.publishProviderError(ctx, orderID, p.Name(), err.Error())
			}
			evt.Features = features
			count += len(features)
		}
		if mode == ModeFeasibility || mode == ModeMixed {
			opportunities, err := p.SearchFeasibility(ctx, req.StartDate, req.EndDate, req.CenterPoint())
			if err != nil {
				return o.publishProviderError(ctx, orderID, p.Name(), err.Error())
			}
			evt.Opportunities = opportunities
			count += len(opportunities)
		}

		evt.Status = models.StatusOK
		if count == 0 {
			evt.Status = models.StatusEmpty
		}

		key := broker.ProviderKey(orderID, p.Name(), evt.Status)
		if err := o.bus.PublishEvent(ctx, key, evt); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runTask(ctx context.Context, orderID string, p models.ImageryProvider, req models.JobRequest) error {
	if !p.Capabilities().Has(models.CapTasking) {
		return nil
	}

	task, err := p.CreateTask(ctx, req.StartDate, req.EndDate, req.CenterPoint())
	if err != nil {
		return o.publishProviderError(ctx, orderID, p.Name(), err.Error())
	}

	evt := models.Event{
		Type:     models.EventProviderUpdate,
		OrderID:  orderID,
		Provider: p.Name(),
		Mode:     "task",
		Status:   models.StatusOK,
		Task:     task,
	}
	return o.bus.PublishEvent(ctx, broker.ProviderKey(orderID, p.Name(), models.StatusOK), evt)
}

func (o *Orchestrator) publishProviderError(ctx context.Context, orderID, provider, msg string) error {
	return o.bus.PublishEvent(ctx, broker.ProviderKey(orderID, provider, models.StatusError), models.Event{
		Type:     models.EventProviderUpdate,
		OrderID:  orderID,
		Provider: provider,
		Status:   models.StatusError,
		Error:    msg,
	})
}

func (o *Orchestrator) pause(ctx context.Context) {
	if o.startupDelay <= 0 {
		return
	}
	t := time.NewTimer(o.startupDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

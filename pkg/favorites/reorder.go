package favorites

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Sternrassler/ordering-favorites/pkg/client"
	"golang.org/x/sync/errgroup"
)

// Reorderer re-submits a past order.
type Reorderer interface {
	Reorder(ctx context.Context, orderID int64) (json.RawMessage, error)
}

// BusinessLookup resolves a business slug.
type BusinessLookup interface {
	BusinessSlug(ctx context.Context, businessID int64) (string, error)
}

// ReorderState is the most recent reorder attempt.
type ReorderState struct {
	Loading bool          `json:"loading"`
	Error   bool          `json:"error"`
	Result  ReorderResult `json:"result"`
}

// ReorderResult is either the server result merged with the order and
// business identity (Fields), or a list of transport error messages.
//
// A server result that is not a JSON object (a list of error codes, a
// string) is kept whole under Fields["errors"] rather than spread into
// index keys ("0", "1", ...), e.g.
//
//	{"errors":["ORDER_NOT_AVAILABLE"],"orderId":5}
type ReorderResult struct {
	Fields   map[string]any
	Messages []string
}

// MarshalJSON emits Fields as an object or Messages as an array.
func (r ReorderResult) MarshalJSON() ([]byte, error) {
	if r.Fields != nil {
		return json.Marshal(r.Fields)
	}
	msgs := r.Messages
	if msgs == nil {
		msgs = []string{}
	}
	return json.Marshal(msgs)
}

// OrderID returns the orderId field, or 0.
func (r ReorderResult) OrderID() int64 {
	id, _ := r.Fields["orderId"].(int64)
	return id
}

// BusinessID returns the business_id added on failure, or 0.
func (r ReorderResult) BusinessID() int64 {
	id, _ := r.Fields["business_id"].(int64)
	return id
}

// BusinessSlug returns business.slug added on failure, or "".
func (r ReorderResult) BusinessSlug() string {
	business, _ := r.Fields["business"].(map[string]any)
	slug, _ := business["slug"].(string)
	return slug
}

// mergeResult spreads the server result into a fresh object. A result
// that is not an object is kept under "errors".
func mergeResult(raw json.RawMessage, orderID int64) map[string]any {
	fields := map[string]any{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &fields); err != nil {
			fields = map[string]any{}
			var other any
			if json.Unmarshal(raw, &other) == nil {
				fields["errors"] = other
			}
		}
		if fields == nil {
			fields = map[string]any{}
		}
	}
	fields["orderId"] = orderID
	return fields
}

func transportFailure(err error) ReorderState {
	reordersTotal.WithLabelValues("transport_error").Inc()
	return ReorderState{Error: true, Result: ReorderResult{Messages: []string{err.Error()}}}
}

// runReorder performs one reorder without touching controller state.
func (c *Controller) runReorder(ctx context.Context, orderID int64) ReorderState {
	logger := c.logger.With().Int64("order_id", orderID).Logger()

	raw, err := c.reorderer.Reorder(ctx, orderID)
	if err == nil {
		reordersTotal.WithLabelValues("success").Inc()
		logger.Info().Msg("Reorder succeeded")
		return ReorderState{Result: ReorderResult{Fields: mergeResult(raw, orderID)}}
	}

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		logger.Error().Err(err).Msg("Reorder failed")
		return transportFailure(err)
	}

	logger.Warn().Strs("errors", apiErr.Messages()).Msg("Reorder rejected, looking up business")
	fields := mergeResult(apiErr.Result, orderID)

	entity, found := c.accumulated(orderID)
	if !found {
		logger.Debug().Msg("Order not in favorites, no business fallback")
		reordersTotal.WithLabelValues("server_error").Inc()
		return ReorderState{Error: true, Result: ReorderResult{Fields: fields}}
	}

	businessID := entity.OwningBusinessID()
	if businessID <= 0 {
		reordersTotal.WithLabelValues("server_error").Inc()
		return ReorderState{Error: true, Result: ReorderResult{Fields: fields}}
	}

	business := map[string]any{}
	slug, err := c.businesses.BusinessSlug(ctx, businessID)
	switch {
	case err == nil:
		business["slug"] = slug
	case client.IsAPIError(err):
		logger.Warn().Err(err).Int64("business_id", businessID).Msg("Business slug lookup rejected")
	default:
		logger.Error().Err(err).Int64("business_id", businessID).Msg("Business slug lookup failed")
		return transportFailure(err)
	}

	fields["business_id"] = businessID
	fields["business"] = business
	reordersTotal.WithLabelValues("server_error").Inc()
	return ReorderState{Error: true, Result: ReorderResult{Fields: fields}}
}

// runReorderGroup reorders every id concurrently and folds the results by
// index: the first failure wins, otherwise the last result.
func (c *Controller) runReorderGroup(ctx context.Context, orderIDs []int64) ReorderState {
	states := make([]ReorderState, len(orderIDs))

	var g errgroup.Group
	g.SetLimit(c.cfg.Batch.MaxConcurrency)
	for i, id := range orderIDs {
		i, id := i, id
		g.Go(func() error {
			states[i] = c.runReorder(ctx, id)
			return nil
		})
	}
	g.Wait()

	for _, s := range states {
		if s.Error {
			return s
		}
	}
	return states[len(states)-1]
}

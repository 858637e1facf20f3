package favorites

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/ordering-favorites/pkg/client"
	"github.com/Sternrassler/ordering-favorites/pkg/ordering"
	"github.com/rs/zerolog"
)

// strategy turns one page of references into entities.
type strategy interface {
	reconcile(ctx context.Context, refs []Reference, opts ...client.CallOption) ([]Entity, error)
}

func newStrategy(kind EntityKind, api *client.Client, scope Scope, originalURL string, orderType ordering.OrderTypeSource, logger zerolog.Logger) (strategy, error) {
	switch kind {
	case KindProduct:
		return productStrategy{businessID: scope.BusinessID, logger: logger}, nil
	case KindProfessional:
		return professionalStrategy{logger: logger}, nil
	case KindGeneric:
		return &lookupStrategy{
			api:         api,
			originalURL: originalURL,
			scope:       scope,
			orderType:   orderType,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
}

// productStrategy uses the embedded product, optionally keeping only
// products sold by one business.
type productStrategy struct {
	businessID int64
	logger     zerolog.Logger
}

func (s productStrategy) reconcile(_ context.Context, refs []Reference, _ ...client.CallOption) ([]Entity, error) {
	out := make([]Entity, 0, len(refs))
	for _, ref := range refs {
		if ref.Product == nil {
			s.logger.Warn().Int64("reference_id", ref.ID).Msg("Favorite product reference without product")
			continue
		}
		if s.businessID > 0 && !ref.Product.SoldBy(s.businessID) {
			continue
		}
		out = append(out, *ref.Product)
	}
	return out, nil
}

// professionalStrategy uses the embedded user.
type professionalStrategy struct {
	logger zerolog.Logger
}

func (s professionalStrategy) reconcile(_ context.Context, refs []Reference, _ ...client.CallOption) ([]Entity, error) {
	out := make([]Entity, 0, len(refs))
	for _, ref := range refs {
		if ref.User == nil {
			s.logger.Warn().Int64("reference_id", ref.ID).Msg("Favorite user reference without user")
			continue
		}
		out = append(out, *ref.User)
	}
	return out, nil
}

// lookupStrategy resolves object ids with one filtered request against the
// original collection. The server's order is kept.
type lookupStrategy struct {
	api         *client.Client
	originalURL string
	scope       Scope
	orderType   ordering.OrderTypeSource
}

type whereCondition struct {
	Attribute string `json:"attribute"`
	Value     any    `json:"value"`
}

type whereClause struct {
	Conditions []whereCondition `json:"conditions"`
	Conector   string           `json:"conector"`
}

func (s *lookupStrategy) reconcile(ctx context.Context, refs []Reference, opts ...client.CallOption) ([]Entity, error) {
	if len(refs) == 0 {
		return []Entity{}, nil
	}

	query, err := s.query(refs)
	if err != nil {
		return nil, err
	}

	env, err := s.api.Get(ctx, "/"+strings.Trim(s.originalURL, "/"), query, opts...)
	if err != nil {
		return nil, err
	}

	var entities []Entity
	if err := env.DecodeResult(&entities); err != nil {
		return nil, err
	}
	if entities == nil {
		entities = []Entity{}
	}
	return entities, nil
}

func (s *lookupStrategy) query(refs []Reference) (url.Values, error) {
	ids := make([]int64, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ObjectID
	}

	where := whereClause{
		Conditions: []whereCondition{{Attribute: "id", Value: ids}},
		Conector:   "AND",
	}
	if s.scope.FranchiseID > 0 {
		where.Conditions = append(where.Conditions, whereCondition{Attribute: "franchise_id", Value: s.scope.FranchiseID})
	}

	encoded, err := json.Marshal(where)
	if err != nil {
		return nil, fmt.Errorf("encode where clause: %w", err)
	}

	query := url.Values{}
	query.Set("where", string(encoded))
	if s.scope.Location != "" {
		query.Set("location", s.scope.Location)
	}
	if s.scope.Params != "" {
		query.Set("params", s.scope.Params)
	}

	orderType := ordering.Delivery
	if s.orderType != nil {
		orderType = s.orderType.OrderType()
	}
	query.Set("type", strconv.Itoa(int(orderType)))

	return query, nil
}

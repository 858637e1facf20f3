package favorites

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/ordering-favorites/pkg/client"
	"github.com/Sternrassler/ordering-favorites/pkg/ordering"
	"github.com/Sternrassler/ordering-favorites/pkg/pagination"
	"github.com/Sternrassler/ordering-favorites/pkg/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Scope narrows which favorites are fetched or kept. Zero values disable a
// filter.
type Scope struct {
	// FranchiseID limits references and lookups to one franchise.
	FranchiseID int64 `yaml:"franchise_id" json:"franchise_id,omitempty"`
	// Location is passed verbatim to generic lookups ("lat,lng").
	Location string `yaml:"location" json:"location,omitempty"`
	// Params selects the fields returned by generic lookups.
	Params string `yaml:"params" json:"params,omitempty"`
	// BusinessID keeps only products sold by this business.
	BusinessID int64 `yaml:"business_id" json:"business_id,omitempty"`
}

// Config describes one favorites list.
type Config struct {
	// FavoriteURL is the user collection, e.g. "favorite_businesses".
	FavoriteURL string
	// OriginalURL is the collection generic lookups hit, e.g. "business".
	OriginalURL string
	Kind        EntityKind
	Scope       Scope
	Pagination  pagination.Settings
	// EnableLoadingAtStart reports the list as loading until the first
	// page completes.
	EnableLoadingAtStart bool
	// Batch bounds LoadAll and ReorderGroup concurrency.
	Batch pagination.Config
}

// Changes describes a favorite toggle applied elsewhere.
type Changes struct {
	Favorite bool `json:"favorite"`
}

// FavoriteList is a copy of the accumulated list.
type FavoriteList struct {
	Loading   bool     `json:"loading"`
	Favorites []Entity `json:"favorites"`
	Error     *Failure `json:"error"`
}

// Snapshot is a copy of all controller state.
type Snapshot struct {
	List       FavoriteList     `json:"favorite_list"`
	Pagination pagination.State `json:"pagination"`
	Reorder    ReorderState     `json:"reorder_state"`
}

// FavoriteRemover deletes a favorite on the server.
type FavoriteRemover interface {
	RemoveFavorite(ctx context.Context, favoriteURL string, objectID int64) error
}

// Option customizes a Controller.
type Option func(*Controller)

// WithSocket tags requests with the live channel id.
func WithSocket(p client.SocketIDProvider) Option {
	return func(c *Controller) { c.socket = p }
}

// WithOrderType sets the order type filter of generic lookups. The
// default is delivery.
func WithOrderType(src ordering.OrderTypeSource) Option {
	return func(c *Controller) { c.orderType = src }
}

// WithReorderer replaces the reorder call.
func WithReorderer(r Reorderer) Option {
	return func(c *Controller) { c.reorderer = r }
}

// WithBusinessLookup replaces the business slug lookup.
func WithBusinessLookup(b BusinessLookup) Option {
	return func(c *Controller) { c.businesses = b }
}

// WithRemover replaces the favorite removal call.
func WithRemover(r FavoriteRemover) Option {
	return func(c *Controller) { c.remover = r }
}

// Controller owns one user's favorites list. All methods are safe for
// concurrent use; network calls run without holding the state lock.
type Controller struct {
	cfg       Config
	api       *client.Client
	session   session.Session
	socket    client.SocketIDProvider
	orderType ordering.OrderTypeSource

	refs       *referenceFetcher
	strategy   strategy
	reorderer  Reorderer
	businesses BusinessLookup
	remover    FavoriteRemover

	logger zerolog.Logger

	mu             sync.Mutex
	list           entityList
	listErr        *Failure
	page           pagination.State
	inFlight       int
	loadingAtStart bool
	reorder        ReorderState
	reordering     int
	generation     uint64
	closed         bool
}

// NewController builds a controller for sess. Collaborators default to an
// ordering.Service on the same client.
func NewController(api *client.Client, sess session.Session, cfg Config, opts ...Option) (*Controller, error) {
	if api == nil {
		return nil, fmt.Errorf("api client is required")
	}
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(cfg.Kind))
	}
	if cfg.Pagination.ControlType == "" {
		cfg.Pagination.ControlType = pagination.ControlInfinity
	}
	if cfg.Pagination.PageSize <= 0 {
		cfg.Pagination.PageSize = pagination.DefaultPageSize
	}
	if cfg.Batch.MaxConcurrency <= 0 {
		cfg.Batch.MaxConcurrency = pagination.DefaultConfig().MaxConcurrency
	}

	c := &Controller{
		cfg:            cfg,
		api:            api,
		session:        sess,
		orderType:      ordering.Delivery,
		list:           newEntityList(),
		page:           pagination.Initial(cfg.Pagination),
		loadingAtStart: cfg.EnableLoadingAtStart,
		reorder:        ReorderState{Result: ReorderResult{Messages: []string{}}},
		logger: log.With().
			Str("component", "favorites").
			Str("kind", cfg.Kind.String()).
			Str("favorite_url", cfg.FavoriteURL).
			Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.reorderer == nil || c.businesses == nil || c.remover == nil {
		svc := ordering.NewService(api, sess, c.socket)
		if c.reorderer == nil {
			c.reorderer = svc
		}
		if c.businesses == nil {
			c.businesses = svc
		}
		if c.remover == nil {
			c.remover = svc
		}
	}

	c.refs = &referenceFetcher{
		api:         api,
		favoriteURL: cfg.FavoriteURL,
		franchiseID: cfg.Scope.FranchiseID,
	}

	strat, err := newStrategy(cfg.Kind, api, cfg.Scope, cfg.OriginalURL, c.orderType, c.logger)
	if err != nil {
		return nil, err
	}
	c.strategy = strat

	return c, nil
}

func (c *Controller) callOptions() []client.CallOption {
	return []client.CallOption{
		client.WithBearer(c.session.Token),
		client.WithSocket(c.socket),
	}
}

// configured reports whether list operations can run.
func (c *Controller) configured() bool {
	return c.session.Authenticated() && c.cfg.FavoriteURL != "" && c.cfg.OriginalURL != ""
}

// Start loads page 1.
func (c *Controller) Start(ctx context.Context) FavoriteList {
	return c.FetchPage(ctx, 1, 0)
}

// FetchPage loads page and adds its entities to the list. pageSize <= 0
// uses the configured size. Failures are recorded in the returned list,
// leaving earlier pages and pagination untouched.
func (c *Controller) FetchPage(ctx context.Context, page, pageSize int) FavoriteList {
	if !c.configured() {
		c.logger.Debug().Msg("Favorites not configured, skipping fetch")
		return c.List()
	}
	if pageSize <= 0 {
		pageSize = c.cfg.Pagination.EffectivePageSize()
	}

	gen, ok := c.begin()
	if !ok {
		return c.List()
	}

	logger := c.logger.With().Int("page", page).Int("page_size", pageSize).Uint64("generation", gen).Logger()
	logger.Debug().Msg("Fetching favorites page")

	loaded, err := c.loadPage(ctx, page, pageSize)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.finish(gen) {
		logger.Debug().Msg("Dropping stale page")
		return c.listLocked()
	}

	if err != nil {
		c.listErr = failureFrom(err)
		pagesFetchedTotal.WithLabelValues(c.cfg.Kind.String(), "error").Inc()
		logger.Error().Err(err).Msg("Failed to load favorites page")
		return c.listLocked()
	}

	c.applyLocked(loaded)
	logger.Info().
		Int("count", len(loaded.entities)).
		Int("total", loaded.state.Total).
		Msg("Favorites page loaded")
	return c.listLocked()
}

// LoadAll loads every page after the current one in parallel and applies
// them in page order. It stops at the first failing page.
func (c *Controller) LoadAll(ctx context.Context) FavoriteList {
	if !c.configured() {
		c.logger.Debug().Msg("Favorites not configured, skipping load")
		return c.List()
	}

	state := c.Pagination()
	if !state.Known {
		if list := c.Start(ctx); list.Error != nil {
			return list
		}
		state = c.Pagination()
	}
	if !state.HasMore() {
		return c.List()
	}

	pageSize := state.PageSize
	if pageSize <= 0 {
		pageSize = c.cfg.Pagination.EffectivePageSize()
	}

	gen, ok := c.begin()
	if !ok {
		return c.List()
	}

	bf := pagination.NewBatchFetcher[loadedPage](pagination.PageFetcherFunc[loadedPage](
		func(ctx context.Context, page int) (loadedPage, error) {
			return c.loadPage(ctx, page, pageSize)
		}), c.cfg.Batch)
	results := bf.FetchRange(ctx, state.NextPage(), state.TotalPages)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.finish(gen) {
		c.logger.Debug().Uint64("generation", gen).Msg("Dropping stale pages")
		return c.listLocked()
	}

	for _, r := range results {
		if r.Error != nil {
			c.listErr = failureFrom(r.Error)
			pagesFetchedTotal.WithLabelValues(c.cfg.Kind.String(), "error").Inc()
			c.logger.Error().Err(r.Error).Int("page", r.PageNumber).Msg("Failed to load favorites page")
			break
		}
		c.applyLocked(r.Data)
	}
	c.logger.Info().Int("count", c.list.len()).Int("total", c.page.Total).Msg("Favorites loaded")
	return c.listLocked()
}

type loadedPage struct {
	entities []Entity
	state    pagination.State
}

// loadPage fetches and reconciles one page without touching state.
func (c *Controller) loadPage(ctx context.Context, page, pageSize int) (loadedPage, error) {
	opts := c.callOptions()

	refPage, err := c.refs.fetch(ctx, c.session.UserID, page, pageSize, opts...)
	if err != nil {
		return loadedPage{}, err
	}

	start := time.Now()
	entities, err := c.strategy.reconcile(ctx, refPage.refs, append(opts, client.WithCache(c.session.UserID))...)
	reconcileDuration.WithLabelValues(c.cfg.Kind.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return loadedPage{}, err
	}

	return loadedPage{entities: entities, state: refPage.state}, nil
}

// begin registers an in-flight load and returns its generation.
func (c *Controller) begin() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, false
	}
	c.inFlight++
	c.listErr = nil
	return c.generation, true
}

// finish ends a load and reports whether its result may be applied.
func (c *Controller) finish(gen uint64) bool {
	if gen != c.generation || c.closed {
		staleUpdatesTotal.Inc()
		return false
	}
	c.inFlight--
	c.loadingAtStart = false
	return true
}

func (c *Controller) applyLocked(p loadedPage) {
	c.page = p.state
	c.list.put(p.entities...)
	c.listErr = nil
	pagesFetchedTotal.WithLabelValues(c.cfg.Kind.String(), "success").Inc()
}

// RemoveFromAccumulated drops id from the list unless changes marks a
// favorite being added. No request is made.
func (c *Controller) RemoveFromAccumulated(id int64, changes Changes) FavoriteList {
	c.mu.Lock()
	defer c.mu.Unlock()

	if changes.Favorite {
		c.logger.Debug().Int64("id", id).Msg("Favorite added, list unchanged")
		return c.listLocked()
	}
	if c.list.remove(id) {
		c.logger.Debug().Int64("id", id).Msg("Removed favorite from list")
	}
	return c.listLocked()
}

// Unfavorite removes id on the server and then from the list.
func (c *Controller) Unfavorite(ctx context.Context, id int64) (FavoriteList, error) {
	if id <= 0 || !c.configured() {
		return c.List(), nil
	}
	if err := c.remover.RemoveFavorite(ctx, c.cfg.FavoriteURL, id); err != nil {
		c.logger.Warn().Err(err).Int64("id", id).Msg("Failed to remove favorite")
		return c.List(), fmt.Errorf("remove favorite %d: %w", id, err)
	}
	return c.RemoveFromAccumulated(id, Changes{Favorite: false}), nil
}

// Reorder re-submits orderID. On a server-reported failure the result is
// enriched with the owning business of the matching favorite. orderID <= 0
// leaves the state unchanged.
func (c *Controller) Reorder(ctx context.Context, orderID int64) ReorderState {
	if orderID <= 0 {
		c.logger.Debug().Int64("order_id", orderID).Msg("Ignoring reorder without order id")
		return c.ReorderState()
	}
	return c.reorderWith(func() ReorderState { return c.runReorder(ctx, orderID) })
}

// ReorderGroup reorders one order per business concurrently. The folded
// state is the first failure by position, otherwise the last result.
func (c *Controller) ReorderGroup(ctx context.Context, orderIDs []int64) ReorderState {
	ids := make([]int64, 0, len(orderIDs))
	for _, id := range orderIDs {
		if id > 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return c.ReorderState()
	}
	return c.reorderWith(func() ReorderState { return c.runReorderGroup(ctx, ids) })
}

func (c *Controller) reorderWith(run func() ReorderState) ReorderState {
	c.mu.Lock()
	if c.closed {
		defer c.mu.Unlock()
		return c.reorderLocked()
	}
	c.reordering++
	c.mu.Unlock()

	state := run()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		staleUpdatesTotal.Inc()
		return state
	}
	c.reordering--
	c.reorder = state
	return c.reorderLocked()
}

// accumulated returns the list entry with id.
func (c *Controller) accumulated(id int64) (Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.get(id)
}

// Reset discards the list and pagination. Loads still in flight are
// dropped when they complete.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.list = newEntityList()
	c.listErr = nil
	c.page = pagination.Initial(c.cfg.Pagination)
	c.inFlight = 0
	c.loadingAtStart = false
	c.logger.Debug().Uint64("generation", c.generation).Msg("Favorites reset")
}

// Refresh resets the list, drops the user's cached lookups and loads
// page 1 again.
func (c *Controller) Refresh(ctx context.Context) FavoriteList {
	c.Reset()
	if err := c.api.InvalidateUser(ctx, c.session.UserID); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to invalidate cached lookups")
	}
	return c.Start(ctx)
}

// List returns a copy of the accumulated list.
func (c *Controller) List() FavoriteList {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listLocked()
}

func (c *Controller) listLocked() FavoriteList {
	return FavoriteList{
		Loading:   c.inFlight > 0 || c.loadingAtStart,
		Favorites: c.list.snapshot(),
		Error:     c.listErr,
	}
}

// Pagination returns the last server-reported pagination.
func (c *Controller) Pagination() pagination.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// ReorderState returns the most recent reorder attempt.
func (c *Controller) ReorderState() ReorderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reorderLocked()
}

func (c *Controller) reorderLocked() ReorderState {
	s := c.reorder
	s.Loading = c.reordering > 0
	return s
}

// Snapshot returns a copy of all state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		List:       c.listLocked(),
		Pagination: c.page,
		Reorder:    c.reorderLocked(),
	}
}

// Close discards all state. Later calls are no-ops and in-flight
// completions are dropped.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.generation++
	c.list = newEntityList()
	c.listErr = nil
	c.inFlight = 0
	c.loadingAtStart = false
	c.reordering = 0
	return nil
}

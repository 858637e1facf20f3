// Package ordering wraps the ordering API calls the favorites list relies on
// but does not own: reorder, business lookup and favorite add/remove.
package ordering

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/ordering-favorites/pkg/client"
	"github.com/Sternrassler/ordering-favorites/pkg/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service issues user-scoped collaborator calls.
type Service struct {
	client  *client.Client
	session session.Session
	socket  client.SocketIDProvider
	logger  zerolog.Logger
}

// NewService creates a service bound to one session. socket may be nil.
func NewService(c *client.Client, sess session.Session, socket client.SocketIDProvider) *Service {
	return &Service{
		client:  c,
		session: sess,
		socket:  socket,
		logger:  log.With().Str("component", "ordering").Logger(),
	}
}

func (s *Service) callOptions() []client.CallOption {
	return []client.CallOption{
		client.WithBearer(s.session.Token),
		client.WithSocket(s.socket),
	}
}

// Reorder re-submits orderID as a new cart and returns the raw result. A
// server-reported failure is a *client.APIError carrying the result. The
// POST is sent once; the client never retries it.
func (s *Service) Reorder(ctx context.Context, orderID int64) (json.RawMessage, error) {
	path := fmt.Sprintf("/orders/%d/reorder", orderID)
	env, err := s.client.Call(ctx, http.MethodPost, path, nil, nil, s.callOptions()...)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Int64("order_id", orderID).Msg("Reorder accepted")
	return env.Result, nil
}

// BusinessSlug looks up a business restricted to its slug field.
func (s *Service) BusinessSlug(ctx context.Context, businessID int64) (string, error) {
	path := fmt.Sprintf("/business/%d", businessID)
	env, err := s.client.Get(ctx, path, url.Values{"params": {"slug"}},
		append(s.callOptions(), client.WithCache(s.session.UserID))...)
	if err != nil {
		return "", err
	}

	var business struct {
		Slug string `json:"slug"`
	}
	if err := env.DecodeResult(&business); err != nil {
		return "", err
	}
	return business.Slug, nil
}

// AddFavorite marks objectID as a favorite in the favoriteURL collection.
// Like Reorder, the POST is sent once.
func (s *Service) AddFavorite(ctx context.Context, favoriteURL string, objectID int64) error {
	path := fmt.Sprintf("/users/%d/%s", s.session.UserID, strings.Trim(favoriteURL, "/"))
	_, err := s.client.Call(ctx, http.MethodPost, path, nil,
		map[string]int64{"object_id": objectID}, s.callOptions()...)
	return err
}

// RemoveFavorite removes objectID from the favoriteURL collection.
func (s *Service) RemoveFavorite(ctx context.Context, favoriteURL string, objectID int64) error {
	path := fmt.Sprintf("/users/%d/%s/%d", s.session.UserID, strings.Trim(favoriteURL, "/"), objectID)
	_, err := s.client.Call(ctx, http.MethodDelete, path, nil, nil, s.callOptions()...)
	return err
}

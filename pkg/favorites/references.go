package favorites

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/ordering-favorites/pkg/client"
	"github.com/Sternrassler/ordering-favorites/pkg/pagination"
)

var errNoPagination = errors.New("favorites response carries no pagination")

// referenceFetcher reads one page of the user's favorites collection.
type referenceFetcher struct {
	api         *client.Client
	favoriteURL string
	franchiseID int64
}

type referencePage struct {
	refs  []Reference
	state pagination.State
}

func (f *referenceFetcher) fetch(ctx context.Context, userID int64, page, pageSize int, opts ...client.CallOption) (referencePage, error) {
	path := fmt.Sprintf("/users/%d/%s", userID, strings.Trim(f.favoriteURL, "/"))

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	if f.franchiseID > 0 {
		query.Set("franchise_id", strconv.FormatInt(f.franchiseID, 10))
	}

	env, err := f.api.Get(ctx, path, query, opts...)
	if err != nil {
		return referencePage{}, err
	}

	var refs []Reference
	if err := env.DecodeResult(&refs); err != nil {
		return referencePage{}, err
	}
	if env.Pagination == nil {
		return referencePage{}, errNoPagination
	}

	state := *env.Pagination
	state.Known = true
	return referencePage{refs: refs, state: state}, nil
}

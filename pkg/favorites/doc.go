// Package favorites maintains a user's favorites list against the ordering
// API.
//
// A Controller pages through a favorites collection (favorite_businesses,
// favorite_products, favorite_users, favorite_orders ...), turns each
// reference into a full entity and accumulates the pages in arrival order.
// How references become entities depends on the EntityKind:
//
//   - KindProduct and KindProfessional use the product or user embedded in
//     the reference.
//   - KindGeneric collects the object ids of a page and resolves them with
//     one filtered request against the original collection.
//
// The list is keyed by entity id, so loading a page twice never duplicates
// entries. Unfavorited entries are removed locally without a refetch.
//
// Reorder re-submits a past order. When the API rejects it, the result is
// enriched with the business id and slug of the matching favorite so the
// caller can send the user to the store instead.
//
// Example:
//
//	ctrl, err := favorites.NewController(api, sess, favorites.Config{
//		FavoriteURL: "favorite_businesses",
//		OriginalURL: "business",
//		Kind:        favorites.KindGeneric,
//		Scope:       favorites.Scope{Location: "40.7,-73.9"},
//	}, favorites.WithSocket(channel))
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close()
//
//	list := ctrl.Start(ctx)
//	if list.Error != nil {
//		log.Warn().Strs("errors", list.Error.Messages).Msg("Favorites unavailable")
//	}
package favorites

package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// FavoritesLimit is the default number of favorites returned.
const FavoritesLimit = 20

// Favorite item types.
const (
	ItemHotel   = "hotel"
	ItemPackage = "package"
	ItemPlace   = "place"
)

const favoriteColumns = `id, user_id, item_type, item_id, created_at`

func scanFavorite(r rowScanner) (Favorite, error) {
	var f Favorite
	err := r.Scan(&f.ID, &f.UserID, &f.ItemType, &f.ItemID, scanTime{&f.CreatedAt})
	return f, err
}

// Favorites returns a user's saved items, newest first. An empty
// itemType matches every type.
func (s *SQLStore) Favorites(ctx context.Context, userID, itemType string, limit int) ([]Favorite, error) {
	w := &where{}
	w.add("user_id = ?", userID)
	if itemType != "" {
		w.add("item_type = ?", itemType)
	}
	q := `SELECT ` + favoriteColumns + ` FROM user_favorites` + w.String() +
		` ORDER BY created_at DESC, id DESC LIMIT ?`

	favs, err := queryList(ctx, s, q, append(w.args, limitOr(limit, FavoritesLimit)), scanFavorite)
	if err != nil {
		return nil, fmt.Errorf("favorites for %s: %w", userID, err)
	}
	return favs, nil
}

// AddFavorite saves an item for a user. Saving an item twice returns
// the original record.
func (s *SQLStore) AddFavorite(ctx context.Context, userID, itemType, itemID string) (*Favorite, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate favorite ID: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO user_favorites (`+favoriteColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, item_type, item_id) DO NOTHING`),
		id.String(), userID, itemType, itemID, s.timeArg(s.now()))
	if err != nil {
		return nil, fmt.Errorf("add favorite: %w", err)
	}

	q := `SELECT ` + favoriteColumns + ` FROM user_favorites
		WHERE user_id = ? AND item_type = ? AND item_id = ?`
	f, err := queryOne(ctx, s, q, []any{userID, itemType, itemID}, scanFavorite)
	if err != nil {
		return nil, fmt.Errorf("add favorite: %w", err)
	}
	return &f, nil
}

// RemoveFavorite deletes a saved item and reports whether it existed.
func (s *SQLStore) RemoveFavorite(ctx context.Context, userID, itemType, itemID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM user_favorites
		WHERE user_id = ? AND item_type = ? AND item_id = ?`),
		userID, itemType, itemID)
	if err != nil {
		return false, fmt.Errorf("remove favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove favorite: %w", err)
	}
	return n > 0, nil
}

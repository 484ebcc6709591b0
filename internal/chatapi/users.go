package chatapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/weiawesome/duwdu-messenger/internal/domain"
)

// SearchUsers finds users by name, leaving out excludingUserID.
func (c *Client) SearchUsers(ctx context.Context, query string, excludingUserID int64) ([]domain.UserRef, error) {
	q := url.Values{"search": {query}}
	if excludingUserID > 0 {
		q.Set("user_id", idString(excludingUserID))
	}
	var users []domain.UserRef
	if err := c.do(ctx, "search users", http.MethodGet, c.cfg.UsersURL, q, nil, &users); err != nil {
		return nil, mapError("search users", err)
	}
	out := users[:0]
	for _, u := range users {
		if u.ID != excludingUserID {
			out = append(out, u)
		}
	}
	if out == nil {
		out = []domain.UserRef{}
	}
	return out, nil
}

// AngelaMos | 2026
// shop.go

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/carterperez-dev/harvest-table/internal/cart"
	"github.com/carterperez-dev/harvest-table/internal/core"
	"github.com/carterperez-dev/harvest-table/internal/order"
	"github.com/carterperez-dev/harvest-table/internal/product"
	"github.com/carterperez-dev/harvest-table/internal/profile"
)

// Profile is the signed-in user's profile with its role parsed.
type Profile struct {
	ID           string
	FullName     string
	Role         profile.Role
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Phone        string
}

func toProfile(r *profile.ProfileResponse) (*Profile, error) {
	role, err := profile.ParseRole(r.Role)
	if err != nil {
		return nil, err
	}

	return &Profile{
		ID:           r.ID,
		FullName:     r.FullName,
		Role:         role,
		AddressLine1: r.AddressLine1,
		AddressLine2: r.AddressLine2,
		City:         r.City,
		State:        r.State,
		PostalCode:   r.PostalCode,
		Phone:        r.Phone,
	}, nil
}

// FetchProfile loads the profile of userID, which must be the signed-in
// user. A user who never saved a profile yields (nil, nil).
func (c *Client) FetchProfile(ctx context.Context, userID string) (*Profile, error) {
	session, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoSession
	}
	if session.User.ID != userID {
		return nil, fmt.Errorf("fetch profile for %s: session belongs to another user: %w",
			userID, core.ErrForbidden)
	}

	var resp profile.ProfileResponse
	err = c.do(ctx, http.MethodGet, "/profiles/me", session.AccessToken, nil, &resp)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	return toProfile(&resp)
}

func (c *Client) UpdateProfile(
	ctx context.Context,
	req profile.UpdateProfileRequest,
) (*Profile, error) {
	var resp profile.ProfileResponse
	if err := c.authed(ctx, http.MethodPut, "/profiles/me", req, &resp); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return toProfile(&resp)
}

func (c *Client) GetCart(ctx context.Context) (*cart.CartResponse, error) {
	var resp cart.CartResponse
	if err := c.authed(ctx, http.MethodGet, "/cart", nil, &resp); err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return &resp, nil
}

func (c *Client) AddCartItem(ctx context.Context, productID string, quantity int) error {
	err := c.authed(ctx, http.MethodPost, "/cart/items", cart.AddItemRequest{
		ProductID: productID,
		Quantity:  quantity,
	}, nil)
	if err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

func (c *Client) UpdateCartItem(ctx context.Context, itemID string, quantity int) error {
	err := c.authed(ctx, http.MethodPatch, "/cart/items/"+url.PathEscape(itemID),
		cart.UpdateQuantityRequest{Quantity: quantity}, nil)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	return nil
}

func (c *Client) RemoveCartItem(ctx context.Context, itemID string) error {
	err := c.authed(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(itemID), nil, nil)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (c *Client) ClearCart(ctx context.Context) error {
	if err := c.authed(ctx, http.MethodDelete, "/cart", nil, nil); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Checkout places an order as the signed-in user, or as a guest when
// there is no session.
func (c *Client) Checkout(
	ctx context.Context,
	req order.CheckoutRequest,
) (*order.OrderResponse, error) {
	session, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}

	token := ""
	if session != nil {
		token = session.AccessToken
	}

	var resp order.OrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", token, req, &resp); err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	return &resp, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]order.OrderResponse, error) {
	var resp []order.OrderResponse
	if err := c.authed(ctx, http.MethodGet, "/orders", nil, &resp); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return resp, nil
}

func (c *Client) TrackOrder(ctx context.Context, code string) (*order.TrackingResponse, error) {
	var resp order.TrackingResponse
	err := c.do(ctx, http.MethodGet, "/orders/track/"+url.PathEscape(code), "", nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("track order: %w", err)
	}
	return &resp, nil
}

func (c *Client) ListProducts(
	ctx context.Context,
	search string,
	page int,
) ([]product.ProductResponse, error) {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}

	path := "/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp []product.ProductResponse
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return resp, nil
}

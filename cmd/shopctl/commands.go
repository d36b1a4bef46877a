// AngelaMos | 2026
// commands.go

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/harvest-table/internal/client"
	"github.com/carterperez-dev/harvest-table/internal/order"
	"github.com/carterperez-dev/harvest-table/internal/session"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			if password == "" {
				password = os.Getenv("HARVEST_PASSWORD")
			}

			if err := a.store.SignIn(ctx, email, password); err != nil {
				if errors.Is(err, client.ErrEmailNotVerified) {
					return errors.New("check your inbox and verify your email first")
				}
				return err
			}

			snap, err := a.store.Settled(ctx)
			if err != nil {
				return err
			}
			printWhoami(cmd, snap)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (or HARVEST_PASSWORD)")
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag is defined above

	return cmd
}

func newSignupCmd(a *app) *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			if password == "" {
				password = os.Getenv("HARVEST_PASSWORD")
			}

			res, err := a.store.SignUp(ctx, email, password, name)
			if err != nil {
				return err
			}

			if res.VerificationRequired {
				cmd.Printf("account created for %s, confirm the link we emailed you\n", res.User.Email)
				return nil
			}

			snap, err := a.store.Settled(ctx)
			if err != nil {
				return err
			}
			printWhoami(cmd, snap)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (or HARVEST_PASSWORD)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "full name")
	_ = cmd.MarkFlagRequired("email") //nolint:errcheck // flag is defined above
	_ = cmd.MarkFlagRequired("name")  //nolint:errcheck // flag is defined above

	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			if err := a.store.SignOut(ctx); err != nil {
				a.logger.Warn("server sign out failed, local session cleared", "error", err)
			}
			cmd.Println("signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			printWhoami(cmd, a.store.Snapshot())
			return nil
		},
	}
}

func printWhoami(cmd *cobra.Command, snap session.Snapshot) {
	if !snap.IsAuthenticated {
		cmd.Println("not signed in")
		return
	}

	role := "user"
	if snap.IsAdmin {
		role = "admin"
	}

	name := snap.User.FullName
	if snap.Profile != nil && snap.Profile.FullName != "" {
		name = snap.Profile.FullName
	}

	cmd.Printf("%s <%s> role=%s\n", name, snap.User.Email, role)
}

func newProductsCmd(a *app) *cobra.Command {
	var search string
	var page int

	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			products, err := a.client.ListProducts(ctx, search, page)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tIN STOCK")
			for _, p := range products {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n",
					p.ID, p.Name, p.Category, p.Price.StringFixed(2), p.InStock)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "name filter")
	cmd.Flags().IntVar(&page, "page", 1, "page number")

	return cmd
}

func newCartCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and edit the cart",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.require(cmd.Context(), session.RequireAuth)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showCart(cmd, a)
		},
	}

	add := &cobra.Command{
		Use:   "add PRODUCT_ID [QUANTITY]",
		Short: "Add a product, merging with an existing line",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty := 1
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("quantity: %w", err)
				}
				qty = n
			}
			return a.cartOp(cmd, func(ctx context.Context) error {
				return a.cart.AddToCart(ctx, args[0], qty)
			})
		},
	}

	update := &cobra.Command{
		Use:   "update ITEM_ID QUANTITY",
		Short: "Set the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity: %w", err)
			}
			return a.cartOp(cmd, func(ctx context.Context) error {
				return a.cart.UpdateCartItemQuantity(ctx, args[0], qty)
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove ITEM_ID",
		Short: "Remove a cart line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cartOp(cmd, func(ctx context.Context) error {
				return a.cart.RemoveFromCart(ctx, args[0])
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.cartOp(cmd, a.cart.ClearCart)
		},
	}

	for _, sub := range []*cobra.Command{add, update, remove, clearCmd} {
		sub.PreRunE = cmd.PreRunE
	}
	cmd.AddCommand(add, update, remove, clearCmd)

	return cmd
}

func (a *app) cartOp(cmd *cobra.Command, op func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	if err := op(ctx); err != nil {
		return err
	}
	return showCart(cmd, a)
}

func showCart(cmd *cobra.Command, a *app) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	if err := a.cart.Refresh(ctx); err != nil {
		return err
	}

	items := a.cart.Items()
	if len(items) == 0 {
		cmd.Println("cart is empty")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tPRODUCT\tQTY\tPRICE\tSUBTOTAL")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			it.ID, it.ProductName, it.Quantity,
			it.Price.StringFixed(2), it.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t%d\t\t%s\n", a.cart.ItemCount(), a.cart.TotalAmount().StringFixed(2))
	return tw.Flush()
}

func newCheckoutCmd(a *app) *cobra.Command {
	var req order.CheckoutRequest
	var items []string

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place a cash-on-delivery order",
		Long: "Places an order from the signed-in cart. Guests pass --item " +
			"PRODUCT_ID=QTY for each line along with full delivery details.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			for _, raw := range items {
				item, err := parseItem(raw)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
			}
			req.PaymentMethod = order.PaymentMethodCOD

			resp, err := a.client.Checkout(ctx, req)
			if err != nil {
				return err
			}

			if a.store.Snapshot().IsAuthenticated {
				if err := a.cart.Refresh(ctx); err != nil {
					a.logger.Debug("cart refresh after checkout failed", "error", err)
				}
			}

			cmd.Printf("order placed: %s total %s\n", resp.TrackingCode, resp.TotalAmount.StringFixed(2))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.CustomerName, "name", "", "recipient name")
	f.StringVar(&req.Email, "email", "", "contact email")
	f.StringVar(&req.Phone, "phone", "", "contact phone")
	f.StringVar(&req.AddressLine1, "address", "", "address line 1")
	f.StringVar(&req.AddressLine2, "address2", "", "address line 2")
	f.StringVar(&req.City, "city", "", "city")
	f.StringVar(&req.State, "state", "", "state or region")
	f.StringVar(&req.PostalCode, "postal-code", "", "postal code")
	f.StringVar(&req.Notes, "notes", "", "delivery notes")
	f.StringArrayVar(&items, "item", nil, "PRODUCT_ID=QTY, repeatable")

	return cmd
}

func parseItem(raw string) (order.CheckoutItem, error) {
	id, qty, found := strings.Cut(raw, "=")
	if !found {
		return order.CheckoutItem{ProductID: raw, Quantity: 1}, nil
	}

	n, err := strconv.Atoi(qty)
	if err != nil {
		return order.CheckoutItem{}, fmt.Errorf("item %q: quantity: %w", raw, err)
	}
	return order.CheckoutItem{ProductID: id, Quantity: n}, nil
}

func newOrdersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.require(cmd.Context(), session.RequireAuth)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			orders, err := a.client.ListOrders(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TRACKING\tSTATUS\tSHIPPING\tTOTAL\tPLACED")
			for _, o := range orders {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					o.TrackingCode, o.Status, o.ShippingStatus,
					o.TotalAmount.StringFixed(2), o.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newTrackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "track CODE",
		Short: "Look up an order by tracking code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			t, err := a.client.TrackOrder(ctx, args[0])
			if err != nil {
				return err
			}

			cmd.Printf("%s  status=%s shipping=%s total=%s\n",
				t.TrackingCode, t.Status, t.ShippingStatus, t.TotalAmount.StringFixed(2))
			if t.CourierName != "" {
				cmd.Printf("courier: %s %s\n", t.CourierName, t.CourierTrackingNumber)
			}
			for _, it := range t.Items {
				cmd.Printf("  %dx %s\n", it.Quantity, it.ProductName)
			}
			return nil
		},
	}
}

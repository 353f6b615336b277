package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"scarlet-storefront/format"
	"scarlet-storefront/models"
)

func renderCart(w io.Writer, view models.CartView, signedIn bool) error {
	owner := "guest"
	if signedIn {
		owner = "account"
	}
	if len(view.Items) == 0 {
		_, err := fmt.Fprintf(w, "Your %s cart is empty.\n", owner)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tVARIANT\tPRICE\tTOTAL")
	for _, it := range view.Items {
		name, price := "-", "-"
		if it.Product != nil {
			name = it.Product.Title
			price = format.Taka(it.Product.Price)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			it.ProductID, name, it.Quantity, variant(it.CartItem), price, format.Taka(it.LineTotal))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d item(s) in your %s cart, total %s\n", view.ItemCount, owner, view.FormattedTotal)
	return err
}

func variant(it models.CartItem) string {
	switch {
	case it.Size != "" && it.Color != "":
		return it.Size + "/" + it.Color
	case it.Size != "":
		return it.Size
	case it.Color != "":
		return it.Color
	default:
		return "-"
	}
}

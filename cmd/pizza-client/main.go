package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"pizzaservice/internal/client"
	"pizzaservice/internal/shared"
)

const usage = `usage:
  pizza-client order   [--server URL] --name N --address A --pizza-id ID [--pizza-id ID ...]
  pizza-client receipt [--server URL] --token T`

func main() {
	cfg, err := shared.ParseClientArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, shared.ErrUsage) {
			fmt.Fprintln(os.Stderr, usage)
		}
		os.Exit(2)
	}

	c := client.New(cfg.Server, cfg.Timeout)
	ctx := context.Background()

	switch cfg.Command {
	case "order":
		token, err := c.PlaceOrder(ctx, shared.OrderForm{
			Name:     cfg.Name,
			Address:  cfg.Address,
			PizzaIDs: cfg.PizzaIDs,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(token)
	case "receipt":
		doc, err := c.Receipt(ctx, cfg.Token)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		_ = enc.Encode(doc)
	}
}

// Command checkout is a terminal companion to the marketplace: it keeps a
// local cart, starts a PayPal checkout, and finishes it from the return
// URL the payment page redirects to.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ardanlabs/conf/v3"
	"github.com/khalidmaz/e-learning-market/client/cart"
	"github.com/khalidmaz/e-learning-market/client/checkout"
	"github.com/khalidmaz/e-learning-market/client/localstore"
	"github.com/khalidmaz/e-learning-market/client/rest"
	"github.com/sirupsen/logrus"
)

type cliConfig struct {
	APIURL    string `conf:"default:http://localhost:8000"`
	StatePath string `conf:"default:"`
}

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if err := run(log, os.Args[1:]); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(log *logrus.Logger, args []string) error {
	const prefix = "MARKET"
	var cfg cliConfig
	if _, err := conf.Parse(prefix, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	if cfg.StatePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("finding home directory: %w", err)
		}
		cfg.StatePath = filepath.Join(home, ".market", "state.json")
	}

	kv := localstore.New(cfg.StatePath)
	store := cart.NewStore(cart.NewLocalStorage(kv), log)
	client := rest.New(cfg.APIURL, &rest.StoredToken{KV: kv})

	flow := checkout.New(checkout.Config{
		API:  client,
		Cart: store,
		Log:  log,
		Navigate: func(u string) {
			fmt.Printf("open this page to approve the payment:\n%s\n", u)
		},
		// No screen lingers in a terminal; move on right away.
		RedirectDelay: 1,
	})

	if len(args) == 0 {
		return errors.New("usage: checkout login|add|remove|list|clear|pay|finish|abort")
	}

	ctx := context.Background()

	switch args[0] {
	case "login":
		if len(args) != 3 {
			return errors.New("usage: checkout login <email> <password>")
		}
		sess, err := client.Login(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		if err := kv.Set(localstore.KeyToken, sess.Token); err != nil {
			return fmt.Errorf("storing session token: %w", err)
		}
		if err := kv.Set(localstore.KeyUser, sess.User); err != nil {
			return fmt.Errorf("storing user: %w", err)
		}
		fmt.Println("logged in")

	case "add":
		if len(args) < 3 {
			return errors.New("usage: checkout add <course-id> <name> [price]")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return errors.New("course id is not a number")
		}
		item := cart.Item{ID: id, Name: args[2]}
		if len(args) > 3 {
			item.Price = cart.PriceFromString(args[3])
		}
		store.Add(item)
		fmt.Printf("%d courses in the cart\n", store.TotalItems())

	case "remove":
		if len(args) != 2 {
			return errors.New("usage: checkout remove <course-id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return errors.New("course id is not a number")
		}
		store.Remove(id)
		fmt.Printf("%d courses in the cart\n", store.TotalItems())

	case "list":
		for _, it := range store.Items() {
			fmt.Printf("%6d  %-40s %8s\n", it.ID, it.Name, it.Price.StringFixed(2))
		}
		t := store.Totals()
		fmt.Printf("total %s (incl. %s tax)\n", t.Total.StringFixed(2), t.Tax.StringFixed(2))

	case "clear":
		store.Clear()
		fmt.Println("cart cleared")

	case "pay":
		if err := flow.Initiate(ctx); err != nil {
			return err
		}

	case "finish":
		if len(args) != 2 {
			return errors.New("usage: checkout finish <return-url>")
		}
		q, err := queryOf(args[1])
		if err != nil {
			return err
		}
		if err := flow.HandleSuccessReturn(ctx, q); err != nil {
			return fmt.Errorf("%s: %w", flow.Message(), err)
		}
		fmt.Println(flow.Message())

	case "abort":
		if len(args) != 2 {
			return errors.New("usage: checkout abort <return-url>")
		}
		q, err := queryOf(args[1])
		if err != nil {
			return err
		}
		flow.HandleCancelReturn(ctx, q)
		fmt.Println(flow.Message())

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	return nil
}

func queryOf(raw string) (url.Values, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing return url: %w", err)
	}
	return u.Query(), nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"scarlet-storefront/apperrors"
	"scarlet-storefront/auth"
	"scarlet-storefront/clients"
	"scarlet-storefront/config"
	"scarlet-storefront/logger"
	"scarlet-storefront/models"
	"scarlet-storefront/services"
	"scarlet-storefront/session"

	"github.com/gorilla/securecookie"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// shopper is one CLI invocation's view of the device's cart.
type shopper struct {
	state  *services.CartState
	tokens *session.FileStore
	out    io.Writer
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "cartctl",
		Usage:     "Manage the scarlet storefront cart of this device",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Value:   "http://localhost:8086",
				Usage:   "base URL of the cart API",
				Sources: cli.EnvVars("API_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "bearer token of the signed-in shopper (overrides a stored login)",
				Sources: cli.EnvVars("STOREFRONT_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "session-file",
				Value:   config.DefaultSessionFile(),
				Usage:   "where the guest session id of this device is kept",
				Sources: cli.EnvVars("SESSION_FILE"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   10 * time.Second,
				Usage:   "per request timeout",
				Sources: cli.EnvVars("REQUEST_TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log requests to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "session",
				Usage: "Print the guest session id of this device",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id := session.NewIdentity(session.NewFileStore(cmd.String("session-file")), session.DeviceSignature(), nil).GetOrCreate()
					fmt.Fprintln(stdout, id)
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Show the cart",
				Action: withShopper(stderr, func(ctx context.Context, cmd *cli.Command, s *shopper) error {
					return s.render()
				}),
			},
			{
				Name:      "add",
				Usage:     "Add a product to the cart",
				ArgsUsage: "<productId>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "qty", Aliases: []string{"q"}, Value: 1, Usage: "quantity to add"},
					&cli.StringFlag{Name: "size", Usage: "size variant"},
					&cli.StringFlag{Name: "color", Usage: "color variant"},
				},
				Action: withShopper(stderr, func(ctx context.Context, cmd *cli.Command, s *shopper) error {
					if cmd.Args().Len() < 1 {
						return fmt.Errorf("usage: cartctl add <productId> [--qty n]")
					}
					err := s.state.AddItem(ctx, models.AddItemInput{
						ProductID: cmd.Args().Get(0),
						Quantity:  int(cmd.Int("qty")),
						Size:      cmd.String("size"),
						Color:     cmd.String("color"),
					})
					return s.renderAfter(err)
				}),
			},
			{
				Name:      "update",
				Usage:     "Set the quantity of a product; 0 removes it",
				ArgsUsage: "<productId> <quantity>",
				Action: withShopper(stderr, func(ctx context.Context, cmd *cli.Command, s *shopper) error {
					if cmd.Args().Len() < 2 {
						return fmt.Errorf("usage: cartctl update <productId> <quantity>")
					}
					qty, err := strconv.Atoi(cmd.Args().Get(1))
					if err != nil {
						return fmt.Errorf("quantity must be a number: %w", err)
					}
					return s.renderAfter(s.state.UpdateItem(ctx, cmd.Args().Get(0), qty))
				}),
			},
			{
				Name:      "remove",
				Usage:     "Remove a product from the cart",
				ArgsUsage: "<productId>",
				Action: withShopper(stderr, func(ctx context.Context, cmd *cli.Command, s *shopper) error {
					if cmd.Args().Len() < 1 {
						return fmt.Errorf("usage: cartctl remove <productId>")
					}
					return s.renderAfter(s.state.RemoveItem(ctx, cmd.Args().Get(0)))
				}),
			},
			{
				Name:  "clear",
				Usage: "Empty the cart",
				Action: withShopper(stderr, func(ctx context.Context, cmd *cli.Command, s *shopper) error {
					return s.renderAfter(s.state.ClearCart(ctx))
				}),
			},
			{
				Name:      "login",
				Usage:     "Sign in and bring the guest cart into the account",
				ArgsUsage: "<token>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					token := strings.TrimSpace(cmd.Args().Get(0))
					if token == "" {
						token = strings.TrimSpace(cmd.String("token"))
					}
					if token == "" {
						return fmt.Errorf("usage: cartctl login <token>")
					}

					s := newShopper(cmd, stdout, stderr)
					defer s.state.Close()
					// start from the device's guest cart so SetAuth merges it
					_ = s.state.Refresh(ctx)
					if err := s.state.SetAuth(ctx, token); err != nil {
						return err
					}
					if err := s.tokens.Save(token); err != nil {
						return fmt.Errorf("store login: %w", err)
					}
					return s.render()
				},
			},
			{
				Name:  "logout",
				Usage: "Sign out and show the guest cart of this device",
				Action: withShopper(stderr, func(ctx context.Context, cmd *cli.Command, s *shopper) error {
					if err := s.tokens.Save(""); err != nil {
						return fmt.Errorf("forget login: %w", err)
					}
					_ = s.state.SetAuth(ctx, "")
					return s.render()
				}),
			},
			{
				Name:      "token",
				Usage:     "Issue a development token signed with JWT_SECRET",
				ArgsUsage: "<userId>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "secret", Usage: "signing secret", Sources: cli.EnvVars("JWT_SECRET")},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					userID := cmd.Args().Get(0)
					if userID == "" {
						return fmt.Errorf("usage: cartctl token <userId>")
					}
					token, err := auth.NewVerifier(cmd.String("secret")).IssueToken(userID, cmd.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(stdout, token)
					return nil
				},
			},
			{
				Name:  "generate-keys",
				Usage: "Print fresh session cookie keys for the storefront .env",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(stdout, "SESSION_AUTH_KEY=%x\n", securecookie.GenerateRandomKey(32))
					fmt.Fprintf(stdout, "SESSION_ENC_KEY=%x\n", securecookie.GenerateRandomKey(16))
					return nil
				},
			},
		},
	}
}

// withShopper loads the cart for the current login before running fn.
func withShopper(stderr io.Writer, fn func(ctx context.Context, cmd *cli.Command, s *shopper) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		s := newShopper(cmd, cmd.Root().Writer, stderr)
		defer s.state.Close()

		if token := s.token(cmd); token != "" {
			_ = s.state.SetAuth(ctx, token)
		} else {
			_ = s.state.Refresh(ctx)
		}
		return fn(ctx, cmd, s)
	}
}

func newShopper(cmd *cli.Command, stdout, stderr io.Writer) *shopper {
	log := zap.NewNop()
	if cmd.Bool("verbose") {
		if l, err := logger.New("development", nil); err == nil {
			log = l
		}
	}

	sessionFile := cmd.String("session-file")
	identity := session.NewIdentity(session.NewFileStore(sessionFile), session.DeviceSignature(), log)
	gateway := clients.NewGatewayClient(strings.TrimSuffix(cmd.String("api-url"), "/"), cmd.Duration("timeout"))

	state := services.NewCartState(services.Options{
		Remote:   clients.NewCartClient(gateway),
		Catalog:  clients.NewCatalogClient(gateway),
		Session:  identity,
		Notifier: printNotifier{w: stderr},
		Logger:   log,
	})
	return &shopper{
		state:  state,
		tokens: session.NewFileStore(sessionFile + ".token"),
		out:    stdout,
	}
}

// token prefers the flag over a stored login.
func (s *shopper) token(cmd *cli.Command) string {
	if t := strings.TrimSpace(cmd.String("token")); t != "" {
		return t
	}
	t, err := s.tokens.Load()
	if err != nil {
		return ""
	}
	return t
}

func (s *shopper) render() error {
	return renderCart(s.out, s.state.View(), s.state.Token() != "")
}

// renderAfter shows the cart (rolled back on failure) and returns err.
func (s *shopper) renderAfter(err error) error {
	if rerr := s.render(); rerr != nil {
		return rerr
	}
	if err != nil {
		return fmt.Errorf("%s", apperrors.Message(err))
	}
	return nil
}

type printNotifier struct {
	w io.Writer
}

func (p printNotifier) Notify(_ context.Context, n models.Notification) {
	fmt.Fprintf(p.w, "[%s] %s\n", n.Level, n.Message)
}

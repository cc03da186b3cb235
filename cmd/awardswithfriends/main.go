package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/aamsco/awardswithfriends/internal/app"
	"github.com/aamsco/awardswithfriends/internal/auth"
	"github.com/aamsco/awardswithfriends/internal/config"
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/models"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/services"
	"github.com/aamsco/awardswithfriends/pkg/functions"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

var (
	version = "dev"
)

func showBanner(w io.Writer) {
	logo := []string{
		`    _                        _      `,
		`   /_\__ __ ____ _ _ _ __| |___  `,
		`  / _ \ V  V / _' | '_/ _' (_-<  `,
		` /_/ \_\_/\_/\__,_|_| \__,_/__/  with friends`,
	}
	fmt.Fprintln(w)
	for _, line := range logo {
		fmt.Fprintf(w, "  %s%s%s\n", yellow, line, reset)
	}
	fmt.Fprintf(w, "  %sversion %s%s\n\n", cyan, version, reset)
}

// newLogger builds the application logger. Commands other than serve log
// to stderr so their stdout stays machine readable.
func newLogger(cfg *config.Config, out io.Writer) *logger.SlogLogger {
	l := logger.NewWithOptions(logger.Options{
		Level:  logger.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: out,
	})
	if cfg.Logging.HTTP {
		l.EnableHTTPLogging()
	}
	return l
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if lvl := c.String("loglevel"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	return cfg, nil
}

// remote holds what the command subcommands need to act as one user
type remote struct {
	cfg      *config.Config
	log      logger.Logger
	identity *auth.Identity
	client   *functions.HTTPClient
}

func newRemote(c *cli.Context) (*remote, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg, os.Stderr)

	id, err := auth.New(cfg.Firebase.ProjectID).Authenticate(c.String("token"))
	if err != nil {
		return nil, fmt.Errorf("invalid --token: %w", err)
	}

	client := functions.NewHTTPClient(cfg.Firebase.FunctionsURL, log,
		functions.WithDefaultTokenSource(id.TokenSource()))
	return &remote{cfg: cfg, log: log, identity: id, client: client}, nil
}

func (r *remote) competitions() *services.CompetitionService {
	return services.NewCompetitionService(r.log, r.client, r.cfg.Invites.BaseURL, r.cfg.Invites.QRSize)
}

// votes connects to the document database for vote aggregation
func (r *remote) votes(ctx context.Context) (*services.VoteAggregator, func() error, error) {
	fs, err := repository.NewFirestoreClient(ctx, r.cfg.Firebase, r.log)
	if err != nil {
		return nil, nil, err
	}
	queries := repository.NewFirestore(fs, r.log, nil)
	membership := services.NewMembershipResolver(r.log, queries, nil)
	return services.NewVoteAggregator(r.log, membership, queries, nil), fs.Close, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP and WebSocket server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address, overrides server.addr"},
			&cli.BoolFlag{Name: "nobanner", Usage: "skip the startup banner"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if addr := c.String("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			if !c.Bool("nobanner") {
				showBanner(os.Stdout)
			}
			appLog := newLogger(cfg, os.Stdout)

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, appLog)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer a.Close()
			return a.Run(ctx)
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "create a competition",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "year", Usage: "ceremony year", Required: true},
			&cli.StringFlag{Name: "event", Usage: "event type slug, e.g. oscars"},
		},
		Action: func(c *cli.Context) error {
			r, err := newRemote(c)
			if err != nil {
				return err
			}
			svc := r.competitions()
			res, err := svc.Create(c.Context, services.NewCompetition{
				Name:         c.Args().First(),
				CeremonyYear: c.String("year"),
				Event:        c.String("event"),
			})
			if err != nil {
				return err
			}
			return printJSON(map[string]string{
				"competitionId": res.CompetitionID,
				"inviteCode":    res.InviteCode,
				"inviteLink":    svc.InviteLink(res.InviteCode),
			})
		},
	}
}

func joinCommand() *cli.Command {
	return &cli.Command{
		Name:      "join",
		Usage:     "join a competition by invite code",
		ArgsUsage: "CODE",
		Action: func(c *cli.Context) error {
			r, err := newRemote(c)
			if err != nil {
				return err
			}
			res, err := r.competitions().Join(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func leaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "leave",
		Usage:     "leave a competition",
		ArgsUsage: "COMPETITION_ID",
		Action: func(c *cli.Context) error {
			r, err := newRemote(c)
			if err != nil {
				return err
			}
			if err := r.competitions().Leave(c.Context, c.Args().First()); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Left competition")
			return nil
		},
	}
}

func voteCommand() *cli.Command {
	return &cli.Command{
		Name:      "vote",
		Usage:     "vote for a nominee in every competition of a ceremony",
		ArgsUsage: "CATEGORY_ID NOMINEE_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "year", Usage: "ceremony year", Required: true},
			&cli.StringFlag{Name: "event", Usage: "event type slug"},
			&cli.StringFlag{Name: "competition", Usage: "vote in this competition only"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("expected CATEGORY_ID and NOMINEE_ID", 2)
			}
			r, err := newRemote(c)
			if err != nil {
				return err
			}
			categoryID, nomineeID := c.Args().Get(0), c.Args().Get(1)

			if comp := c.String("competition"); comp != "" {
				voting := services.NewVotingService(r.log, r.client, nil, r.cfg.Voting.ConfirmationTimeout)
				return voting.CastVote(c.Context, comp, categoryID, nomineeID)
			}

			votes, closeFn, err := r.votes(c.Context)
			if err != nil {
				return err
			}
			defer closeFn()

			voting := services.NewVotingService(r.log, r.client, votes, r.cfg.Voting.ConfirmationTimeout)
			res, err := voting.CastCeremonyVote(c.Context, r.identity.UserID, services.CeremonyVote{
				CeremonyYear: c.String("year"),
				Event:        c.String("event"),
				CategoryID:   categoryID,
				NomineeID:    nomineeID,
			})
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func watchVotesCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch-votes",
		Usage: "print the caller's effective ceremony votes as JSON lines until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "year", Usage: "ceremony year", Required: true},
			&cli.StringFlag{Name: "event", Usage: "event type slug"},
		},
		Action: func(c *cli.Context) error {
			r, err := newRemote(c)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			votes, closeFn, err := r.votes(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			enc := json.NewEncoder(os.Stdout)
			err = votes.CeremonyVotes(r.identity.UserID, c.String("year"), c.String("event"))(ctx, func(m map[string]models.Vote) {
				if err := enc.Encode(m); err != nil {
					r.log.Warn("Failed to write votes", "error", err)
				}
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func main() {
	cliApp := &cli.App{
		Name:    "awardswithfriends",
		Usage:   "live backend for awards show prediction competitions",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "path to the configuration file", EnvVars: []string{"AWF_CONFIG"}},
			&cli.StringFlag{Name: "loglevel", Usage: "log level: debug, info, warn, error"},
			&cli.StringFlag{Name: "token", Usage: "ID token to act as", EnvVars: []string{"AWF_ID_TOKEN"}},
		},
		Commands: []*cli.Command{
			serveCommand(),
			createCommand(),
			joinCommand(),
			leaveCommand(),
			voteCommand(),
			watchVotesCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

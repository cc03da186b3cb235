package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/aamsco/awardswithfriends/internal/auth"
	"github.com/aamsco/awardswithfriends/internal/config"
	"github.com/aamsco/awardswithfriends/internal/handlers"
	"github.com/aamsco/awardswithfriends/internal/logger"
	"github.com/aamsco/awardswithfriends/internal/metrics"
	"github.com/aamsco/awardswithfriends/internal/repository"
	"github.com/aamsco/awardswithfriends/internal/services"
	"github.com/aamsco/awardswithfriends/internal/websocket"
	"github.com/aamsco/awardswithfriends/pkg/functions"
)

// shutdownTimeout bounds graceful HTTP shutdown
const shutdownTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	cfg      *config.Config
	log      logger.Logger
	metrics  *metrics.Metrics
	queries  repository.LiveQueries
	client   functions.Client
	prefs    *repository.Repository
	hub      *websocket.Hub
	handlers *handlers.Handlers
	closers  []func() error
}

// Option replaces a remote collaborator, mainly for tests
type Option func(*App)

// WithQueries serves live queries from q instead of Firestore
func WithQueries(q repository.LiveQueries) Option {
	return func(a *App) { a.queries = q }
}

// WithClient sends commands through c instead of the HTTPS functions client
func WithClient(c functions.Client) Option {
	return func(a *App) { a.client = c }
}

// New creates and initializes a new application instance
func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, log: log}
	for _, opt := range opts {
		opt(a)
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}

	prefs, err := repository.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening preferences database: %w", err)
	}
	a.prefs = prefs
	a.closers = append(a.closers, prefs.Close)

	if a.queries == nil {
		fs, err := repository.NewFirestoreClient(ctx, cfg.Firebase, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to firestore: %w", err)
		}
		a.closers = append(a.closers, fs.Close)
		a.queries = repository.NewFirestore(fs, log, a.metrics)
	}
	if a.client == nil {
		a.client = functions.NewHTTPClient(cfg.Firebase.FunctionsURL, log, functions.WithMetrics(a.metrics))
	}

	// Initialize services
	membership := services.NewMembershipResolver(log, a.queries, a.metrics)
	votes := services.NewVoteAggregator(log, membership, a.queries, a.metrics)
	entitlements := services.NewStaticEntitlements(cfg.Entitlements.Unlimited, cfg.Entitlements.Subscribers)

	a.hub = websocket.New(log, a.metrics)
	a.handlers = handlers.New(handlers.Deps{
		Queries:        a.queries,
		Membership:     membership,
		Votes:          votes,
		Catalog:        services.NewCategoryCatalog(log, a.queries, a.metrics),
		Counts:         services.NewCategoryCountEstimator(log, a.queries, a.metrics),
		Voting:         services.NewVotingService(log, a.client, votes, cfg.Voting.ConfirmationTimeout),
		Competitions:   services.NewCompetitionService(log, a.client, cfg.Invites.BaseURL, cfg.Invites.QRSize),
		Account:        services.NewAccountService(log, a.queries, prefs, a.client),
		Features:       services.NewFeatureService(log, a.queries, entitlements),
		Auth:           auth.New(cfg.Firebase.ProjectID),
		Hub:            a.hub,
		Metrics:        a.metrics,
		Log:            log,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsPath:    cfg.Metrics.Path,
	})

	return a, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Close releases the database handles
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("Close failed", "error", err)
		}
	}
	a.closers = nil
}

// Run serves HTTP and WebSocket traffic until ctx ends, then tells
// connected clients to go away and shuts the server down
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.hub.Run(hubCtx)
		return nil
	})
	g.Go(func() error {
		port := portOf(ln.Addr())
		a.log.Info("Server starting", "addr", ln.Addr().String())
		a.log.Info("LAN URL", "url", fmt.Sprintf("http://%s:%s", getPreferredIP(realNetworkProvider{}), port))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.hub.BroadcastMessage("server_shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stopHub()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		a.log.Info("Server stopped")
		return nil
	})

	return g.Wait()
}

func portOf(addr net.Addr) string {
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return ""
	}
	return port
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// realInterface wraps a real net.Interface
type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider is an interface for getting network interfaces (for testing)
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

// realNetworkProvider implements networkProvider using actual net package
type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the address devices on the local network reach
// the server at, so that emulators and phones can be pointed at it.
// Private ranges win over other addresses; localhost is the fallback.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP
	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		ipStr := ip.String()
		if strings.HasPrefix(ipStr, "192.168.") ||
			strings.HasPrefix(ipStr, "10.") ||
			isPrivate172(ip) {
			return ipStr
		}
	}
	if len(candidates) > 0 {
		return candidates[0].String()
	}
	return "localhost"
}

// isPrivate172 checks if IP is in 172.16.0.0/12 range
func isPrivate172(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31
	}
	return false
}

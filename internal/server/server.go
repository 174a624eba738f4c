package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/quizhub/internal/api"
	"github.com/victornm/quizhub/internal/auth"
	"github.com/victornm/quizhub/internal/event"
	"github.com/victornm/quizhub/internal/leaderboard"
	"github.com/victornm/quizhub/internal/quiz"
	"github.com/victornm/quizhub/internal/score"
	"github.com/victornm/quizhub/internal/scoring"
	"github.com/victornm/quizhub/internal/stats"
	"github.com/victornm/quizhub/internal/storage/postgres"
	"github.com/victornm/quizhub/internal/submission"
	"github.com/victornm/quizhub/internal/telemetry"
	"github.com/victornm/quizhub/internal/user"
)

type Config struct {
	HTTP struct {
		Port        int32
		CORSOrigins []string
	}

	GRPC struct {
		Port int32
	}

	Auth struct {
		Secret   string
		TokenTTL time.Duration
	}

	Redis struct {
		Cache struct {
			Addrs          []string
			Pass           string
			Prefix         string
			QuizTTL        time.Duration
			LeaderboardTTL time.Duration
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Addr     string
		User     string
		Pass     string
		Name     string
		SSLMode  string
		MaxConns int32
		Timeout  time.Duration
	}

	Scoring struct {
		TimePolicy string
	}

	Reconcile struct {
		// Cron schedule of the full rebuild, e.g. "0 4 * * *". Empty disables it.
		Schedule string
	}
}

// DefaultConfig returns the values used for anything the config file and environment leave unset.
func DefaultConfig() Config {
	var c Config

	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Auth.TokenTTL = 24 * time.Hour

	c.Redis.Cache.Addrs = []string{"localhost:6379"}
	c.Redis.Cache.Prefix = "quizhub"
	c.Redis.Cache.QuizTTL = 5 * time.Minute
	c.Redis.Cache.LeaderboardTTL = time.Minute
	c.Redis.Pubsub.Addrs = []string{"localhost:6379"}
	c.Redis.Pubsub.Prefix = "quizhub"

	c.Postgres.Addr = "localhost:5432"
	c.Postgres.User = "quizhub"
	c.Postgres.Name = "quizhub"
	c.Postgres.SSLMode = "disable"
	c.Postgres.MaxConns = 20
	c.Postgres.Timeout = 5 * time.Second

	c.Scoring.TimePolicy = string(scoring.TimePolicyClamp)

	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			cache  redis.UniversalClient
			pubsub redis.UniversalClient
		}

		postgres *pgxpool.Pool
	}

	service struct {
		user        *user.Service
		quiz        *quiz.Service
		score       *score.Service
		stats       *stats.Service
		submission  *submission.Service
		leaderboard *leaderboard.Service
	}

	auth          *auth.Authenticator
	stopReconcile func()

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	if c.Auth.Secret == "" {
		return nil, fmt.Errorf("server: auth secret not set")
	}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	stop, err := s.service.stats.StartReconciler(context.Background(), c.Reconcile.Schedule)
	if err != nil {
		return nil, fmt.Errorf("server: start reconciler: %w", err)
	}
	s.stopReconcile = stop

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.cache, err = connect(s.c.Redis.Cache.Addrs, s.c.Redis.Cache.Pass)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() error {
	db, err := ConnectPostgres(s.c)
	if err != nil {
		return err
	}

	s.infra.postgres = db
	return nil
}

// ConnectPostgres opens and pings the pool described by c.Postgres.
func ConnectPostgres(c Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := c.Postgres
	cc, err := pgxpool.ParseConfig(postgres.DSN(p.User, p.Pass, p.Addr, p.Name, p.SSLMode))
	if err != nil {
		return nil, err
	}

	if p.MaxConns > 0 {
		cc.MaxConns = p.MaxConns
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (s *Server) initService() error {
	policy, err := scoring.ParseTimePolicy(s.c.Scoring.TimePolicy)
	if err != nil {
		return err
	}

	store := postgres.New(s.infra.postgres, s.c.Postgres.Timeout)

	s.auth = auth.NewAuthenticator(s.c.Auth.Secret, s.c.Auth.TokenTTL)

	s.service.user = user.NewService(user.Config{
		Store: store,
	})

	s.service.stats = stats.NewService(stats.Config{
		EventBus: s.eb,
		Store:    store,
	})

	s.service.quiz = quiz.NewService(quiz.Config{
		EventBus: s.eb,
		Store:    store,
		Stats:    s.service.stats,
		Cache:    quiz.NewRedisCache(s.infra.redis.cache, s.c.Redis.Cache.Prefix, s.c.Redis.Cache.QuizTTL),
	})

	s.service.score = score.NewService(score.Config{
		EventBus: s.eb,
		Store:    store,
	})

	s.service.submission = submission.NewService(submission.Config{
		EventBus: s.eb,
		Engine:   scoring.NewEngine(policy),
		Quiz:     s.service.quiz,
		Score:    s.service.score,
		Stats:    s.service.stats,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Score:    s.service.score,
		Redis:    s.infra.redis.cache,
		Prefix:   s.c.Redis.Cache.Prefix,
		TTL:      s.c.Redis.Cache.LeaderboardTTL,
	})

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.HTTPMiddleware(), s.cors())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())

	api.New(api.Config{
		Router:       e,
		GRPC:         s.grpc,
		EventBus:     s.eb,
		Auth:         s.auth,
		User:         s.service.user,
		Quiz:         s.service.quiz,
		Score:        s.service.score,
		Submission:   s.service.submission,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
		CheckOrigin:  s.checkOrigin,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) cors() gin.HandlerFunc {
	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, "Authorization")

	if len(s.c.HTTP.CORSOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = s.c.HTTP.CORSOrigins
	}

	return cors.New(cc)
}

// checkOrigin applies the CORS origin list to websocket upgrades.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.c.HTTP.CORSOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	for _, o := range s.c.HTTP.CORSOrigins {
		if o == origin {
			return true
		}
	}

	return false
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	if s.stopReconcile != nil {
		s.stopReconcile()
	}

	s.eb.Stop()

	s.infra.postgres.Close()
	for _, r := range []redis.UniversalClient{s.infra.redis.cache, s.infra.redis.pubsub} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}

// Package http exposes the companion trust service: challenge nonces,
// capture submission, verification, and record lookup.
package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RoloBits/attestation-photo-mobile/internal/config"
	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/db"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/keys"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/keys/soft"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/nonce"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/policyopa"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/ratelimit"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/storage"
	"github.com/RoloBits/attestation-photo-mobile/internal/usecase"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	captureUC *usecase.CaptureService
	verifyUC  *usecase.VerifyService
	records   usecase.CaptureRecordRepository
	nonces    domain.NonceStore

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration

	initErr error
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r}
	s.initDeps()
	s.initRateLimit(nil)
	s.routes()
	return s
}

type ServerDeps struct {
	Capture     *usecase.CaptureService
	Verify      *usecase.VerifyService
	Records     usecase.CaptureRecordRepository
	Nonces      domain.NonceStore
	RateLimiter domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:       cfg,
		r:         r,
		captureUC: deps.Capture,
		verifyUC:  deps.Verify,
		records:   deps.Records,
		nonces:    deps.Nonces,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	if s.cfg.RedisAddr != "" {
		store, err := nonce.NewRedisStore(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, s.cfg.NonceTTL())
		if err != nil {
			s.initErr = err
			return
		}
		s.nonces = store
	} else {
		s.nonces = nonce.NewMemoryStore(nonce.MemoryStoreConfig{TTL: s.cfg.NonceTTL()})
	}

	if s.store != nil && s.store.DB != nil {
		s.records = db.NewCaptureRecordRepository(s.store.DB)
	}

	var policy usecase.PolicyEvaluator
	if s.cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(context.Background(), s.cfg.PolicyBundlePath, s.cfg.PolicyBundleID)
		if err != nil {
			s.initErr = err
			return
		}
		policy = engine
	} else {
		log.Printf("POLICY_BUNDLE_PATH not set; captures are admitted without policy checks.")
		policy = allowAllPolicy{}
	}

	gallery, err := storage.Open(s.cfg.GalleryDir)
	if err != nil {
		s.initErr = err
		return
	}

	provisioner := keys.NewProvisioner(s.cfg.KeyAlias, soft.NewManager(s.cfg.KeyDir))

	s.captureUC = &usecase.CaptureService{
		Keys:                   provisioner,
		Policy:                 policy,
		Records:                s.records,
		Gallery:                gallery,
		Nonces:                 s.nonces,
		AppName:                s.cfg.AppName,
		DeviceModel:            s.cfg.DeviceModel,
		OSVersion:              s.cfg.OSVersion,
		RequireTrustedHardware: s.cfg.RequireTrustedHardware,
	}
	s.verifyUC = &usecase.VerifyService{Records: s.records}
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/challenges", s.handleCreateChallenge)
		v1.POST("/captures", s.handleCapture)
		v1.POST("/verify", s.handleVerify)
		v1.GET("/captures", s.handleListCaptures)
		v1.GET("/captures/:asset_hash", s.handleGetCapture)
	}
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}

// allowAllPolicy stands in when no bundle is configured.
type allowAllPolicy struct{}

func (allowAllPolicy) Evaluate(_ context.Context, _ domain.PolicyInput) (domain.PolicyEvaluation, error) {
	return domain.PolicyEvaluation{Result: domain.PolicyResult{Allow: true}}, nil
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stayloop/folio/internal/audit"
	auditdomain "github.com/stayloop/folio/internal/audit/domain"
	"github.com/stayloop/folio/internal/batch"
	batchdomain "github.com/stayloop/folio/internal/batch/domain"
	"github.com/stayloop/folio/internal/config"
	"github.com/stayloop/folio/internal/folio"
	foliodomain "github.com/stayloop/folio/internal/folio/domain"
	"github.com/stayloop/folio/internal/ledger"
	ledgerdomain "github.com/stayloop/folio/internal/ledger/domain"
	"github.com/stayloop/folio/internal/reconciliation"
	recondomain "github.com/stayloop/folio/internal/reconciliation/domain"
	"github.com/stayloop/folio/internal/recovery"
	recoverydomain "github.com/stayloop/folio/internal/recovery/domain"
	"github.com/stayloop/folio/internal/routing"
	routingdomain "github.com/stayloop/folio/internal/routing/domain"
	"github.com/stayloop/folio/internal/stay"
	staydomain "github.com/stayloop/folio/internal/stay/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	folio.Module,
	routing.Module,
	ledger.Module,
	stay.Module,
	reconciliation.Module,
	batch.Module,
	recovery.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	genID       *snowflake.Node
	folioSvc    foliodomain.Service
	poster      ledgerdomain.Poster
	routingSvc  routingdomain.Service
	staySvc     staydomain.Service
	reconSvc    recondomain.Service
	batchSvc    batchdomain.Service
	recoverySvc recoverydomain.Service
	auditSvc    auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	GenID       *snowflake.Node
	FolioSvc    foliodomain.Service
	Poster      ledgerdomain.Poster
	RoutingSvc  routingdomain.Service
	StaySvc     staydomain.Service
	ReconSvc    recondomain.Service
	BatchSvc    batchdomain.Service
	RecoverySvc recoverydomain.Service
	AuditSvc    auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		folioSvc:    p.FolioSvc,
		poster:      p.Poster,
		routingSvc:  p.RoutingSvc,
		staySvc:     p.StaySvc,
		reconSvc:    p.ReconSvc,
		batchSvc:    p.BatchSvc,
		recoverySvc: p.RecoverySvc,
		auditSvc:    p.AuditSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", TenantMiddleware())

	v1.POST("/postings", s.PostTransaction)
	v1.POST("/postings/rebate", s.PostRebate)

	v1.POST("/folios", s.OpenFolio)
	v1.GET("/folios", s.ListFolios)
	v1.GET("/folios/:id", s.GetFolio)
	v1.GET("/folios/:id/transactions", s.ListFolioTransactions)
	v1.POST("/folios/:id/close", s.CloseFolio)
	v1.POST("/folios/:id/reopen", s.ReopenFolio)

	v1.POST("/routing/rules", s.CreateRoutingRule)
	v1.GET("/routing/rules", s.ListRoutingRules)
	v1.DELETE("/routing/rules/:id", s.DeactivateRoutingRule)
	v1.POST("/routing/resolve", s.ResolveRouting)

	v1.POST("/stays", s.CreateStay)
	v1.GET("/stays/:id", s.GetStay)
	v1.POST("/stays/:id/check-in", s.CheckInStay)
	v1.POST("/stays/:id/check-out", s.CheckOutStay)

	v1.POST("/settlements", s.ImportSettlementBatch)
	v1.POST("/settlements/:id/match", s.RunSettlementMatch)
	v1.GET("/settlements/:id/summary", s.SettlementSummary)
	v1.POST("/settlements/records/:id/match", s.ManualSettlementMatch)
	v1.POST("/settlements/records/:id/unmatch", s.UnmatchSettlementRecord)

	v1.POST("/cash-sessions", s.OpenCashSession)
	v1.POST("/cash-sessions/:id/close", s.CloseCashSession)
	v1.GET("/cash-sessions/:id", s.GetBatchSnapshot)
	v1.POST("/night-audit", s.RunNightAudit)

	v1.POST("/recovery/run", s.RunRecovery)

	v1.GET("/audit-logs", s.ListAuditLogs)
}

package router

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/audit"
	"github.com/kananavy/pharmacie/internal/config"
	"github.com/kananavy/pharmacie/internal/handler"
	"github.com/kananavy/pharmacie/internal/middleware"
	"github.com/kananavy/pharmacie/internal/repository"
	"github.com/kananavy/pharmacie/internal/service"
)

// Deps are the collaborators built by the composition root. Sink defaults to
// audit.LogSink; rdb may be nil, which disables the catalog cache.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Sink    audit.Sink
	Limiter *middleware.RateLimiter
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	db, rdb := deps.DB, deps.Redis
	sink := deps.Sink
	if sink == nil {
		sink = audit.LogSink{}
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())
	if deps.Limiter != nil {
		r.Use(deps.Limiter.Handler())
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	medicamentRepo := repository.NewMedicamentRepository(db)
	lotRepo := repository.NewLotRepository(db)
	mouvementRepo := repository.NewMouvementStockRepository(db)
	venteRepo := repository.NewVenteRepository(db)
	commandeRepo := repository.NewCommandeRepository(db)
	clotureRepo := repository.NewClotureRepository(db)
	ordonnanceRepo := repository.NewOrdonnanceRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	venteDeps := service.VenteDeps{
		Medicaments: medicamentRepo,
		Lots:        lotRepo,
		Mouvements:  mouvementRepo,
		Ventes:      venteRepo,
		Ordonnances: ordonnanceRepo,
		Sink:        sink,
	}
	venteSvc := service.NewVenteService(venteDeps)
	commandeSvc := service.NewCommandeService(commandeRepo, venteDeps)
	stockSvc := service.NewStockService(service.StockDeps{
		Medicaments:           medicamentRepo,
		Lots:                  lotRepo,
		Mouvements:            mouvementRepo,
		Sink:                  sink,
		JoursAlerteExpiration: cfg.ExpiryAlertDays,
	})
	caisseSvc := service.NewCaisseService(clotureRepo, venteRepo, sink, nil)
	catalogueSvc := service.NewCatalogueService(medicamentRepo, lotRepo, rdb, cfg.CatalogCacheTTL, sink)

	// ── Handlers ─────────────────────────────────────────────────────────────
	ventesH := handler.NewVentesHandler(venteSvc)
	commandesH := handler.NewCommandesHandler(commandeSvc)
	stockH := handler.NewStockHandler(stockSvc)
	caisseH := handler.NewCaisseHandler(caisseSvc)
	medicamentsH := handler.NewMedicamentsHandler(catalogueSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	const (
		admin      = middleware.RoleAdmin
		pharmacien = middleware.RolePharmacien
		caissier   = middleware.RoleCaissier
		vendeur    = middleware.RoleVendeur
	)
	tous := middleware.RequireRole(admin, pharmacien, caissier, vendeur)
	encaissement := middleware.RequireRole(caissier, pharmacien, admin)
	gestionStock := middleware.RequireRole(pharmacien, admin)

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		ventes := v1.Group("/ventes")
		ventes.POST("", encaissement, ventesH.Creer)
		ventes.GET("/:id", tous, ventesH.Obtenir)
		ventes.POST("/:id/annulation", gestionStock, ventesH.Annuler)
		ventes.POST("/:id/retours", encaissement, ventesH.Retourner)

		commandes := v1.Group("/commandes")
		commandes.POST("", middleware.RequireRole(vendeur, pharmacien, admin), commandesH.Creer)
		commandes.GET("/en-attente", encaissement, commandesH.EnAttente)
		commandes.GET("/:id", tous, commandesH.Obtenir)
		commandes.POST("/:id/paiement", encaissement, commandesH.Payer)
		commandes.POST("/:id/annulation", middleware.RequireRole(admin), commandesH.Annuler)

		lots := v1.Group("/lots", gestionStock)
		lots.POST("", stockH.RecevoirLot)
		lots.POST("/:id/ajustement", stockH.AjusterLot)

		stock := v1.Group("/stock")
		stock.GET("/alertes", tous, stockH.Alertes)
		stock.GET("/mouvements", gestionStock, stockH.Mouvements)

		meds := v1.Group("/medicaments")
		meds.GET("", tous, medicamentsH.Lister)
		meds.GET("/:id", tous, medicamentsH.Obtenir)
		meds.GET("/:id/lots", gestionStock, stockH.LotsDuMedicament)
		meds.POST("", middleware.RequireRole(admin), medicamentsH.Creer)

		caisse := v1.Group("/caisse", encaissement)
		caisse.GET("/courante", caisseH.Courante)
		caisse.POST("/cloture", caisseH.Cloturer)
		caisse.GET("/clotures", caisseH.Historique)
	}

	return r
}

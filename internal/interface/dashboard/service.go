package dashboard

import (
	"net/http"

	"github.com/ark-network/wabisabi/internal/core/application"
	"github.com/ark-network/wabisabi/internal/instrument"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type service struct {
	*gin.Engine
	appSvc application.Service
}

// NewService returns the admin http handler exposing the rounds status,
// the prison, the whitelist and the prometheus metrics.
func NewService(appSvc application.Service) http.Handler {
	instrument.Init()

	router := gin.New()
	router.Use(gin.Recovery())

	svc := &service{router, appSvc}

	v1 := svc.Group("/v1")
	v1.GET("/status", svc.statusHandler)
	v1.GET("/prison", svc.prisonHandler)
	v1.GET("/whitelist", svc.whitelistHandler)

	svc.GET("/metrics", gin.WrapH(instrument.Handler()))

	return svc
}

func (s *service) statusHandler(c *gin.Context) {
	rounds, err := s.appSvc.GetStatus(c.Request.Context(), nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	phase := c.Query("phase")
	list := make([]roundView, 0, len(rounds))
	for _, r := range rounds {
		if len(phase) > 0 && r.Phase.String() != phase {
			continue
		}
		list = append(list, newRoundView(r))
	}
	c.JSON(http.StatusOK, gin.H{"rounds": list})
}

func (s *service) prisonHandler(c *gin.Context) {
	inmates, err := s.appSvc.ListInmates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	list := make([]inmateView, 0, len(inmates))
	for _, i := range inmates {
		list = append(list, inmateView{
			Outpoint:   i.Outpoint.String(),
			RoundId:    i.RoundId,
			Punishment: i.Punishment.String(),
			StartedAt:  i.StartedAt.Unix(),
			ExpiresAt:  i.ExpiresAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"inmates": list, "count": len(list)})
}

func (s *service) whitelistHandler(c *gin.Context) {
	entries, err := s.appSvc.ListWhitelist(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	list := make([]whitelistView, 0, len(entries))
	for _, e := range entries {
		list = append(list, whitelistView{
			Outpoint:  e.Outpoint.String(),
			ClearedAt: e.ClearedAt.Unix(),
			ExpiresAt: e.ExpiresAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": list, "count": len(list)})
}

func errorResponse(err error) gin.H {
	return gin.H{"error": err.Error()}
}

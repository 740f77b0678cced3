package lobby

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewStatusHandler exposes read-only lobby state over HTTP.
func NewStatusHandler(rooms *Registry, reports *MemoryReports, log zerolog.Logger) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", func(ctx *gin.Context) { ctx.String(http.StatusOK, "ok") })

	r.GET("/rooms", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"rooms": rooms.List()})
	})

	r.GET("/reports", func(ctx *gin.Context) {
		limit := 20
		if raw := ctx.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			limit = n
		}
		ctx.JSON(http.StatusOK, gin.H{"reports": reports.Recent(limit)})
	})
	return r
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		log.Debug().
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Int("status", ctx.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http")
	}
}

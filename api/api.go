package api

import (
	"fmt"

	"propval/internal/app"
	"propval/internal/logger"
	"propval/internal/repository"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type ApiHandler struct {
	ValuationHandler app.ValuationHandler
	RecordRepository repository.ValuationRecordRepository
}

func (m ApiHandler) StartApi(port int) error {
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(loggerMiddleware)

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to propval"})
	})
	router.POST("/valuations", m.runValuation)
	router.GET("/valuations/:runId", m.getValuation)
	router.GET("/subjects/:subjectId/valuations", m.listValuations)

	return router.Run(fmt.Sprintf(":%d", port))
}

func returnErrorJson(err error, c *gin.Context) {
	logger.FromContext(c).Error(err.Error())
	c.AbortWithStatusJSON(500, gin.H{
		"error": err.Error(),
	})
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	logger.FromContext(c).Warn(err.Error())
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

func loggerMiddleware(ctx *gin.Context) {
	log := logger.New().With("path", ctx.Request.URL.Path)
	ctx.Set(logger.ContextKey, log)
	ctx.Next()
}

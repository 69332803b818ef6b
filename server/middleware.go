package server

import (
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/gin-gonic/gin"
	"github.com/valtbridge/bridge-service/metrics"
)

// requestLogMiddleware logs every request with its outcome and duration
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		duration := time.Since(startTime)
		log.Infof("method[%v] path[%v] status[%v] errors[%v] processTime[%v]",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.Errors.String(), duration.String())
	}
}

// requestMetricsMiddleware records the request metrics to prometheus, labelled by route
func requestMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, path, c.Writer.Status())
		metrics.RecordRequestLatency(c.Request.Method, path, time.Since(startTime))
	}
}

// corsMiddleware allows Cross Origin Resource Sharing from any origin
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			if c.Request.Method == "OPTIONS" && c.GetHeader("Access-Control-Request-Method") != "" {
				c.Header("Access-Control-Allow-Headers", "*")
				c.Header("Access-Control-Allow-Methods", "*")
				c.AbortWithStatus(204) //nolint:gomnd
				return
			}
		}
		c.Next()
	}
}

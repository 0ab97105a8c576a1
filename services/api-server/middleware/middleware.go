package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freedkr/moonshot-translate/internal/model"
)

// CORS 跨域中间件
func CORS() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, UPDATE")
			c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization, Cache-Control, X-File-Name, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "Content-Length, Access-Control-Allow-Origin, Access-Control-Allow-Headers, Cache-Control, Content-Language, Content-Type")
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})
}

// RequestID 请求ID中间件
func RequestID() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		
		c.Set("RequestID", requestID)
		c.Header("X-Request-ID", requestID)
		
		c.Next()
	})
}

// AuthMiddleware 认证中间件（暂时空实现）
func AuthMiddleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		// TODO: 实现JWT或其他认证逻辑
		c.Next()
	})
}

// RateLimiter 限流中间件（暂时空实现）
func RateLimiter() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		// TODO: 实现限流逻辑
		c.Next()
	})
}

// RespondError writes the HTTP response for err using the Material
// pipeline's error taxonomy (spec §6/§7): NotFound -> 404, Conflict ->
// 409, VersionConflict -> 409, ProviderRecoverableError -> 503 with
// {"recoverable": true}, ProviderFatalError -> 502, StageTimeoutError
// -> 504, ValidationError -> 400, everything else -> 500.
func RespondError(c *gin.Context, err error) {
	switch e := err.(type) {
	case *model.NotFoundError:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Message, "resource": e.Resource, "id": e.ID})
	case *model.ConflictError:
		c.JSON(http.StatusConflict, gin.H{"error": e.Message, "material_id": e.MaterialID})
	case *model.VersionConflictError:
		c.JSON(http.StatusConflict, gin.H{"error": e.Message, "material_id": e.MaterialID})
	case *model.ProviderRecoverableError:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": e.Message, "recoverable": true, "provider": e.Provider})
	case *model.ProviderFatalError:
		c.JSON(http.StatusBadGateway, gin.H{"error": e.Message, "provider": e.Provider})
	case *model.StageTimeoutError:
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": e.Message, "stage": e.Stage})
	case *model.ValidationError:
		c.JSON(http.StatusBadRequest, gin.H{"error": e.Message})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/FleetTechRegistry/FleetTechRegistry/internal/common/config"
	"github.com/FleetTechRegistry/FleetTechRegistry/internal/common/logger"
	"github.com/FleetTechRegistry/FleetTechRegistry/internal/common/middleware"
)

// RecoveryMiddleware 防止 panic 直接把进程打崩，并记录栈信息。
func RecoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				if log != nil {
					log.Errorf("panic in http path=%s err=%v stack=%s", c.FullPath(), r, string(debug.Stack()))
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// AccessLogMiddleware 记录每个 HTTP 请求的耗时/状态码。
func AccessLogMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		cost := time.Since(start)

		if log != nil {
			fields := map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"status": c.Writer.Status(),
				"cost":   cost.String(),
			}
			if len(c.Errors) > 0 {
				fields["error"] = c.Errors.String()
			}
			if c.Writer.Status() >= http.StatusInternalServerError {
				log.WithFields(fields).Warn("http request failed")
			} else {
				log.WithFields(fields).Info("http request ok")
			}
		}
	}
}

// TracingMiddleware 基于 OpenTracing 的最小 server 中间件：
//   - 从请求头提取上游 span context（uber-trace-id 等，取决于注入格式）
//   - 创建 server span 并塞进 request context，业务侧可直接
//     opentracing.StartSpanFromContext
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tracer := opentracing.GlobalTracer()

		var parent opentracing.SpanContext
		if sc, err := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(c.Request.Header)); err == nil {
			parent = sc
		}

		operation := c.Request.Method + " " + c.FullPath()
		var span opentracing.Span
		if parent != nil {
			span = tracer.StartSpan(operation, ext.RPCServerOption(parent))
		} else {
			span = tracer.StartSpan(operation)
		}
		defer span.Finish()

		ext.SpanKindRPCServer.Set(span)
		ext.HTTPMethod.Set(span, c.Request.Method)
		ext.HTTPUrl.Set(span, c.Request.URL.Path)
		if serviceName != "" {
			span.SetTag("service", serviceName)
		}

		c.Request = c.Request.WithContext(opentracing.ContextWithSpan(c.Request.Context(), span))
		c.Next()

		ext.HTTPStatusCode.Set(span, uint16(c.Writer.Status()))
	}
}

// RateLimitMiddleware 令牌桶限流，超限返回 429。
func RateLimitMiddleware(cfg config.RateLimitConfig) gin.HandlerFunc {
	bucket := middleware.NewTokenBucket(cfg.Capacity, cfg.RefillRate)
	return func(c *gin.Context) {
		if !bucket.Allow(c.Request.Context()) {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}

const authInfoKey = "authInfo"

// AuthInfo 从 JWT 中解析出的最小用户信息。
type AuthInfo struct {
	Subject string   // 用户 ID
	Name    string   // 展示名（name claim）
	Roles   []string // 角色列表
}

// AuthFromContext 取出鉴权信息（鉴权未启用或公开路径上不存在）。
func AuthFromContext(c *gin.Context) (AuthInfo, bool) {
	v, ok := c.Get(authInfoKey)
	if !ok {
		return AuthInfo{}, false
	}
	ai, ok := v.(AuthInfo)
	return ai, ok
}

// JWTAuthMiddleware JWT 鉴权：
// - 读取 `Authorization: Bearer <token>`
// - 校验 HS256 签名与 exp/nbf（jwt/v5 默认校验），可选校验 iss/aud
// - 解析结果写入 gin context，供审计字段使用
func JWTAuthMiddleware(cfg config.AuthConfig, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled || isPublicPath(cfg.PublicPaths, c.Request.URL.Path) {
			c.Next()
			return
		}
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			if log != nil {
				log.Warn("auth enabled but jwt_secret is empty")
			}
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		tokenStr := raw
		if strings.HasPrefix(strings.ToLower(tokenStr), "bearer ") {
			tokenStr = strings.TrimSpace(tokenStr[len("bearer "):])
		}
		if tokenStr == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		claims := struct {
			Name  string   `json:"name"`
			Roles []string `json:"roles"`
			jwt.RegisteredClaims
		}{}

		parsed, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
			}
			return []byte(cfg.JWTSecret), nil
		}, jwt.WithLeeway(30*time.Second))
		if err != nil || parsed == nil || !parsed.Valid {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if cfg.Audience != "" && !audienceContains(claims.Audience, cfg.Audience) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set(authInfoKey, AuthInfo{
			Subject: claims.Subject,
			Name:    claims.Name,
			Roles:   claims.Roles,
		})
		c.Next()
	}
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" || len(aud) == 0 {
		return false
	}
	for _, v := range aud {
		if strings.TrimSpace(v) == want {
			return true
		}
	}
	return false
}

func isPublicPath(public []string, path string) bool {
	if path == "" || len(public) == 0 {
		return false
	}
	for _, p := range public {
		if strings.TrimSpace(p) == path {
			return true
		}
	}
	return false
}

package techrecord

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/FleetTechRegistry/FleetTechRegistry/internal/common/logger"
	"github.com/FleetTechRegistry/FleetTechRegistry/internal/common/server"
)

// HTTPServer 技术记录 API 的 HTTP 入口。
type HTTPServer struct {
	svc *Service
	log logger.Logger
}

func NewHTTPServer(db *gorm.DB, log logger.Logger) *HTTPServer {
	return &HTTPServer{svc: NewService(NewRepo(db), log), log: log}
}

// NewHTTPServerWithStore 注入自定义存储（测试用 fake store 走这里）。
func NewHTTPServerWithStore(store RowStore, log logger.Logger) *HTTPServer {
	return &HTTPServer{svc: NewService(store, log), log: log}
}

// RegisterRoutes 注册业务路由。
func (s *HTTPServer) RegisterRoutes(r gin.IRouter) {
	r.GET("/vehicles/:searchIdentifier/tech-records", s.getTechRecords)
	r.POST("/vehicles", s.createVehicle)
	r.PUT("/vehicles/:searchIdentifier/tech-records", s.updateTechRecords)
}

// getTechRecords GET /vehicles/:searchIdentifier/tech-records
// status 缺省为 provisional_over_current（大小写不敏感），
// searchCriteria 缺省为 all。单命中返回对象，多命中返回数组。
func (s *HTTPServer) getTechRecords(c *gin.Context) {
	f, err := ParseStatusFilter(c.Query("status"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	criteria, err := ParseSearchCriteria(c.Query("searchCriteria"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	vehicles, err := s.svc.GetBySearch(c.Request.Context(), c.Param("searchIdentifier"), criteria, f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if len(vehicles) == 1 {
		c.JSON(http.StatusOK, vehicles[0])
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

// createVehicle POST /vehicles
func (s *HTTPServer) createVehicle(c *gin.Context) {
	var payload VehiclePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}

	v, err := s.svc.Create(c.Request.Context(), &payload, s.auditUser(c, payload.MsUserDetails))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// updateTechRecords PUT /vehicles/:searchIdentifier/tech-records
// path 参数是 systemNumber；归档旧快照并追加新的 provisional。
func (s *HTTPServer) updateTechRecords(c *gin.Context) {
	var payload UpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}

	v, err := s.svc.Update(c.Request.Context(), c.Param("searchIdentifier"), &payload, s.auditUser(c, payload.MsUserDetails))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// auditUser 审计身份：优先 JWT claims，鉴权关闭时用载荷里的 msUserDetails。
func (s *HTTPServer) auditUser(c *gin.Context, ms *MsUserDetails) AuditUser {
	if ai, ok := server.AuthFromContext(c); ok {
		name := ai.Name
		if name == "" {
			name = ai.Subject
		}
		return AuditUser{Name: name, ID: ai.Subject}
	}
	if ms != nil {
		return AuditUser{Name: strings.TrimSpace(ms.MsUser), ID: strings.TrimSpace(ms.MsOid)}
	}
	return AuditUser{}
}

// writeError 错误分层出站：404 空响应体、400 带原因、其余一律 500 不泄内部结构。
func (s *HTTPServer) writeError(c *gin.Context, err error) {
	var badReq *BadRequestError
	switch {
	case errors.Is(err, ErrNotFound):
		c.Status(http.StatusNotFound)
	case errors.As(err, &badReq):
		c.JSON(http.StatusBadRequest, gin.H{"error": badReq.Msg})
	default:
		if s.log != nil {
			s.log.WithFields(map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			}).Error("tech records request failed")
		}
		c.Status(http.StatusInternalServerError)
	}
}

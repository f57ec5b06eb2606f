package daemon

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/iris/pkg/store"
	"github.com/charlie0129/iris/pkg/types"
	"github.com/charlie0129/iris/pkg/version"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, store.ErrExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorKind classifies err for clients.
func errorKind(err error) string {
	switch {
	case errors.Is(err, store.ErrNoCalibration):
		return types.ErrorKindNoCalibration
	case errors.Is(err, store.ErrNotFound):
		return types.ErrorKindNotFound
	case errors.Is(err, store.ErrReadOnly):
		return types.ErrorKindReadOnly
	case errors.Is(err, store.ErrExists):
		return types.ErrorKindExists
	default:
		return ""
	}
}

func abort(c *gin.Context, code int, err error) {
	if kind := errorKind(err); kind != "" {
		c.Header(types.ErrorKindHeader, kind)
	}
	c.IndentedJSON(code, err.Error())
	_ = c.AbortWithError(code, err)
}

func abortStore(c *gin.Context, err error) {
	abort(c, statusFor(err), err)
}

func (s *Server) listMonitors(c *gin.Context) {
	cat := s.catalog()
	ids, err := cat.Data.ListMonitors()
	if err != nil {
		abortStore(c, err)
		return
	}

	monitors := make([]store.Monitor, 0, len(ids))
	for _, id := range ids {
		m, err := cat.LoadMonitor(id)
		if err != nil {
			logrus.WithError(err).WithField("monitor", id).Warn("skipping unreadable monitor")
			continue
		}
		monitors = append(monitors, m)
	}
	c.IndentedJSON(http.StatusOK, monitors)
}

func (s *Server) getMonitor(c *gin.Context) {
	m, err := s.catalog().LoadMonitor(c.Param("id"))
	if err != nil {
		abortStore(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, m)
}

func (s *Server) listSettings(c *gin.Context) {
	cat := s.catalog()
	m, err := cat.LoadMonitor(c.Param("id"))
	if err != nil {
		abortStore(c, err)
		return
	}
	ids, err := cat.Data.ListSettings(m)
	if err != nil {
		abortStore(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, ids)
}

func (s *Server) listRGB2LMS(c *gin.Context) {
	ids, err := s.catalog().Data.ListRGB2LMS(c.Param("id"))
	if err != nil {
		abortStore(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, ids)
}

func (s *Server) getDefaultMonitor(c *gin.Context) {
	cat := s.catalog()
	id, err := cat.DefaultMonitor()
	if err != nil {
		abortStore(c, err)
		return
	}
	m, err := cat.LoadMonitor(id)
	if err != nil {
		abortStore(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, m)
}

func (s *Server) setDefaultMonitor(c *gin.Context) {
	var id string
	if err := c.BindJSON(&id); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	if err := s.catalog().Data.SetDefaultMonitor(id); err != nil {
		abortStore(c, err)
		return
	}

	logrus.Infof("default monitor set to %s", id)
	c.IndentedJSON(http.StatusCreated, id)
}

func (s *Server) makeDisplay(c *gin.Context) {
	var req types.DisplayRequest
	if err := c.BindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	logField(c, "gfx", req.Gfx)
	if req.Monitor != "" {
		logField(c, "monitor", req.Monitor)
	}
	d, err := s.catalog().MakeDisplay(req.Monitor, req.Mode, req.Gfx)
	if err != nil {
		abortStore(c, err)
		return
	}
	logDisplay(c, d)
	c.IndentedJSON(http.StatusOK, d)
}

func (s *Server) lookupRGB2LMS(c *gin.Context) {
	var d store.Display
	if err := c.BindJSON(&d); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	logDisplay(c, d)
	t, err := s.catalog().Data.LoadRGB2LMS(d)
	if err != nil {
		abortStore(c, err)
		return
	}
	logField(c, "transform", t.ID)
	c.IndentedJSON(http.StatusOK, t)
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

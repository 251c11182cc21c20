package server

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"birdcatalog/internal/models"
	"birdcatalog/internal/storage"
)

//go:embed views/*.html
var viewsFS embed.FS

//go:embed static
var staticFS embed.FS

var templateFuncs = template.FuncMap{
	// selected reports whether a status option matches the submitted value.
	"selected": func(id int64, value string) bool {
		return strconv.FormatInt(id, 10) == value
	},
	"measure": func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
}

func parseViews() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(viewsFS, "views/*.html")
}

func (s *Server) renderCreateForm(c *gin.Context, code int, form birdForm, problems []string) {
	const op = "server.renderCreateForm"

	statuses, err := s.catalog.ListStatuses(c.Request.Context())
	if err != nil {
		s.renderError(c, fmt.Errorf("%s: %w", op, err))
		return
	}
	c.HTML(code, "create-bird", gin.H{
		"title":  "Create Bird",
		"form":   form,
		"status": statuses,
		"errors": problems,
	})
}

func (s *Server) renderUpdateForm(c *gin.Context, code int, id int64, form birdForm, problems []string) {
	const op = "server.renderUpdateForm"
	ctx := c.Request.Context()

	statuses, err := s.catalog.ListStatuses(ctx)
	if err != nil {
		s.renderError(c, fmt.Errorf("%s: %w", op, err))
		return
	}
	bird, err := s.catalog.GetBird(ctx, id)
	if err != nil {
		s.renderError(c, fmt.Errorf("%s: %w", op, err))
		return
	}
	c.HTML(code, "update-bird", gin.H{
		"title":  "Update Bird",
		"bird":   bird,
		"form":   form,
		"status": statuses,
		"errors": problems,
	})
}

func (s *Server) renderNotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "404-page", gin.H{
		"title":  "404 Page Not Found",
		"status": []models.ConservationStatus{},
	})
}

func (s *Server) renderMessage(c *gin.Context, code int, title, message string) {
	c.HTML(code, "error-page", gin.H{
		"title":   title,
		"message": message,
		"status":  []models.ConservationStatus{},
	})
}

// renderError answers a failed request: missing birds get the not-found
// page, everything else is logged and gets a 500 page.
func (s *Server) renderError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.renderNotFound(c)
		return
	}
	_ = c.Error(err)
	s.log.Error("request failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString(requestIDKey)))
	s.renderMessage(c, http.StatusInternalServerError, "Something went wrong",
		"The catalog could not complete your request. Please try again later.")
}

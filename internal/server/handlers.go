package server

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"birdcatalog/internal/events"
	"birdcatalog/internal/models"
	"birdcatalog/internal/photos"
	"birdcatalog/internal/storage"
)

const listPath = "/birds"

func (s *Server) handleHome(c *gin.Context) {
	c.Redirect(http.StatusFound, listPath)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.catalog.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListBirds(c *gin.Context) {
	const op = "server.handleListBirds"
	ctx := c.Request.Context()

	statuses, err := s.catalog.ListStatuses(ctx)
	if err != nil {
		s.renderError(c, fmt.Errorf("%s: %w", op, err))
		return
	}
	birds, err := s.catalog.ListBirds(ctx)
	if err != nil {
		s.renderError(c, fmt.Errorf("%s: %w", op, err))
		return
	}

	c.HTML(http.StatusOK, "index", gin.H{
		"title":  "Birds of Aotearoa",
		"birds":  birds,
		"status": statuses,
	})
}

func (s *Server) handleCreateForm(c *gin.Context) {
	s.renderCreateForm(c, http.StatusOK, birdForm{}, nil)
}

func (s *Server) handleViewBird(c *gin.Context) {
	bird, statuses, ok := s.loadBird(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "view-bird", gin.H{
		"title":  bird.PrimaryName,
		"bird":   bird,
		"status": statuses,
	})
}

func (s *Server) handleUpdateForm(c *gin.Context) {
	bird, statuses, ok := s.loadBird(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "update-bird", gin.H{
		"title":  "Update Bird",
		"bird":   bird,
		"form":   formFromBird(bird),
		"status": statuses,
	})
}

// loadBird fetches the bird named by the :id parameter and the status list.
// It writes the response itself and returns false on failure.
func (s *Server) loadBird(c *gin.Context) (models.BirdDetail, []models.ConservationStatus, bool) {
	const op = "server.loadBird"
	ctx := c.Request.Context()

	id, ok := parseBirdID(c.Param("id"))
	if !ok {
		s.renderNotFound(c)
		return models.BirdDetail{}, nil, false
	}

	statuses, err := s.catalog.ListStatuses(ctx)
	if err != nil {
		s.renderError(c, fmt.Errorf("%s: %w", op, err))
		return models.BirdDetail{}, nil, false
	}
	bird, err := s.catalog.GetBird(ctx, id)
	if err != nil {
		s.renderError(c, fmt.Errorf("%s: %w", op, err))
		return models.BirdDetail{}, nil, false
	}
	return bird, statuses, true
}

func (s *Server) handleDeleteBird(c *gin.Context) {
	const op = "server.handleDeleteBird"
	ctx := c.Request.Context()

	id, ok := parseBirdID(c.Param("id"))
	if !ok {
		s.renderNotFound(c)
		return
	}

	removed, err := s.catalog.DeleteBird(ctx, id)
	if err != nil {
		s.renderError(c, fmt.Errorf("%s: %w", op, err))
		return
	}

	evs := []events.Event{events.New(events.BirdDeleted, id, "")}
	for _, name := range removed {
		evs = append(evs, events.New(events.PhotoDiscarded, id, name))
	}
	s.publish(ctx, evs...)

	s.log.Info("bird deleted", zap.Int64("bird_id", id), zap.Strings("photos", removed))
	c.Redirect(http.StatusFound, listPath)
}

func (s *Server) handleCreateBird(c *gin.Context) {
	const op = "server.handleCreateBird"
	ctx := c.Request.Context()

	var form birdForm
	in, problems := form.parse(c)
	fh := formFile(c)
	if fh == nil {
		problems = append(problems, "photo: "+photos.ErrMissingFile.Error())
	}
	if len(problems) > 0 {
		s.renderCreateForm(c, http.StatusBadRequest, form, problems)
		return
	}

	filename, err := s.savePhoto(fh)
	if err != nil {
		if problem, rejected := uploadProblem(err); rejected {
			s.renderCreateForm(c, http.StatusBadRequest, form, []string{problem})
			return
		}
		s.renderError(c, fmt.Errorf("%s: %w", op, err))
		return
	}

	id, err := s.catalog.CreateBird(ctx, in, models.Photo{Filename: filename, Photographer: form.Photographer})
	if err != nil {
		s.discardPhoto(filename)
		if errors.Is(err, storage.ErrUnknownStatus) {
			s.renderCreateForm(c, http.StatusBadRequest, form, []string{"status: " + storage.ErrUnknownStatus.Error()})
			return
		}
		s.renderError(c, fmt.Errorf("%s: %w", op, err))
		return
	}

	s.publish(ctx, events.New(events.BirdCreated, id, filename))
	s.log.Info("bird created", zap.Int64("bird_id", id), zap.String("filename", filename))
	c.Redirect(http.StatusFound, listPath)
}

func (s *Server) handleEditBird(c *gin.Context) {
	const op = "server.handleEditBird"
	ctx := c.Request.Context()

	var form birdForm
	in, problems := form.parse(c)
	id, ok := parseBirdID(form.BirdID)
	if !ok {
		s.renderMessage(c, http.StatusBadRequest, "Invalid bird", "The submitted form does not name a valid bird id.")
		return
	}
	if len(problems) > 0 {
		s.renderUpdateForm(c, http.StatusBadRequest, id, form, problems)
		return
	}

	var photo *models.Photo
	if fh := formFile(c); fh != nil {
		filename, err := s.savePhoto(fh)
		if err != nil {
			if problem, rejected := uploadProblem(err); rejected {
				s.renderUpdateForm(c, http.StatusBadRequest, id, form, []string{problem})
				return
			}
			s.renderError(c, fmt.Errorf("%s: %w", op, err))
			return
		}
		photo = &models.Photo{Filename: filename, Photographer: form.Photographer, BirdID: id}
	}

	replaced, err := s.catalog.UpdateBird(ctx, id, in, photo)
	if err != nil {
		if photo != nil {
			s.discardPhoto(photo.Filename)
		}
		if errors.Is(err, storage.ErrUnknownStatus) {
			s.renderUpdateForm(c, http.StatusBadRequest, id, form, []string{"status: " + storage.ErrUnknownStatus.Error()})
			return
		}
		s.renderError(c, fmt.Errorf("%s: %w", op, err))
		return
	}

	ev := events.New(events.BirdUpdated, id, "")
	if photo != nil {
		ev.Filename = photo.Filename
	}
	evs := []events.Event{ev}
	if replaced != "" && (photo == nil || replaced != photo.Filename) {
		evs = append(evs, events.New(events.PhotoDiscarded, id, replaced))
	}
	s.publish(ctx, evs...)

	s.log.Info("bird updated", zap.Int64("bird_id", id), zap.Bool("photo_replaced", photo != nil))
	c.Redirect(http.StatusFound, listPath)
}

func (s *Server) handleNotFound(c *gin.Context) {
	s.renderNotFound(c)
}

// formFile returns the uploaded photo, or nil when none was sent.
func formFile(c *gin.Context) *multipart.FileHeader {
	fh, err := c.FormFile(photos.FieldName)
	if err != nil {
		return nil
	}
	return fh
}

func (s *Server) savePhoto(fh *multipart.FileHeader) (string, error) {
	filename, err := s.photos.Save(fh)
	switch {
	case err == nil:
		s.metrics.UploadsTotal.WithLabelValues("stored").Inc()
	case isRejectedUpload(err):
		s.metrics.UploadsTotal.WithLabelValues("rejected").Inc()
	default:
		s.metrics.UploadsTotal.WithLabelValues("error").Inc()
	}
	return filename, err
}

func isRejectedUpload(err error) bool {
	_, rejected := uploadProblem(err)
	return rejected
}

// uploadProblem converts a rejected upload into a form message.
func uploadProblem(err error) (string, bool) {
	for _, sentinel := range []error{photos.ErrMissingFile, photos.ErrTooLarge, photos.ErrUnsupportedType} {
		if errors.Is(err, sentinel) {
			return "photo: " + sentinel.Error(), true
		}
	}
	return "", false
}

package server

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"birdcatalog/internal/models"
)

// birdForm is the create/edit form as submitted. Values stay strings so a
// rejected form can be shown back to the user unchanged.
type birdForm struct {
	BirdID         string `form:"bird_id"`
	PrimaryName    string `form:"primary_name"`
	EnglishName    string `form:"english_name"`
	ScientificName string `form:"scientific_name"`
	OrderName      string `form:"order_name"`
	Family         string `form:"family"`
	Length         string `form:"length" binding:"required,numeric"`
	Weight         string `form:"weight" binding:"required,numeric"`
	Status         string `form:"status" binding:"required,number"`
	Photographer   string `form:"photograph"`
}

var fieldLabels = map[string]string{
	"Length": "length",
	"Weight": "weight",
	"Status": "status",
}

func formFromBird(b models.BirdDetail) birdForm {
	return birdForm{
		BirdID:         strconv.FormatInt(b.ID, 10),
		PrimaryName:    b.PrimaryName,
		EnglishName:    b.EnglishName,
		ScientificName: b.ScientificName,
		OrderName:      b.OrderName,
		Family:         b.Family,
		Length:         strconv.FormatFloat(b.Length, 'f', -1, 64),
		Weight:         strconv.FormatFloat(b.Weight, 'f', -1, 64),
		Status:         strconv.FormatInt(b.StatusID, 10),
		Photographer:   b.Photographer,
	}
}

// parse binds the request into f and converts it to a typed input. The
// returned messages are empty when the input is valid.
func (f *birdForm) parse(c *gin.Context) (models.BirdInput, []string) {
	if problems := f.bind(c); len(problems) > 0 {
		return models.BirdInput{}, problems
	}
	return f.input()
}

func (f *birdForm) bind(c *gin.Context) []string {
	err := c.ShouldBind(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"form: " + err.Error()}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fieldMessage(fe))
	}
	return problems
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "numeric":
		return label + " must be a number"
	case "number":
		return label + " must be a whole number"
	default:
		return fmt.Sprintf("%s is invalid (%s)", label, fe.Tag())
	}
}

func (f *birdForm) input() (models.BirdInput, []string) {
	var problems []string

	length, ok := parseMeasure(f.Length)
	if !ok {
		problems = append(problems, "length is out of range")
	}
	weight, ok := parseMeasure(f.Weight)
	if !ok {
		problems = append(problems, "weight is out of range")
	}
	// status_id is an INTEGER column
	status, err := strconv.ParseInt(f.Status, 10, 32)
	if err != nil {
		problems = append(problems, "status is out of range")
	}
	if len(problems) > 0 {
		return models.BirdInput{}, problems
	}

	return models.BirdInput{
		PrimaryName:    f.PrimaryName,
		EnglishName:    f.EnglishName,
		ScientificName: f.ScientificName,
		OrderName:      f.OrderName,
		Family:         f.Family,
		Length:         length,
		Weight:         weight,
		StatusID:       status,
	}, nil
}

func parseMeasure(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseBirdID accepts positive decimal ids only.
func parseBirdID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdcatalog/internal/models"
)

func parseForm(t *testing.T, values url.Values) (birdForm, models.BirdInput, []string) {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/birds/create", strings.NewReader(values.Encode()))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var form birdForm
	in, problems := form.parse(c)
	return form, in, problems
}

func TestParseFormValid(t *testing.T) {
	form, in, problems := parseForm(t, url.Values{
		"primary_name":    {"Kākāpō"},
		"scientific_name": {"Strigops habroptilus"},
		"length":          {"64"},
		"weight":          {"-0.5"},
		"status":          {"9"},
		"photograph":      {"Kim"},
	})

	require.Empty(t, problems)
	assert.Equal(t, models.BirdInput{
		PrimaryName:    "Kākāpō",
		ScientificName: "Strigops habroptilus",
		Length:         64,
		Weight:         -0.5,
		StatusID:       9,
	}, in)
	assert.Equal(t, "Kim", form.Photographer)
}

func TestParseFormCollectsEveryProblem(t *testing.T) {
	_, _, problems := parseForm(t, url.Values{
		"length": {"tall"},
		"status": {"endangered"},
	})

	assert.ElementsMatch(t, []string{
		"length must be a number",
		"weight is required",
		"status must be a whole number",
	}, problems)
}

func TestFormFromBird(t *testing.T) {
	bird := models.BirdDetail{Bird: models.Bird{
		ID:          7,
		PrimaryName: "Kea",
		Length:      48,
		Weight:      922.5,
		StatusID:    7,
	}, Photographer: "Ari"}

	form := formFromBird(bird)

	assert.Equal(t, "7", form.BirdID)
	assert.Equal(t, "48", form.Length)
	assert.Equal(t, "922.5", form.Weight)
	assert.Equal(t, "7", form.Status)
	assert.Equal(t, "Ari", form.Photographer)

	in, problems := form.input()
	require.Empty(t, problems)
	assert.Equal(t, 922.5, in.Weight)
}

func TestParseBirdID(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"1", 1, true},
		{"42", 42, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"1.5", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			id, ok := parseBirdID(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestParseFormStatusMustFitColumn(t *testing.T) {
	for raw, want := range map[string]bool{
		"2147483647": true,
		"2147483648": false,
		"3000000000": false,
	} {
		t.Run(raw, func(t *testing.T) {
			_, in, problems := parseForm(t, url.Values{
				"length": {"1"},
				"weight": {"1"},
				"status": {raw},
			})
			if want {
				assert.Empty(t, problems)
				assert.Equal(t, int64(2147483647), in.StatusID)
				return
			}
			assert.Equal(t, []string{"status is out of range"}, problems)
		})
	}
}

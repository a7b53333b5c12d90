package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmatch-go/internal/apperr"
	"pmatch-go/pkg/log"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

func doRespond(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		kind   apperr.Kind
		status int
	}{
		{apperr.KindEmptyInput, http.StatusBadRequest},
		{apperr.KindInvalidArgument, http.StatusBadRequest},
		{apperr.KindInvalidFilter, http.StatusBadRequest},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindNoEmbedding, http.StatusConflict},
		{apperr.KindDegenerateWeights, http.StatusUnprocessableEntity},
		{apperr.KindEmbeddingUnavailable, http.StatusServiceUnavailable},
		{apperr.KindDimensionMismatch, http.StatusInternalServerError},
		{apperr.KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w, body := doRespond(t, apperr.New(tc.kind, "boom"))
		assert.Equal(t, tc.status, w.Code, "kind=%s", tc.kind)
		assert.EqualValues(t, tc.status, body["code"])
	}
}

func TestRespondErrorFlattensDetail(t *testing.T) {
	err := apperr.New(apperr.KindInvalidFilter, "institution not found: Hogwarts").
		WithDetail("available_institutions", []string{"MIT", "Stanford University"})

	w, body := doRespond(t, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []interface{}{"MIT", "Stanford University"}, body["available_institutions"])
	assert.Contains(t, body["error"], "Hogwarts")
}

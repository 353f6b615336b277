package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"scarlet-storefront/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAs_FindsWrappedError(t *testing.T) {
	base := apperrors.Validation("quantity must be at least 1")
	wrapped := fmt.Errorf("add item: %w", base)

	got, ok := apperrors.As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, apperrors.KindValidation, got.Kind)
	assert.True(t, apperrors.IsKind(wrapped, apperrors.KindValidation))
	assert.False(t, apperrors.IsKind(wrapped, apperrors.KindNetwork))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", apperrors.Message(nil))
	assert.Equal(t, "Out of stock", apperrors.Message(apperrors.API(http.StatusConflict, "Out of stock")))
	assert.Equal(t, "Something went wrong. Please try again.", apperrors.Message(errors.New("boom")))
}

func TestAPI_DefaultsMessageToStatusText(t *testing.T) {
	err := apperrors.API(http.StatusNotFound, "")
	assert.Equal(t, "Not Found", err.Message)
	assert.Equal(t, http.StatusNotFound, apperrors.Status(err))
}

func TestNetwork_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperrors.Network(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, http.StatusBadGateway, apperrors.Status(err))
}

func TestErrorMiddleware_RendersEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware())
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(apperrors.Validation("productId is required"))
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("db down"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"validation","message":"productId is required"}}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"internal"`)
}

package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Logf("FAIL: body %q is not an error envelope: %v", w.Body.String(), err)
	}
	return response
}

// Property: every error body is the same envelope whatever the status
func TestProperty_ErrorEnvelope(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("status, code text, message and RFC3339 timestamp", prop.ForAll(
		func(status int, message string) bool {
			w := httptest.NewRecorder()
			RespondWithError(w, status, message)

			if w.Code != status || w.Header().Get("Content-Type") != "application/json" {
				t.Logf("FAIL: status %d content type %q", w.Code, w.Header().Get("Content-Type"))
				return false
			}

			response := decodeEnvelope(t, w)
			_, err := time.Parse(time.RFC3339, response.Error.Timestamp)
			return err == nil &&
				response.Error.Code == http.StatusText(status) &&
				response.Error.Message == message &&
				response.Error.Details == nil
		},
		gen.OneConstOf(
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
		),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("details are carried through", prop.ForAll(
		func(field string, reason string) bool {
			w := httptest.NewRecorder()
			RespondWithErrorDetails(w, http.StatusConflict, "stock changed", map[string]interface{}{field: reason})

			got, ok := decodeEnvelope(t, w).Error.Details[field]
			return ok && got == reason
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: field errors are listed under details.validation_errors
func TestProperty_ValidationErrorsListed(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("one entry per failing field", prop.ForAll(
		func(fields []string) bool {
			fieldErrors := make([]ValidationError, 0, len(fields))
			for _, field := range fields {
				fieldErrors = append(fieldErrors, ValidationError{Field: field, Message: "This field is required"})
			}

			w := httptest.NewRecorder()
			RespondWithValidationErrors(w, fieldErrors)
			if w.Code != http.StatusBadRequest {
				return false
			}

			var body struct {
				Error struct {
					Message string `json:"message"`
					Details struct {
						ValidationErrors []ValidationError `json:"validation_errors"`
					} `json:"details"`
				} `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				return false
			}
			if body.Error.Message != "validation failed" || len(body.Error.Details.ValidationErrors) != len(fields) {
				t.Logf("FAIL: %s", w.Body.String())
				return false
			}
			for i, field := range fields {
				if body.Error.Details.ValidationErrors[i].Field != field {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(3, gen.OneConstOf("email", "nickname", "quantity", "base_price")),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRespondWithJSON(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithJSON(w, http.StatusCreated, map[string]int{"removed_items": 3})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"removed_items":3}`, w.Body.String())
}

// Property: every business error kind surfaces with its own status and message
func TestProperty_ServiceErrorsMapToKindStatus(t *testing.T) {
	properties := gopter.NewProperties(nil)

	expected := map[domain.ErrorKind]int{
		domain.KindValidation:     http.StatusBadRequest,
		domain.KindAuthentication: http.StatusUnauthorized,
		domain.KindAuthorization:  http.StatusForbidden,
		domain.KindNotFound:       http.StatusNotFound,
		domain.KindConflict:       http.StatusConflict,
	}

	properties.Property("wrapped domain errors keep their status", prop.ForAll(
		func(kind domain.ErrorKind, message string) bool {
			err := fmt.Errorf("outer: %w", &domain.Error{Kind: kind, Message: message})

			w := httptest.NewRecorder()
			RespondWithServiceError(w, httptest.NewRequest("GET", "/x", nil), err, zap.NewNop())

			if w.Code != expected[kind] {
				t.Logf("FAIL: kind %v gave %d", kind, w.Code)
				return false
			}

			var response ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				return false
			}
			return response.Error.Message == err.Error()
		},
		gen.OneConstOf(domain.KindValidation, domain.KindAuthentication, domain.KindAuthorization, domain.KindNotFound, domain.KindConflict),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRespondWithServiceError_HidesUnclassifiedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithServiceError(w, httptest.NewRequest("GET", "/x", nil), errors.New("pq: connection reset"), zap.NewNop())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestRespondWithServiceError_InsufficientStockIsConflict(t *testing.T) {
	err := &domain.InsufficientStockError{ProductTitle: "Hoodie", Available: 1, Requested: 3}

	w := httptest.NewRecorder()
	RespondWithServiceError(w, httptest.NewRequest("POST", "/orders/checkout", nil), err, zap.NewNop())

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Hoodie")
}

func TestErrorHandlingMiddleware_RecoversPanics(t *testing.T) {
	handler := ErrorHandlingMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "internal server error", response.Error.Message)
}

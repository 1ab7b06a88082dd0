package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/auth"
)

// maxRequestBodyBytes bounds JSON bodies. Intake forms carry base64 documents.
const maxRequestBodyBytes = 32 << 20

// ParseResourceID extracts and validates the resource ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseResourceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_id", "Invalid ID format", logger)
}

func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// requireCaller returns the organization and user from the access token.
// Writes a 401 and returns false when the claims are missing or malformed.
func requireCaller(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, string, bool) {
	orgID, userID, err := auth.ExtractClaimsFromContext(r.Context())
	if err != nil {
		logger.Debug("Missing caller identity", zap.Error(err))
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, "", false
	}
	return orgID, userID, true
}

// decodeBody decodes a JSON request body into dst. Writes a 400 and returns
// false on malformed or oversized input.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		message := "Invalid request body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = "Request body too large"
		} else if errors.Is(err, io.EOF) {
			message = "Request body is required"
		}
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", message); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}

// queryInt reads a non-negative integer query parameter, falling back to def
// when it is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// queryBool reads an optional boolean query parameter; nil means unset.
func queryBool(r *http.Request, name string) *bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

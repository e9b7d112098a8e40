package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/crucial707/a11y-monitor/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// requestWithChiURLParams builds a request carrying chi URL params, as the
// router would, so handlers can be exercised directly.
func requestWithChiURLParams(method, target string, body []byte, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// asUser attaches the auth context the JWT middleware would set.
func asUser(req *http.Request, userID int, role string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	ctx = context.WithValue(ctx, middleware.RoleKey, role)
	return req.WithContext(ctx)
}

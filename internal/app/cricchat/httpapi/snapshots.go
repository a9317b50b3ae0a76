package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"cricchat.local/gee"
	"cricchat.local/internal/platform/auth"
	"cricchat.local/internal/platform/httpmiddleware"
	"cricchat.local/internal/platform/trace"
	"cricchat.local/internal/snapshot"
	"cricchat.local/internal/view"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type CreateSnapshotRequest struct {
	Widget string          `json:"widget"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type CreateSnapshotResponse struct {
	Code   string `json:"code"`
	Widget string `json:"widget"`
	Token  string `json:"token"`
	WSURL  string `json:"ws_url"`
}

type ReplaceSnapshotRequest struct {
	Data json.RawMessage `json:"data"`
}

type RenderResponse struct {
	State string `json:"state"`
	HTML  string `json:"html"`
}

type snapshotHandlers struct {
	sessions      *snapshot.Sessions
	registry      *view.Registry
	tokens        auth.TokenService
	publicBaseURL string
}

// wsURL http(s) 换成 ws(s)
func wsURL(base, code, widget string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/" + code + "/" + widget
}

// tagWidget 给 otelhttp 的请求 span 补上 widget
func tagWidget(ctx *gee.Context, widget string) {
	oteltrace.SpanFromContext(ctx.Req.Context()).SetAttributes(attribute.String(trace.WidgetIdentifier, widget))
}

// payload 缺省的 data 视为还没有快照
func payload(raw json.RawMessage) []byte {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return raw
}

// create POST /api/v1/snapshots
func (h *snapshotHandlers) create(ctx *gee.Context) {
	var req CreateSnapshotRequest
	if err := ctx.BindJSON(&req); err != nil {
		return
	}
	widget := strings.TrimSpace(req.Widget)
	tagWidget(ctx, widget)
	if _, ok := h.registry.View(widget); !ok {
		ctx.AbortWithError(http.StatusBadRequest, "unknown widget: "+widget)
		return
	}
	sess, err := h.sessions.Create(widget, payload(req.Data))
	if err != nil {
		slog.Error("create session failed", "widget", widget, "err", err)
		ctx.AbortWithError(http.StatusInternalServerError, "create session failed")
		return
	}
	token, err := h.tokens.Sign(sess.Code, auth.RoleWriter)
	if err != nil {
		h.sessions.Remove(sess.Code)
		slog.Error("sign session token failed", "code", sess.Code, "err", err)
		ctx.AbortWithError(http.StatusInternalServerError, "sign token failed")
		return
	}
	base := httpmiddleware.PublicBaseURL(ctx.Req, h.publicBaseURL)
	slog.Info("snapshot session created", "code", sess.Code, "widget", widget)
	ctx.JSON(http.StatusCreated, CreateSnapshotResponse{
		Code:   sess.Code,
		Widget: widget,
		Token:  token,
		WSURL:  wsURL(base, sess.Code, widget),
	})
}

// replace PUT /api/v1/snapshots/:code，后写覆盖先写
func (h *snapshotHandlers) replace(ctx *gee.Context) {
	var req ReplaceSnapshotRequest
	if err := ctx.BindJSON(&req); err != nil {
		return
	}
	data := payload(req.Data)
	if data == nil {
		ctx.AbortWithError(http.StatusBadRequest, "data is required")
		return
	}
	sess, ok := h.session(ctx)
	if !ok {
		return
	}
	sess.Store.Set(data)
	ctx.JSON(http.StatusOK, map[string]any{
		"code":    sess.Code,
		"version": sess.Store.Version(),
	})
}

// render GET /api/v1/snapshots/:code/render/:widget，一次性渲染当前快照
func (h *snapshotHandlers) render(ctx *gee.Context) {
	sess, ok := h.session(ctx)
	if !ok {
		return
	}
	widget := ctx.Param("widget")
	tagWidget(ctx, widget)
	if widget != sess.Widget {
		ctx.AbortWithError(http.StatusNotFound, "widget not bound to session")
		return
	}
	root, err := h.registry.MountSession(h.sessions, sess)
	if err != nil {
		if errors.Is(err, view.ErrMountTargetMissing) || errors.Is(err, snapshot.ErrSessionNotFound) {
			ctx.AbortWithError(http.StatusNotFound, err.Error())
			return
		}
		ctx.AbortWithError(http.StatusInternalServerError, err.Error())
		return
	}
	out := root.Current()
	ctx.JSON(http.StatusOK, RenderResponse{State: out.State.String(), HTML: out.HTML})
}

func (h *snapshotHandlers) session(ctx *gee.Context) (*snapshot.Session, bool) {
	sess, err := h.sessions.Get(ctx.Param("code"))
	if err != nil {
		ctx.AbortWithError(http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"preorder/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 公開API（注文・照会・受け取り案内）
type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

// 文字列項目も数値で来ることがあるので生のまま受ける
type OrderCreateRequest struct {
	Name          json.RawMessage `json:"name"`
	Phone         json.RawMessage `json:"phone"`
	Quantity      json.RawMessage `json:"quantity"` // 数値でも文字列でも受ける
	DepositorName json.RawMessage `json:"depositorName"`
}

func (h *OrderHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/health", h.health)
	g.GET("/pickup-info", h.pickupInfo)
	g.POST("/orders", h.create)
	g.GET("/orders/lookup", h.lookup)
}

func (h *OrderHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (h *OrderHandler) pickupInfo(c echo.Context) error {
	out, err := h.uc.PickupInfo(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) create(c echo.Context) error {
	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	name, okName := rawText(req.Name)
	phone, okPhone := rawText(req.Phone)
	depositor, okDepositor := rawText(req.DepositorName)
	if !okName || !okPhone || !okDepositor {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Submit(c.Request().Context(), usecase.SubmitOrderInput{
		Name:          name,
		Phone:         phone,
		Quantity:      rawNumber(req.Quantity),
		DepositorName: depositor,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) lookup(c echo.Context) error {
	out, err := h.uc.Lookup(c.Request().Context(), usecase.LookupOrderInput{
		Phone: c.QueryParam("phone"),
		Code:  c.QueryParam("code"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// "3" と 3 を同じ文字列にする。null や未指定は空文字。
func rawNumber(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}

// 文字列項目用。数値はそのままの表記で文字列にし、
// null・false・0 は未入力扱い。オブジェクトと配列は受けない。
func rawText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", true
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", false
	}
	switch string(raw) {
	case "null", "false":
		return "", true
	case "true":
		return "true", true
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return "", false
	}
	if f == 0 {
		return "", true
	}
	return string(raw), true
}

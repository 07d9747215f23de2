package handler

import (
	"net/http"

	"preorder/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Remaining *int   `json:"remaining,omitempty"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	ue, ok := usecase.AsError(err)
	if !ok {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("unexpected error")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}

	switch ue.Kind {
	case usecase.KindValidation:
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: ue.Message})
	case usecase.KindQuotaExceeded:
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: ue.Message, Remaining: ue.Remaining})
	case usecase.KindNotFound:
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: ue.Message})
	case usecase.KindUnauthorized:
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: ue.Message})
	}

	//500（原因はログだけに出す）
	zerolog.Ctx(c.Request().Context()).Error().Err(ue.Cause()).Str("kind", ue.Kind.String()).Msg("storage failure")
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

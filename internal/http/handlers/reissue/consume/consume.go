// Package consume реализует HTTP-обработчик списания одного перевыпуска.
package consume

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/issue-quota/internal/http/middlewarectx"
	"github.com/magabrotheeeer/issue-quota/internal/http/response"
	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
)

// Handler обрабатывает запросы на списание перевыпуска.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает списание перевыпуска.
type Service interface {
	ConsumeReissue(ctx context.Context, userUID string) (bool, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Списать перевыпуск
// @Description Списывает одну единицу квоты перевыпуска активной подписки. consumed=false означает отказ.
// @Tags Reissue
// @Produce  json
// @Success 200 {object} map[string]any "Результат списания"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 503 {object} response.ErrorResponse "Хранилище или блокировка недоступны"
// @Security BearerAuth
// @Router /quota/reissue/consume [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.reissue.consume"
	userUID := middlewarectx.UserUIDFrom(r.Context())
	log := h.log.With(
		sl.Op(op),
		sl.UserUID(userUID),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	consumed, err := h.service.ConsumeReissue(r.Context(), userUID)
	if err != nil {
		log.Error("failed to consume reissue quota", sl.Err(err))
		status, resp := response.FromQuotaError(err)
		render.Status(r, status)
		render.JSON(w, r, resp)
		return
	}

	if !consumed {
		log.Info("reissue quota exhausted, consume denied")
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"consumed": consumed,
	}))
}

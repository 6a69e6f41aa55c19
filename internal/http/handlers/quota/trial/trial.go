// Package trial реализует HTTP-обработчик состояния пробного периода.
package trial

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/issue-quota/internal/http/middlewarectx"
	"github.com/magabrotheeeer/issue-quota/internal/http/response"
	"github.com/magabrotheeeer/issue-quota/internal/lib/sl"
	"github.com/magabrotheeeer/issue-quota/internal/models"
)

// Handler отдаёт состояние пробного периода.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает чтение пробного периода.
type Service interface {
	TrialStatus(ctx context.Context, userUID string) (models.TrialStatus, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Состояние пробного периода
// @Description Остаток бесплатных действий в текущем окне и момент его сброса.
// @Tags Quota
// @Produce  json
// @Success 200 {object} models.TrialStatus "Состояние пробного периода"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 503 {object} response.ErrorResponse "Хранилище недоступно"
// @Security BearerAuth
// @Router /quota/trial [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.quota.trial"
	userUID := middlewarectx.UserUIDFrom(r.Context())
	log := h.log.With(
		sl.Op(op),
		sl.UserUID(userUID),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	status, err := h.service.TrialStatus(r.Context(), userUID)
	if err != nil {
		log.Error("failed to read trial status", sl.Err(err))
		code, resp := response.FromQuotaError(err)
		render.Status(r, code)
		render.JSON(w, r, resp)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(status))
}

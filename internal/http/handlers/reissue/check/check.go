// Package check реализует HTTP-обработчик проверки квоты перевыпуска.
package check

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

// Handler отдаёт остаток квоты перевыпуска.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает проверку квоты перевыпуска.
type Service interface {
	CheckReissue(ctx context.Context, userUID string) (models.ReissueInfo, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Проверить квоту перевыпуска
// @Description Остаток перевыпусков по активной подписке. Без подписки все значения нулевые.
// @Tags Reissue
// @Produce  json
// @Success 200 {object} models.ReissueInfo "Состояние квоты перевыпуска"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 503 {object} response.ErrorResponse "Хранилище недоступно"
// @Security BearerAuth
// @Router /quota/reissue [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.reissue.check"
	userUID := middlewarectx.UserUIDFrom(r.Context())
	log := h.log.With(
		sl.Op(op),
		sl.UserUID(userUID),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	info, err := h.service.CheckReissue(r.Context(), userUID)
	if err != nil {
		log.Error("failed to check reissue quota", sl.Err(err))
		status, resp := response.FromQuotaError(err)
		render.Status(r, status)
		render.JSON(w, r, resp)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(info))
}

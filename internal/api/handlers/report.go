// report.go — обработчик выгрузки xlsx-отчёта.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/thientangreen/mirror-module/internal/api/errors"
	"github.com/thientangreen/mirror-module/internal/service"
)

// GetReport обрабатывает GET /api/v1/report — выгрузка xlsx-отчёта
// по отфильтрованному набору деревьев. Принимает те же критерии,
// что и галерея. Ошибка формирования публикуется уведомлением.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	buf, filename, err := h.views.Report(criteriaFromQuery(r), time.Now())
	if err != nil {
		h.logger.Error("Ошибка формирования отчёта", slog.String("error", err.Error()))
		h.notices.Publish(service.NoticeError, "Không thể tạo báo cáo thống kê")
		apierrors.InternalError(w, "Не удалось сформировать отчёт")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

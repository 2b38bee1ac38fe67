// schedule.go — обработчики /api/v1/schedule endpoints.
package handlers

import (
	"net/http"
	"strconv"

	apierrors "github.com/arturkryukov/upkeep/maintenance-module/internal/api/errors"
)

// Горизонт upcoming по умолчанию в днях.
const defaultUpcomingDays = 7

// upcomingResponse — ответ запроса предстоящих работ.
type upcomingResponse struct {
	Days  int              `json:"days"`
	Items []recordResponse `json:"items"`
}

// UpcomingRecords — GET /api/v1/schedule/upcoming?days=N.
// Незавершённые записи с плановым временем в ближайшие N дней,
// по возрастанию планового времени.
func (h *APIHandler) UpcomingRecords(w http.ResponseWriter, r *http.Request) {
	days := defaultUpcomingDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			apierrors.ValidationError(w, "Параметр days должен быть целым числом")
			return
		}
		days = n
	}

	recs, err := h.schedule.Upcoming(r.Context(), days)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения предстоящих работ")
		return
	}

	items := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		items = append(items, mapRecord(rec))
	}

	writeJSON(w, http.StatusOK, upcomingResponse{
		Days:  days,
		Items: items,
	})
}

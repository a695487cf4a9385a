// stats.go — обработчики статистических представлений зеркала.
// Все представления считаются по снимку зеркала и кэшируются
// до его изменения; критерии фильтрации — те же, что у галереи.
package handlers

import "net/http"

// StatusStats обрабатывает GET /api/v1/stats/status —
// распределение деревьев по статусам с процентами.
func (h *Handler) StatusStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.views.StatusStats(criteriaFromQuery(r)))
}

// YearlyStats обрабатывает GET /api/v1/stats/yearly —
// агрегаты по годам посадки (без погибших в итогах).
func (h *Handler) YearlyStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.views.YearlyStats(criteriaFromQuery(r)))
}

// FactoryStats обрабатывает GET /api/v1/stats/factories —
// статистика деревьев по питомникам.
func (h *Handler) FactoryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.views.FactoryStats(criteriaFromQuery(r)))
}

// LocationStats обрабатывает GET /api/v1/stats/locations —
// питомники, сгруппированные по локациям.
func (h *Handler) LocationStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.views.LocationSummary())
}

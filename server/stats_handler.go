package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"SpotiTrace/logger"
	"SpotiTrace/repository"
)

// StatsHandler 处理所有统计类API请求，只读，不触发流水线
type StatsHandler struct {
	events  repository.EventRepository
	songs   repository.SongRepository
	artists repository.ArtistRepository
}

// NewStatsHandler 创建新的统计处理器
func NewStatsHandler(events repository.EventRepository, songs repository.SongRepository,
	artists repository.ArtistRepository) *StatsHandler {
	return &StatsHandler{
		events:  events,
		songs:   songs,
		artists: artists,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("[respondJSON] 响应编码失败", logger.ErrorField(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// queryLimit 解析limit查询参数，越界时取默认值
func queryLimit(r *http.Request, fallback, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > max {
		return fallback
	}
	return limit
}

// OverviewHandler 返回三个集合的总量与累计收听时长
func (h *StatsHandler) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventCount, err := h.events.TotalCount(ctx)
	if err != nil {
		logger.Error("[OverviewHandler] 事件计数失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to count events")
		return
	}
	minutes, err := h.events.TotalMinutes(ctx)
	if err != nil {
		logger.Error("[OverviewHandler] 收听时长统计失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to sum listening time")
		return
	}
	songCount, err := h.songs.TotalCount(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count songs")
		return
	}
	artistCount, err := h.artists.TotalCount(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count artists")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events":          eventCount,
		"songs":           songCount,
		"artists":         artistCount,
		"minutesListened": minutes,
		"hoursListened":   minutes / 60.0,
	})
}

// LanguagesHandler 返回歌曲目录的语言分布
func (h *StatsHandler) LanguagesHandler(w http.ResponseWriter, r *http.Request) {
	dist, err := h.songs.LanguageDistribution(r.Context())
	if err != nil {
		logger.Error("[LanguagesHandler] 语言分布统计失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to aggregate languages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"languages": dist})
}

// TopArtistsHandler 按粉丝数返回头部艺术家
func (h *StatsHandler) TopArtistsHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20, 100)

	artists, err := h.artists.TopByFollowers(r.Context(), limit)
	if err != nil {
		logger.Error("[TopArtistsHandler] 头部艺术家查询失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to query artists")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"artists": artists})
}

// RecentHandler 返回最近的播放事件
func (h *StatsHandler) RecentHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 200)

	events, err := h.events.RecentEvents(r.Context(), limit)
	if err != nil {
		logger.Error("[RecentHandler] 最近事件查询失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to query events")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

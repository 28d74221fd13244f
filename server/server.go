package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SpotiTrace/config"
	"SpotiTrace/logger"

	"github.com/gorilla/mux"
)

// NewRouter 注册统计API的全部路由
func NewRouter(stats *StatsHandler) *mux.Router {
	router := mux.NewRouter()

	// CORS中间件，仪表盘前端跨域访问
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 统计类API端点
	router.HandleFunc("/api/stats/overview", stats.OverviewHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/stats/languages", stats.LanguagesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/stats/artists/top", stats.TopArtistsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/stats/recent", stats.RecentHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	return router
}

// Start 启动统计HTTP服务并阻塞至收到退出信号
func Start(cfg *config.Config, stats *StatsHandler) error {
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      NewRouter(stats),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Start] 统计服务已启动", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("[Start] 收到退出信号，开始优雅关闭", logger.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

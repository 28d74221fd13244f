package pipeline

import (
	"context"
	"time"

	"SpotiTrace/config"
	"SpotiTrace/core/lang"
	"SpotiTrace/logger"
	"SpotiTrace/model"
	"SpotiTrace/repository"

	"github.com/google/uuid"
)

// RunSummary 汇总一次完整流水线运行的结果
type RunSummary struct {
	RunID          string                  `json:"runId"`
	StartedAt      time.Time               `json:"startedAt"`
	Duration       time.Duration           `json:"duration"`
	EventsInserted int                     `json:"eventsInserted"`
	ShortCircuited bool                    `json:"shortCircuited"`
	SongsAdded     int                     `json:"songsAdded"`
	ArtistsAdded   int                     `json:"artistsAdded"`
	Enrichment     EnrichStats             `json:"enrichment"`
	Report         *model.ValidationReport `json:"report,omitempty"`
}

// Pipeline 按固定顺序编排四个阶段：拉取 → 对账 → 富化 → 校验。
// 第一阶段零新增时直接短路，后续阶段没有新数据可处理。
type Pipeline struct {
	ingestor   *Ingestor
	reconciler *Reconciler
	classifier *Classifier
	validator  *Validator
}

// New wires the four stages against the given sources and repositories.
func New(src SpotifySource, lyrics LyricsSource, statistical lang.Statistical,
	events repository.EventRepository, songs repository.SongRepository,
	artists repository.ArtistRepository, cfg *config.Config) *Pipeline {
	detector := lang.NewDetector(statistical, cfg.ConfidenceThreshold, cfg.MinLyricsLength)
	return &Pipeline{
		ingestor:   NewIngestor(src, events, cfg),
		reconciler: NewReconciler(src, events, songs, artists, cfg),
		classifier: NewClassifier(songs, artists, lyrics, detector, cfg),
		validator:  NewValidator(events, songs, artists),
	}
}

// Ingestor returns the fetch stage for standalone runs.
func (p *Pipeline) Ingestor() *Ingestor { return p.ingestor }

// Reconciler returns the catalog reconciliation stage for standalone runs.
func (p *Pipeline) Reconciler() *Reconciler { return p.reconciler }

// Classifier returns the enrichment stage for standalone runs.
func (p *Pipeline) Classifier() *Classifier { return p.classifier }

// Validator returns the consistency check stage for standalone runs.
func (p *Pipeline) Validator() *Validator { return p.validator }

// Run 执行一次完整流水线运行
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		summary.Duration = time.Since(summary.StartedAt)
	}()

	logger.Section("STAGE 1/4 · 拉取最近播放")
	inserted, err := p.ingestor.FetchNewEvents(ctx, summary.RunID)
	if err != nil {
		return summary, err
	}
	summary.EventsInserted = inserted

	if inserted == 0 {
		// 零新增直接短路，目录与富化状态不会因本轮而变化
		summary.ShortCircuited = true
		logger.Info("[Run] 无新事件，流水线短路",
			logger.String("runId", summary.RunID))
		return summary, nil
	}

	logger.Section("STAGE 2/4 · 目录对账")
	songsAdded, artistsAdded, err := p.reconciler.Reconcile(ctx)
	if err != nil {
		return summary, err
	}
	summary.SongsAdded = songsAdded
	summary.ArtistsAdded = artistsAdded

	logger.Section("STAGE 3/4 · 语言富化")
	stats, err := p.classifier.EnrichPending(ctx)
	if err != nil {
		return summary, err
	}
	summary.Enrichment = stats

	logger.Section("STAGE 4/4 · 一致性校验")
	report, err := p.validator.Validate(ctx)
	if err != nil {
		return summary, err
	}
	summary.Report = report

	logger.Section("流水线运行结束")
	logger.Info("[Run] 运行汇总",
		logger.String("runId", summary.RunID),
		logger.Int("eventsInserted", summary.EventsInserted),
		logger.Int("songsAdded", summary.SongsAdded),
		logger.Int("artistsAdded", summary.ArtistsAdded),
		logger.Int("enriched", stats.Processed),
		logger.Int("issues", len(report.Issues)),
		logger.Duration("duration", time.Since(summary.StartedAt)))
	return summary, nil
}

package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "拉取最近播放记录",
	Long:  `只执行拉取阶段：从Spotify获取最近播放记录，过滤已入库的事件后写入流播历史。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		inserted, err := a.pipeline.Ingestor().FetchNewEvents(context.Background(), uuid.NewString())
		if err != nil {
			return err
		}
		fmt.Printf("新增事件 %d。\n", inserted)
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "对账主档目录",
	Long:  `只执行对账阶段：比对最近事件与歌曲、艺术家主档，为缺失的条目补建记录。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		songs, artists, err := a.pipeline.Reconciler().Reconcile(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("新增歌曲 %d，新增艺术家 %d。\n", songs, artists)
		return nil
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "富化未处理的歌曲",
	Long:  `只执行富化阶段：对未处理的歌曲做soundtrack判定、歌词检索与语言分类。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := a.pipeline.Classifier().EnrichPending(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("富化 %d 首，其中有歌词 %d，soundtrack %d，艺术家回填 %d。\n",
			stats.Processed, stats.LyricsFound, stats.Soundtracks, stats.ArtistsFilled)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "执行一致性校验",
	Long:  `只执行校验阶段：检查三个集合的完整性并自动修复soundtrack语言哨兵。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := a.pipeline.Validator().Validate(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("发现问题 %d 类，自动修复 %d 条。\n", len(report.Issues), report.FixesApplied)
		for _, issue := range report.Issues {
			fmt.Printf("  [%s] %s (count=%d)\n", issue.Category, issue.Description, issue.Count)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(validateCmd)
}

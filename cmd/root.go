package cmd

import (
	"context"
	"fmt"
	"os"

	"SpotiTrace/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "spotitrace",
	Short: "SpotiTrace is a Spotify listening history pipeline.",
	Long: `SpotiTrace拉取Spotify最近播放记录，对账歌曲与艺术家主档目录，
执行歌词检索与语言分类富化，并对数据做一致性校验。
不带子命令时执行一次完整的流水线运行。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		summary, err := a.pipeline.Run(context.Background())
		if err != nil {
			logger.Error("[root] 流水线运行失败", logger.ErrorField(err))
			return err
		}

		if summary.ShortCircuited {
			fmt.Println("没有新的播放记录，本轮无事可做。")
		} else {
			fmt.Printf("运行完成：新增事件 %d，新增歌曲 %d，新增艺术家 %d，富化 %d。\n",
				summary.EventsInserted, summary.SongsAdded,
				summary.ArtistsAdded, summary.Enrichment.Processed)
		}
		return nil
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

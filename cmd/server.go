package cmd

import (
	"SpotiTrace/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动统计服务",
	Long:  `启动只读的统计HTTP服务，为仪表盘提供总量、语言分布、头部艺术家与最近事件数据。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := bootstrap()
		if err != nil {
			return err
		}
		defer cleanup()

		return server.Start(a.cfg, a.stats)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

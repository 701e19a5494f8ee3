package cmd

import (
	"RezoFM/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动RezoFM服务器",
	Long:  `启动RezoFM音乐流媒体系统的HTTP服务器，提供播放授权、广告门控和在线听众统计等API服务`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

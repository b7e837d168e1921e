package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateText string
	simulateFail bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次告警投递（不触达交易所）",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateText == "" {
			return errors.New("--text 不能为空")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateText, simulateFail)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateText, "text", "", "原始告警文本，如 \"secret: s; symbol: BTC-USD; action: buy; amount: 10\"")
	simulateCmd.Flags().BoolVar(&simulateFail, "fail", false, "模拟交易所故障应答")
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lb-peak-collector/pkg/config"
	"github.com/lb-peak-collector/pkg/logger"
	"github.com/lb-peak-collector/pkg/registers"
	"github.com/lb-peak-collector/pkg/server"
	"github.com/lb-peak-collector/pkg/signal"
	"github.com/lb-peak-collector/pkg/sink"
	"github.com/lb-peak-collector/pkg/util"
)

const projectName = "lb-peak-collector"

var (
	cfgFile   string
	GlobalCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   projectName,
	Short: "Collect NSX-T load balancer throughput totals and per virtual server peaks",
	Long: `Polls the NSX-T policy API every interval, appends the summed cps/l4_bytes/tps/rps/ssl_bytes
of all virtual servers to a CSV file, and rewrites a per virtual server peak report after every sample.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		GlobalCfg, err = config.LoadConfigWithCli(cmd)
		if err != nil {
			// 统一输出错误到 stderr，不返回给 cobra
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "请检查配置文件路径或使用 -c 参数指定\n")
			os.Exit(1)
		}
		if err := run(cmd.Context(), GlobalCfg); err != nil {
			fmt.Fprintf(os.Stderr, "采集失败: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "配置文件路径（为空则只读取 flag 与环境变量）")
	// 注册分组 flag
	initServerFlags(rootCmd)
	initAPIFlags(rootCmd)
	initMonitorFlags(rootCmd)
	initOutputFlags(rootCmd)
	initLogFlags(rootCmd)
}

func run(ctx context.Context, cfg *config.Config) error {
	if _, err := logger.InitLogger(&cfg.Log); err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer logger.Sync()
	logger.SetDefaultCollector(projectName)

	rt, err := registers.InitAgent(cfg)
	if err != nil {
		return err
	}

	util.PrintBanner(os.Stdout, "lb-stats", "ColorCyan", sink.StartMessage(rt.Meta))
	logger.Info("configuration loaded",
		zap.String("run_id", rt.Meta.RunID),
		zap.String("api", cfg.API.URL),
		zap.Bool("insecure_skip_verify", cfg.API.InsecureSkipVerify),
		zap.Int("rounds", rt.Meta.Rounds),
		zap.Duration("interval", rt.Meta.Interval),
		zap.String("output_dir", cfg.Output.Dir))
	if cfg.API.InsecureSkipVerify {
		logger.Warn("TLS certificate verification is disabled for the NSX API")
	}

	if cfg.Server.Enable {
		httpServer := server.NewHTTPServer(&cfg.Server, rt.Metrics, rt.Registry, rt.Meta)
		if err := httpServer.Start(); err != nil {
			return fmt.Errorf("start HTTP server failed: %w", err)
		}
		defer func() {
			if err := httpServer.Shutdown(); err != nil {
				logger.Warn("shutdown HTTP server failed", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.ShutdownContext(ctx)
	defer stop()

	err = rt.Agent.Run(ctx)
	if errors.Is(err, context.Canceled) {
		// 中断前完成的轮次已落盘
		logger.Info("collection interrupted", zap.Int("virtual_servers", rt.Registry.Len()))
		return nil
	}
	return err
}

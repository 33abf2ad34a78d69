package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"unleash/pkg/app"
	"unleash/pkg/config"
	"unleash/pkg/logging"
	"unleash/pkg/lookup"
	"unleash/pkg/refs"
	"unleash/pkg/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	UL *app.App
)

var (
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
	hashColor = color.New(color.FgCyan)
)

var rootCmd = &cobra.Command{
	Use:           "unleash",
	Short:         "Unleash: author git commits without a working directory",
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log, err := logging.NewLogger(viper.GetString("log.level"))
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}

		UL, err = app.NewApp(cmd.Context(), log)
		if err != nil {
			return fmt.Errorf("failed to initialize unleash: %w", err)
		}
		if used := config.Used(); used != "" {
			log.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if UL == nil {
			return nil
		}
		_ = UL.Log.Sync()
		return UL.Close()
	},
}

// Execute 是入口
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		errColor.Fprintf(os.Stderr, "❌ %v\n", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.unleash/config.yaml)")

	// 这些参数同时可以写在 yaml 里，或通过 UNLEASH_* 环境变量设置
	rootCmd.PersistentFlags().String("storage-path", "", "directory (or badger db) holding objects")
	rootCmd.PersistentFlags().String("storage-type", "", "object backend: disk, badger, s3, memory")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	bindFlag("storage.path", "storage-path")
	bindFlag("storage.type", "storage-type")
	bindFlag("log.level", "log-level")
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		fmt.Println("Failed to bind flag:", err)
		os.Exit(1)
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
}

func requireApp() error {
	if UL == nil {
		return fmt.Errorf("application not initialized")
	}
	return nil
}

// resolveCommit 把名称解析为唯一的 commit (附注标签会被剥离)
func resolveCommit(ctx context.Context, name string) (types.Hash, error) {
	rr, err := refs.Resolve(ctx, UL.Store, UL.Refs.Store(), name)
	if err != nil {
		return "", err
	}
	h, err := rr.Commit(ctx)
	if err != nil {
		var amb *refs.AmbiguousError
		if errors.As(err, &amb) {
			return "", fmt.Errorf("ambiguous commit-ish %q (%d candidates, see 'unleash resolve %s')", name, len(amb.Candidates), name)
		}
		return "", fmt.Errorf("could not resolve %q: %w", name, err)
	}
	return h, nil
}

func newChain() *lookup.Chain {
	return lookup.NewChain(UL.Store, UL.CacheSize)
}

// identity 返回 "Name <email>"，优先使用命令行给出的值
func identity(override string) string {
	if override != "" {
		return override
	}
	return fmt.Sprintf("%s <%s>", viper.GetString("user.name"), viper.GetString("user.email"))
}

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/rangeget/internal/output"
	"github.com/tanq16/rangeget/internal/scheduler"
	"github.com/tanq16/rangeget/internal/utils"
)

var (
	timeout     time.Duration
	userAgent   string
	headers     []string
	rateLimit   int64
	debug       bool
	cleanOutput bool
)

var RangegetVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "rangeget URL_LIST WORKERS DOWNLOAD_DIR",
	Short:   "rangeget downloads every URL in a list as parallel byte-range chunks",
	Version: RangegetVersion,
	Args: func(cmd *cobra.Command, args []string) error {
		if cleanOutput {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		if cleanOutput {
			removed, err := utils.Clean(args[0])
			if err != nil {
				output.PrintError(fmt.Sprintf("Error cleaning up chunk files: %v", err))
				os.Exit(1)
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d chunk files", removed))
			return
		}
		os.Exit(runDownload(args[0], args[1], args[2]))
	},
}

func runDownload(urlListFile, workerArg, downloadDir string) int {
	workers, err := strconv.Atoi(workerArg)
	if err != nil || workers < 1 {
		output.PrintError(fmt.Sprintf("Invalid worker count %q: %v", workerArg, utils.ErrInvalidWorkers))
		return 1
	}
	if err := os.MkdirAll(downloadDir, 0700); err != nil {
		output.PrintError(fmt.Sprintf("Error creating download directory: %v", err))
		return 1
	}
	entries, err := utils.ReadDownloadList(urlListFile)
	if err != nil {
		output.PrintError(fmt.Sprintf("Failed to read URL list: %v", err))
		return 1
	}
	if len(entries) == 0 {
		output.PrintWarning("URL list is empty, nothing to download")
		return 0
	}

	out := output.NewManager()
	if !debug && output.IsTerminal() {
		// keep log lines from tearing the live display
		logFile, err := openLogFile()
		if err == nil {
			defer logFile.Close()
			utils.SetLogOutput(logFile)
		}
		out.StartDisplay()
	}

	cfg := utils.DownloadConfig{
		Dir:     downloadDir,
		Workers: workers,
		HTTPClientConfig: utils.HTTPClientConfig{
			Timeout:   timeout,
			UserAgent: userAgent,
			Headers:   utils.ParseHeaderArgs(headers),
			RateLimit: rateLimit,
		},
	}
	err = scheduler.Run(entries, cfg, out)
	out.StopDisplay()
	if err != nil {
		output.PrintError(fmt.Sprintf("Download failed: %v", err))
		return 1
	}
	return 0
}

func openLogFile() (*os.File, error) {
	return os.OpenFile(utils.LogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Connect and idle-read timeout per request, 0 waits forever (eg. 30s, 5m)")
	rootCmd.Flags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent")
	rootCmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom request header (like 'X-Token: abc'); can be specified multiple times")
	rootCmd.Flags().Int64VarP(&rateLimit, "limit", "r", 0, "Total bandwidth cap in bytes per second across all workers, 0 disables")

	// flags without shorthand
	rootCmd.Flags().BoolVar(&cleanOutput, "clean", false, "Remove leftover chunk files from DOWNLOAD_DIR and exit")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

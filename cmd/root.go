package cmd

import (
	"fmt"
	u "net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bpepple/clu-comics-sub001/internal/scheduler"
	"github.com/bpepple/clu-comics-sub001/internal/utils"
)

var (
	output        string
	workers       int
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	debug         bool
	linkListFile  string
	cleanOutput   bool
	headers       []string
)

var CluVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "clu [mega-link]",
	Short:   "Clu downloads comic archives shared via MEGA links",
	Version: CluVersion,
	Args:    cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		if cleanOutput {
			if err := utils.Clean(output); err != nil {
				utils.PrintError("Error cleaning up temporary files")
				os.Exit(1)
			}
			utils.PrintSuccess("Temporary files cleaned up")
			return
		}
		if len(args) == 0 && linkListFile == "" {
			utils.PrintError("No link or link list provided")
			os.Exit(1)
		}
		if linkListFile != "" && len(args) > 0 {
			utils.PrintError("Cannot specify link argument and --linklist together, choose one")
			os.Exit(1)
		}
		// Check if proxy URL contains auth
		parsedProxy, err := u.Parse(proxyURL)
		if err == nil && parsedProxy.User != nil && proxyUsername == "" {
			proxyUsername = parsedProxy.User.Username()
			if password, set := parsedProxy.User.Password(); set {
				proxyPassword = password
			}
			parsedProxy.User = nil
			proxyURL = parsedProxy.String()
		}
		httpClientConfig := utils.HTTPClientConfig{
			Timeout:       timeout,
			KATimeout:     kaTimeout,
			ProxyURL:      proxyURL,
			ProxyUsername: proxyUsername,
			ProxyPassword: proxyPassword,
			UserAgent:     userAgent,
			Headers:       utils.ParseHeaderArgs(headers),
		}

		var entries []utils.DownloadEntry
		if len(args) > 0 {
			entries = []utils.DownloadEntry{{URL: args[0], OutputPath: output}}
		} else {
			entries, err = utils.ReadDownloadList(linkListFile)
			if err != nil {
				utils.PrintError("Failed to read link list file")
				os.Exit(1)
			}
		}
		jobs := make([]utils.Job, 0, len(entries))
		for _, entry := range entries {
			jobs = append(jobs, utils.Job{
				JobType:          "mega",
				URL:              entry.URL,
				OutputPath:       entry.OutputPath,
				Metadata:         make(map[string]any),
				HTTPClientConfig: httpClientConfig,
			})
		}
		if err := scheduler.Run(jobs, workers); err != nil {
			fmt.Println()
			utils.PrintError("Encountered failed download(s)")
			os.Exit(1)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (inferred from the decrypted file name if not provided)")
	rootCmd.Flags().StringVarP(&linkListFile, "linklist", "l", "", "Path to YAML file containing links and output paths")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 1, "Number of links to download in parallel")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 3*time.Minute, "Per-request timeout (eg. 5s, 10m)")
	rootCmd.Flags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	rootCmd.Flags().StringVarP(&userAgent, "user-agent", "a", "", "User agent")
	rootCmd.Flags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	rootCmd.Flags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.Flags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers for content requests; can be specified multiple times")

	// flags without shorthand
	rootCmd.Flags().BoolVar(&cleanOutput, "clean", false, "Clean up temporary files for provided output path")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

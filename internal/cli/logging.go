package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"hlsubmit/internal/config"
	"hlsubmit/pkg/confkit"
)

// SetupLogging applies the log section of cfg. logx only honours the first call.
func SetupLogging(cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	return logx.SetUp(cfg.Log)
}

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Stage profiling: %s (keep %d samples)", onOff(cfg.Perf.Enabled), cfg.Perf.Keep),
		fmt.Sprintf("Latency run: %s %s x%d rounds, concurrency %d, pause %s",
			side(cfg.Latency.IsBuy), cfg.Latency.Coin, cfg.Latency.Rounds, cfg.Latency.Concurrency, cfg.Latency.Pause),
		fmt.Sprintf("Journal: %s", presence(strings.TrimSpace(cfg.Latency.Journal) != "")),
		sectionLine("Exchange config", cfg.Exchange),
	}
	if ex := cfg.Exchange.Value; ex != nil {
		for _, name := range slices.Sorted(maps.Keys(ex.Providers)) {
			p := ex.Providers[name]
			marker := ""
			if name == ex.Default {
				marker = " (default)"
			}
			network := "mainnet"
			if p.Testnet {
				network = "testnet"
			}
			lines = append(lines, fmt.Sprintf("Provider %s%s: type=%s network=%s vault=%s retry=%d",
				name, marker, p.Type, network, presence(p.VaultAddress != ""), p.Retry.MaxAttempts))
		}
	}

	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func onOff(ok bool) string {
	if ok {
		return "on"
	}
	return "off"
}

func side(isBuy bool) string {
	if isBuy {
		return "buy"
	}
	return "sell"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}

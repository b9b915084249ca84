package cli

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wiresharks/claudecodex/internal/config"
	"github.com/wiresharks/claudecodex/internal/event"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment and configuration",
	Long:  "Validate that the relay can run here: configuration loads, the listen address is free, and the log and audit paths are writable.",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("claudecodex doctor — checking your environment")
	fmt.Println()
	allOK := true

	fmt.Printf("  Go version: %s ✓\n", runtime.Version())
	fmt.Printf("  Platform:   %s/%s ✓\n", runtime.GOOS, runtime.GOARCH)

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Printf("  Config:     INVALID ✗\n    → %v\n", err)
		fmt.Println()
		fmt.Println("Fix the configuration first, then run doctor again.")
		return nil
	}
	fmt.Printf("  Config:     %s v%s ✓\n", cfg.Name, cfg.Version)
	fmt.Printf("  Channels:   %s ✓\n", strings.Join(cfg.Channels, ", "))

	// Listen address
	addr := cfg.Server.Addr()
	if ln, err := net.Listen("tcp", addr); err != nil {
		fmt.Printf("  Listen:     %s UNAVAILABLE ✗\n    → %v\n", addr, err)
		allOK = false
	} else {
		ln.Close()
		fmt.Printf("  Listen:     %s ✓\n", addr)
	}

	// Log path
	if cfg.Log.Path != "" {
		if dir := filepath.Dir(cfg.Log.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fmt.Printf("  Log path:   %s NOT WRITABLE ✗\n    → %v\n", cfg.Log.Path, err)
				allOK = false
			}
		}
		f, err := os.OpenFile(cfg.Log.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Printf("  Log path:   %s NOT WRITABLE ✗\n    → %v\n", cfg.Log.Path, err)
			allOK = false
		} else {
			f.Close()
			fmt.Printf("  Log path:   %s ✓\n", cfg.Log.Path)
		}
	}

	// Audit trail
	if cfg.Audit.Enabled {
		audit, err := event.NewAuditHook("doctor", cfg.Audit.Path)
		if err != nil {
			fmt.Printf("  Audit DB:   FAILED ✗\n    → %v\n", err)
			allOK = false
		} else {
			audit.Close()
			fmt.Printf("  Audit DB:   %s ✓\n", cfg.Audit.Path)
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See above for details.")
	}

	return nil
}

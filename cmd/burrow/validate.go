package main

import (
	"fmt"
	"sort"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a manifest without starting the daemon",
	Long: `Load and validate a manifest, then print a short summary of the
pools it defines. Exits non-zero if the manifest is invalid.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().String("config", "burrow.yaml", "Path to the manifest")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(cfg.Pools))
	for name := range cfg.Pools {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%s: OK\n", configPath)
	fmt.Printf("strategy: %s\n", cfg.Strategy)
	fmt.Printf("pools: %d\n", len(names))
	for _, name := range names {
		spec := cfg.Pools[name]
		line := fmt.Sprintf("  %s: max_size=%d", name, spec.Pool.MaxSize)
		if spec.Pool.MinSize > 0 {
			line += fmt.Sprintf(" min_size=%d", spec.Pool.MinSize)
		}
		if len(spec.DependsOn) > 0 {
			line += fmt.Sprintf(" depends_on=%v", spec.DependsOn)
		}
		if spec.Autoscale != nil {
			line += " autoscaled"
		}
		fmt.Println(line)
	}
	return nil
}

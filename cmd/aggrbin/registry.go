package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/maruel/natural"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/spf13/cobra"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Report catalog roots, file/event counts and gap-fix queue status",
	RunE:  runRegistry,
}

func init() {
	rootCmd.AddCommand(registryCmd)
}

func runRegistry(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	roots, err := db.ListRoots()
	if err != nil {
		return fmt.Errorf("aggrbin registry: %w", err)
	}
	stats, err := db.Summarize()
	if err != nil {
		return fmt.Errorf("aggrbin registry: %w", err)
	}

	sort.Slice(roots, func(i, j int) bool { return natural.Less(roots[i].Path, roots[j].Path) })

	fmt.Printf("roots: %d\n", len(roots))
	for _, r := range roots {
		staleness := "never indexed"
		if r.HasIndexed {
			staleness = time.UnixMilli(r.LastIndexedAt).UTC().Format(time.RFC3339)
		}
		fmt.Printf("  [%d] %s  last_indexed_at=%s\n", r.ID, r.Path, staleness)
	}

	fmt.Printf("files: %d (processed=%d failed=%d)\n", stats.FileCount, stats.ProcessedFileCount, stats.FailedFileCount)
	fmt.Printf("events: %d\n", stats.EventCount)

	fmt.Println("gap-fix queue:")
	statuses := make([]string, 0, len(stats.GapFixByStatus))
	for status := range stats.GapFixByStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Printf("  %s: %d\n", status, stats.GapFixByStatus[status])
	}

	printHostCapacity()

	return nil
}

// printHostCapacity reports the host's available CPU/memory, a diagnostic
// hint for sizing the workers config key, analogous to the teacher's resource-aware
// handlers (gopsutil-backed capacity checks) repurposed here as a read-only
// report rather than an admission gate.
func printHostCapacity() {
	counts, err := cpu.Counts(true)
	if err != nil {
		return
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	fmt.Printf("host: %d logical CPUs, %.1f GiB available memory\n", counts, float64(vm.Available)/(1<<30))
}

package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/asagiri-dev/mfwrun/internal/config"
	"github.com/asagiri-dev/mfwrun/internal/descriptor"
	"github.com/asagiri-dev/mfwrun/internal/resolver"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate every resource descriptor under the configured paths",
	Long: `Validate walks the configured resource directories, parses every
descriptor, and reports schema defects without stopping at the first
failure. It also resolves each resource with default options and reports
tasks whose option references are hidden by disabled groups.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	paths, err := findDescriptors(cfg.Paths.ResourceDirs)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no %s files found under %v", descriptor.DescriptorFileName, cfg.Paths.ResourceDirs)
	}

	out := cmd.OutOrStdout()
	failures := 0
	for _, path := range paths {
		res, err := descriptor.LoadFile(path)
		if err != nil {
			failures++
			fmt.Fprintf(out, "FAIL  %s\n      %v\n", path, err)
			continue
		}

		// Defaults-only resolution surfaces task references hidden by
		// disabled groups before any run would.
		resolved, err := resolver.Resolve(res, nil)
		if err != nil {
			failures++
			fmt.Fprintf(out, "FAIL  %s\n      %v\n", path, err)
			continue
		}
		hidden := 0
		for _, task := range res.Tasks {
			for _, ref := range task.OptionRefs {
				if !resolved.Visible(ref) {
					hidden++
					fmt.Fprintf(out, "WARN  %s: task %q references %q, hidden under default group settings\n",
						res.Name, task.Name, ref)
				}
			}
		}

		fmt.Fprintf(out, "OK    %s (%s, %d tasks, %d visible options)\n",
			res.Name, res.Version, len(res.Tasks), len(resolved.Names()))
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d descriptors failed validation", failures, len(paths))
	}
	return nil
}

// findDescriptors walks the resource directories for descriptor files.
// Missing directories are skipped.
func findDescriptors(dirs []string) ([]string, error) {
	var paths []string
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && d.Name() == descriptor.DescriptorFileName {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", dir, err)
		}
	}
	return paths, nil
}

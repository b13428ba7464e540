package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/asagiri-dev/mfwrun/internal/config"
	"github.com/asagiri-dev/mfwrun/internal/descriptor"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured devices, discovered resources, and saved configurations",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lib, err := descriptor.Load(cfg.Paths.ResourceDirs)
	if err != nil {
		return err
	}

	store, err := config.NewStore(cfg.Paths.ConfigDir, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Devices:")
	if len(cfg.Devices) == 0 {
		fmt.Fprintln(out, "  (none configured)")
	} else {
		w := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tRESOURCE\tADDRESS\tCONFIG")
		for _, d := range cfg.Devices {
			name := d.Config
			if name == "" {
				name = config.DefaultOverlayName
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", d.Name, d.Resource, d.Address, name)
		}
		w.Flush()
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Resources:")
	if lib.Len() == 0 {
		fmt.Fprintln(out, "  (none found)")
	} else {
		w := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tVERSION\tTASKS\tSOURCE")
		for _, res := range lib.All() {
			fmt.Fprintf(w, "  %s\t%s\t%d\t%s\n", res.Name, res.Version, len(res.Tasks), res.SourceDir)
		}
		w.Flush()
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Saved configurations:")
	names := store.Names()
	if len(names) == 0 {
		fmt.Fprintln(out, "  (none saved)")
	} else {
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %s\n", name)
		}
	}

	return nil
}

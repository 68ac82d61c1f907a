package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"psykar.com/ekfbot/internal/config"
	"psykar.com/ekfbot/internal/world"
)

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Write the configured world, and optionally the config, to YAML",
		Long: `Build the world the other commands would use, including random boxes and
extracted landmarks, and write it out as explicit walls and landmarks. The
result can be edited and passed back with --map.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := loadSetup(cmd)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			cfgOut, _ := cmd.Flags().GetString("config-out")

			if err := world.Save(out, st.world); err != nil {
				return err
			}
			fmt.Printf("%d walls and %d landmarks written to %s\n", len(st.world.Walls), len(st.world.Landmarks), out)

			if cfgOut != "" {
				if err := config.Save(cfgOut, st.cfg); err != nil {
					return err
				}
				fmt.Printf("config written to %s\n", cfgOut)
			}
			return nil
		},
	}
	cmd.Flags().String("out", "map.yaml", "Map file to write")
	cmd.Flags().String("config-out", "", "Also write the effective config here")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/AobaIwaki123/wifi-speed-bench/src/validate"
)

func (a *app) validateCmd() *cobra.Command {
	var mapPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every log line against the expected band of its network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("map") {
				a.cfg.Validation.MapPath = mapPath
			}
			fsys := afero.NewOsFs()
			bands, err := validate.LoadBandMap(fsys, a.cfg.Validation.MapPath)
			if err != nil {
				return err
			}
			res, err := validate.Validate(fsys, a.cfg.LogPath, bands)
			if err != nil {
				return err
			}
			res.Render(a.stdout, bands)
			if !res.OK() {
				return fmt.Errorf("%w: %d issues in %s", errValidationFailed, len(res.Issues), res.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mapPath, "map", "", "JSON file mapping ssid to expected band")
	return cmd
}

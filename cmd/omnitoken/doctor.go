package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-omnitoken/internal/doctor"
)

func newDoctorCmd() *cobra.Command {
	var samples []string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration and the trained model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			result := doctor.Run(doctor.Config{
				Tokenizer:  cfg.Tokenizer,
				FS:         appFS,
				ModelPath:  cfg.Paths.ModelPath,
				Samples:    samples,
				ListenAddr: cfg.Server.ListenAddr,
			}, cmd.OutOrStdout())

			if result.Failed() {
				return fmt.Errorf("doctor: %d check(s) failed", len(result.Failures()))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&samples, "sample", nil, "Text to round-trip through the model (repeatable)")

	return cmd
}

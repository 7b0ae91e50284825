package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/molsim/dockenergy/internal/config"
	gormstorage "github.com/molsim/dockenergy/internal/storage/gorm"
	"github.com/molsim/dockenergy/internal/storage/memory"
	v1 "github.com/molsim/dockenergy/internal/storage/memory/export/v1"
	"github.com/molsim/dockenergy/pkg/core"
)

func newExportCmd() *cobra.Command {
	var (
		store    storeFlags
		outDir   string
		compress bool
	)

	cmd := &cobra.Command{
		Use:   "export <uuid>...",
		Short: "Write recorded sessions as JSON trace files",
		Args:  cobra.MinimumNArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			mem := config.GetStorageConfig().Memory
			if !cmd.Flags().Changed("out") {
				outDir = mem.OutputDir
			}
			if !cmd.Flags().Changed("gzip") {
				compress = mem.CompressOutput
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := store.open()
			if err != nil {
				return err
			}
			defer closeDB()

			sessions, err := gormstorage.ListSessions(db)
			if err != nil {
				return err
			}
			byUUID := make(map[string]core.SessionRecord, len(sessions))
			for _, s := range sessions {
				byUUID[s.UUID] = s
			}

			for _, id := range args {
				s, ok := byUUID[id]
				if !ok {
					return fmt.Errorf("%w: %s", core.ErrUnknownSession, id)
				}
				samples, err := gormstorage.ListSamples(db, id)
				if err != nil {
					return err
				}
				path, err := memory.WriteExport(outDir, &v1.SessionData{Session: s, Samples: samples}, compress)
				if err != nil {
					return fmt.Errorf("exporting %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d samples written to %s\n", id, len(samples), path)
			}
			return nil
		},
	}

	store.register(cmd)
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default storage.memory.outputDir)")
	cmd.Flags().BoolVar(&compress, "gzip", false, "gzip the JSON (default storage.memory.compressOutput)")
	return cmd
}

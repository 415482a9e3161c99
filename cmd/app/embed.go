package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/spf13/cobra"
)

var errPartitionsFailed = errors.New("some partitions failed")

var embedAll bool

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Посчитать эмбеддинги каталога",
	Long: `Один прогон пакетной генерации эмбеддингов по всем партициям.
По умолчанию обрабатываются только строки без вектора или с изменившимся image_url.
С флагом --all пересчитываются все строки.`,
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().BoolVar(&embedAll, "all", false, "пересчитать эмбеддинги всех строк")
}

// runReport — отчёт прогона с итогами по всем партициям.
type runReport struct {
	*domain.BatchRun
	Totals domain.PartitionReport `json:"totals"`
}

func runEmbed(cmd *cobra.Command, args []string) error {
	application, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	run, runErr := application.RunEmbedding(cmd.Context(), embedAll)
	if run != nil {
		if err := writeReport(cmd.OutOrStdout(), run); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if run.Failed() {
		return errPartitionsFailed
	}

	return nil
}

func writeReport(w io.Writer, run *domain.BatchRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runReport{BatchRun: run, Totals: run.Totals()}); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/your-org/promptchain/pkg/chain"
)

// WriteCSV writes one row per step plus a trailing total row.
func WriteCSV(w io.Writer, tr chain.Trace) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"step_number", "role", "prompt", "response", "tokens"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range tr.Steps {
		row := []string{strconv.Itoa(s.StepNumber), s.Role, s.Prompt, s.Response.String(), strconv.Itoa(s.Tokens)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	if err := cw.Write([]string{"", "total", "", tr.FinalResult.String(), strconv.Itoa(tr.TotalTokens)}); err != nil {
		return fmt.Errorf("write csv total: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV converts a trace file into CSV.
func ExportCSV(inputPath string, outputPath string) error {
	tr, err := LoadFromFile(inputPath)
	if err != nil {
		return err
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output csv: %w", err)
	}
	if err := WriteCSV(out, tr); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

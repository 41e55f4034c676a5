package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [file|-]",
	Short: "Show how a raw backend record is normalized and sent back",
	Long: `normalize reads one raw IPO record as JSON from a file, or from stdin when
the argument is "-" or missing, and prints its view model, table row and the
payload an unchanged save would send.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		ipoType, _ := cmd.Flags().GetString("type")
		out, err := normalizeRecord(data, models.IPOType(strings.ToUpper(ipoType)), time.Now())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(append(out, '\n'))
		return err
	},
}

func init() {
	normalizeCmd.Flags().String("type", string(models.IPOTypeMainboard), "IPO type assumed when the record has none (MAINBOARD or SME)")
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return data, nil
}

// normalizeRecord renders the view model, table row and outgoing payload of a raw record
func normalizeRecord(data []byte, defaultType models.IPOType, now time.Time) ([]byte, error) {
	var raw models.RawIPO
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("input is not a JSON object: %w", err)
	}

	normalizer := services.NewNormalizer(services.NewUtilityService())
	vm := normalizer.ToViewModelWithType(raw, defaultType, now)
	return json.MarshalIndent(struct {
		ViewModel models.IPOViewModel `json:"viewModel"`
		TableRow  models.IPOTableRow  `json:"tableRow"`
		Payload   models.IPOPayload   `json:"payload"`
	}{
		ViewModel: vm,
		TableRow:  normalizer.ToTableRow(raw, defaultType, now),
		Payload:   normalizer.ToAPIPayload(vm, now),
	}, "", "  ")
}

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/junkusano/famille-docsync/internal/fetcher"
	"github.com/junkusano/famille-docsync/internal/model"
)

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Manage the document-type label master",
}

var (
	labelsImportSheet string
	labelsImportSkip  int
)

var labelsImportCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Import label master rows from a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rows, err := fetcher.ReadXLSX(args[0], fetcher.XLSXOptions{
			SheetName: labelsImportSheet,
			SkipRows:  labelsImportSkip,
		})
		if err != nil {
			return err
		}

		entries, err := parseLabelRows(rows)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertLabelMaster(ctx, entries)
		if err != nil {
			return err
		}

		zap.L().Info("label master imported",
			zap.String("file", args[0]),
			zap.Int64("rows", n),
		)
		return nil
	},
}

var labelsSeedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Seed the label master from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		var seed struct {
			Labels []struct {
				Label  string `yaml:"label"`
				TypeID int64  `yaml:"type_id"`
				Active *bool  `yaml:"active"`
			} `yaml:"labels"`
		}
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}

		entries := make([]model.LabelMasterEntry, 0, len(seed.Labels))
		for _, l := range seed.Labels {
			active := true
			if l.Active != nil {
				active = *l.Active
			}
			entries = append(entries, model.LabelMasterEntry{
				Label:  l.Label,
				TypeID: l.TypeID,
				Active: active,
			})
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertLabelMaster(ctx, entries)
		if err != nil {
			return err
		}

		zap.L().Info("label master seeded",
			zap.String("file", args[0]),
			zap.Int64("rows", n),
		)
		return nil
	},
}

var labelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the label master",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListLabelMaster(ctx)
		if err != nil {
			return err
		}

		for _, e := range entries {
			state := "active"
			if !e.Active {
				state = "inactive"
			}
			fmt.Printf("%d\t%s\t%s\n", e.TypeID, e.Label, state)
		}
		return nil
	},
}

// parseLabelRows converts spreadsheet rows (label, type id, optional active
// flag) into master entries. Blank lines are skipped; a bad type id fails the
// whole import so operators notice before half a sheet lands.
func parseLabelRows(rows [][]string) ([]model.LabelMasterEntry, error) {
	var entries []model.LabelMasterEntry
	for i, row := range rows {
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" {
			continue
		}

		typeID, err := strconv.ParseInt(strings.TrimSpace(row[1]), 10, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "row %d: bad type id %q", i+1, row[1])
		}

		active := true
		if len(row) >= 3 {
			switch strings.ToLower(strings.TrimSpace(row[2])) {
			case "", "1", "true", "yes":
				active = true
			default:
				active = false
			}
		}

		entries = append(entries, model.LabelMasterEntry{
			Label:  strings.TrimSpace(row[0]),
			TypeID: typeID,
			Active: active,
		})
	}
	return entries, nil
}

func init() {
	labelsImportCmd.Flags().StringVar(&labelsImportSheet, "sheet", "", "sheet name (default: first sheet)")
	labelsImportCmd.Flags().IntVar(&labelsImportSkip, "skip-rows", 1, "header rows to skip")
	labelsCmd.AddCommand(labelsImportCmd, labelsSeedCmd, labelsListCmd)
	rootCmd.AddCommand(labelsCmd)
}

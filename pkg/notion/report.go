package notion

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/junkusano/famille-docsync/internal/model"
)

// PublishRunReport creates one page per run in the report database. Errors
// beyond the first few are elided; the full list lives in the run log table.
func PublishRunReport(ctx context.Context, c Client, databaseID string, report *model.RunReport) error {
	status := "OK"
	if !report.OK {
		status = "Failed"
	}
	if report.DryRun {
		status += " (dry run)"
	}

	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: []notionapi.RichText{
					{Text: &notionapi.Text{Content: "Run " + report.RunID}},
				},
			},
			"Status": notionapi.RichTextProperty{
				RichText: []notionapi.RichText{
					{Text: &notionapi.Text{Content: status}},
				},
			},
			"Started": notionapi.DateProperty{
				Date: &notionapi.DateObject{
					Start: (*notionapi.Date)(&report.StartedAt),
				},
			},
			"Scanned":          numberProp(report.Scanned),
			"Analyzed":         numberProp(report.Analyzed),
			"Degraded":         numberProp(report.AnalyzedDegraded),
			"Metadata Updated": numberProp(report.MetadataUpdated),
			"Skipped (budget)": numberProp(report.SkippedForBudget()),
			"Errors":           numberProp(len(report.Errors)),
		},
		Children: reportChildren(report),
	}

	_, err := c.CreatePage(ctx, req)
	return err
}

// maxErrorBlocks caps how many per-item errors appear on the page.
const maxErrorBlocks = 10

func reportChildren(report *model.RunReport) []notionapi.Block {
	if len(report.Errors) == 0 {
		return nil
	}

	blocks := []notionapi.Block{
		&notionapi.Heading2Block{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeHeading2,
			},
			Heading2: notionapi.Heading{
				RichText: []notionapi.RichText{
					{Text: &notionapi.Text{Content: "Errors"}},
				},
			},
		},
	}

	for i, e := range report.Errors {
		if i >= maxErrorBlocks {
			blocks = append(blocks, bulletBlock(fmt.Sprintf("… and %d more", len(report.Errors)-maxErrorBlocks)))
			break
		}
		line := e.Error
		if e.URL != "" {
			line = e.URL + ": " + line
		}
		blocks = append(blocks, bulletBlock(line))
	}

	return blocks
}

func bulletBlock(text string) notionapi.Block {
	return &notionapi.BulletedListItemBlock{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeBulletedListItem,
		},
		BulletedListItem: notionapi.ListItem{
			RichText: []notionapi.RichText{
				{Text: &notionapi.Text{Content: text}},
			},
		},
	}
}

func numberProp(n int) notionapi.NumberProperty {
	return notionapi.NumberProperty{Number: float64(n)}
}

package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"binder/internal/api"
	"binder/internal/apiclient"
	"binder/internal/logging"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var side string
	var batchID string
	var direct bool
	var allowDuplicate bool

	cmd := &cobra.Command{
		Use:   "scan <image...>",
		Short: "Submit card scans for identification",
		Long: `Submit one or more card scan images to the processing queue.

When the daemon is running, images are uploaded over its API. Otherwise
they are staged and enqueued directly so the daemon picks them up on its
next start. With --direct the identification stage runs inline, which is
useful for troubleshooting a scan without a daemon.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// The API has no duplicate override, and direct mode needs
			// the local identifier. Both run against the store.
			if !direct && !allowDuplicate {
				if client, dialErr := ctx.dialDaemon(cmd.Context()); dialErr == nil {
					return submitScansViaAPI(cmd, client, args, side, batchID, ctx.jsonMode())
				}
			}

			logger := logging.NewNop()
			if direct {
				stageLogger, logErr := logging.New(logging.Options{
					Level:       cfg.Logging.Level,
					Format:      cfg.Logging.Format,
					OutputPaths: []string{"stdout"},
				})
				if logErr != nil {
					return fmt.Errorf("setup logging: %w", logErr)
				}
				logger = stageLogger
			}

			result, err := api.SubmitScans(cmd.Context(), api.SubmitScansRequest{
				Config:         cfg,
				Paths:          args,
				Side:           side,
				BatchID:        batchID,
				AllowDuplicate: allowDuplicate,
				Direct:         direct,
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			if ctx.jsonMode() {
				return writeScanResultJSON(cmd, result, direct)
			}

			out := cmd.OutOrStdout()
			for _, skipped := range result.Skipped {
				fmt.Fprintf(out, "Skipped %s: %s\n", filepath.Base(skipped.Path), skipped.Reason)
			}
			for _, submitted := range result.Submitted {
				fmt.Fprintf(out, "Queued scan as item #%d (%s)\n", submitted.Item.ID, filepath.Base(submitted.Path))
			}
			if len(result.Submitted) > 1 {
				fmt.Fprintf(out, "Batch %s: %d submitted, %d skipped\n", result.BatchID, len(result.Submitted), len(result.Skipped))
			}

			if direct {
				for _, submitted := range result.Submitted {
					printIdentifyAssessment(cmd, submitted.Path, api.AssessIdentifyScan(submitted.Item))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&side, "side", "", "Force the side hint for every image (front or back)")
	cmd.Flags().StringVar(&batchID, "batch", "", "Group the images under an explicit batch ID")
	cmd.Flags().BoolVar(&direct, "direct", false, "Run identification inline instead of waiting for the daemon")
	cmd.Flags().BoolVar(&allowDuplicate, "allow-duplicate", false, "Queue the image even when its fingerprint is already in the workflow")
	return cmd
}

func writeScanResultJSON(cmd *cobra.Command, result api.SubmitScansResult, direct bool) error {
	type submittedJSON struct {
		Path    string `json:"path"`
		ID      int64  `json:"id"`
		Outcome string `json:"outcome,omitempty"`
	}
	type skippedJSON struct {
		Path       string `json:"path"`
		Reason     string `json:"reason"`
		ExistingID int64  `json:"existingId,omitempty"`
	}

	submitted := make([]submittedJSON, 0, len(result.Submitted))
	for _, entry := range result.Submitted {
		row := submittedJSON{Path: entry.Path, ID: entry.Item.ID}
		if direct {
			row.Outcome = api.AssessIdentifyScan(entry.Item).Outcome
		}
		submitted = append(submitted, row)
	}
	skipped := make([]skippedJSON, 0, len(result.Skipped))
	for _, entry := range result.Skipped {
		skipped = append(skipped, skippedJSON{Path: entry.Path, Reason: entry.Reason, ExistingID: entry.ExistingID})
	}
	return writeJSON(cmd, map[string]any{
		"batchId":   result.BatchID,
		"submitted": submitted,
		"skipped":   skipped,
	})
}

func submitScansViaAPI(cmd *cobra.Command, client *apiclient.Client, paths []string, side, batchID string, jsonMode bool) error {
	type uploadJSON struct {
		Path    string `json:"path"`
		ID      int64  `json:"id,omitempty"`
		Outcome string `json:"outcome"`
	}

	out := cmd.OutOrStdout()
	uploads := make([]uploadJSON, 0, len(paths))
	for _, path := range paths {
		mimeType := scanMimeType(path)
		if mimeType == "" {
			return fmt.Errorf("unsupported image type %q (expected jpg, png, or webp)", filepath.Ext(path))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image %s: %w", path, err)
		}

		result, err := client.SubmitScan(cmd.Context(), api.ScanSubmitRequest{
			ImageBase64: base64.StdEncoding.EncodeToString(data),
			MimeType:    mimeType,
			Filename:    filepath.Base(path),
			Side:        side,
			BatchID:     batchID,
		})
		if err != nil {
			return fmt.Errorf("submit %s: %w", filepath.Base(path), err)
		}

		upload := uploadJSON{Path: path, Outcome: string(result.Outcome)}
		if result.Item != nil {
			upload.ID = result.Item.ID
		}
		uploads = append(uploads, upload)

		if jsonMode {
			continue
		}
		switch result.Outcome {
		case api.SubmitDuplicate:
			if result.Item != nil {
				fmt.Fprintf(out, "Skipped %s: already queued as item %d (status %s)\n",
					filepath.Base(path), result.Item.ID, result.Item.Status)
			} else {
				fmt.Fprintf(out, "Skipped %s: already queued\n", filepath.Base(path))
			}
		default:
			if result.Item != nil {
				fmt.Fprintf(out, "Queued scan as item #%d (%s)\n", result.Item.ID, filepath.Base(path))
			}
		}
	}
	if jsonMode {
		return writeJSON(cmd, map[string]any{"submitted": uploads})
	}
	return nil
}

func printIdentifyAssessment(cmd *cobra.Command, path string, assessment api.IdentifyScanAssessment) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n📊 Identification Results for %s:\n", filepath.Base(path))
	fmt.Fprintf(out, "  Card: %s\n", assessment.CardName)
	if assessment.CardNumber != "" {
		fmt.Fprintf(out, "  Number: %s\n", assessment.CardNumber)
	}
	if assessment.SetName != "" {
		fmt.Fprintf(out, "  Set: %s\n", assessment.SetName)
	}
	if assessment.FieldsPresent {
		fmt.Fprintf(out, "  Fields: ✅ Extracted\n")
	} else {
		fmt.Fprintf(out, "  Fields: ❌ None read\n")
	}
	fmt.Fprintf(out, "  Candidates: %d\n", assessment.CandidateCount)
	if assessment.ReviewRequired {
		reason := assessment.ReviewReason
		if reason == "" {
			reason = "unspecified"
		}
		fmt.Fprintf(out, "  Review Required: ⚠️  Yes - %s\n", reason)
	} else {
		fmt.Fprintf(out, "  Review Required: ✅ No\n")
	}
	fmt.Fprintf(out, "\n%s\n", assessment.OutcomeMessage)
}

func scanMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}

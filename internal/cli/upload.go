package cli

import (
	"fmt"
	"os"

	"resume-anonymizer/internal/domain"

	"github.com/spf13/cobra"
)

var uploadConfig struct {
	NoEdit    bool
	OutputDir string
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Upload a resume, detect personal data in it and open the editor",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadConfig.NoEdit, "no-edit", false, "do not open the editor after the upload")
	uploadCmd.Flags().StringVarP(&uploadConfig.OutputDir, "output-dir", "o", ".", "directory anonymized PDFs are downloaded to")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	api := getAPIFromContext(ctx)
	log := getLoggerFromContext(ctx)
	path := args[0]

	// Rejected locally so nothing is sent for the wrong kind of file.
	if err := domain.ValidatePDFFilename(path); err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	log.Info("Uploading document", "file", path)
	session, err := api.Upload(ctx, path, file)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Session %s: %d detection(s) on %d page(s)\n",
		session.SessionID, len(session.Detections), session.NumPages)

	// Editing happens locally; the editor the server opened for the upload is not needed.
	if err := api.CloseEditor(ctx, session.SessionID); err != nil {
		log.Warn("Failed to close server editor", "session_id", session.SessionID, "error", err.Error())
	}

	if uploadConfig.NoEdit {
		return nil
	}
	return newEditorSession(api, session, newPrompter(), cmd.OutOrStdout(), uploadConfig.OutputDir, log).Run(ctx)
}

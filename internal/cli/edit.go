package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"resume-anonymizer/internal/anonymizer"
	"resume-anonymizer/internal/domain"

	"github.com/spf13/cobra"
)

// Editor menu entries.
const (
	ActionToggle      = "Toggle detection"
	ActionReplacement = "Set replacement text"
	ActionBlurAll     = "Blur all"
	ActionRevealAll   = "Reveal all"
	ActionRemoveBlur  = "Remove manual blur"
	ActionNextPage    = "Next page"
	ActionPrevPage    = "Previous page"
	ActionZoomIn      = "Zoom in"
	ActionZoomOut     = "Zoom out"
	ActionSave        = "Save"
	ActionDownload    = "Download anonymized PDF"
	ActionShare       = "Share link"
	ActionBack        = "Back to sessions"
)

var editorMenu = []string{
	ActionToggle,
	ActionReplacement,
	ActionBlurAll,
	ActionRevealAll,
	ActionRemoveBlur,
	ActionNextPage,
	ActionPrevPage,
	ActionZoomIn,
	ActionZoomOut,
	ActionSave,
	ActionDownload,
	ActionShare,
	ActionBack,
}

var errBack = errors.New("back to sessions")

var editOutputDir string

var editCmd = &cobra.Command{
	Use:   "edit <session-id>",
	Short: "Open a saved session in the interactive editor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		api := getAPIFromContext(ctx)

		session, err := api.GetSession(ctx, args[0])
		if err != nil {
			return fmt.Errorf("loading session %s: %w", args[0], err)
		}
		return newEditorSession(api, session, newPrompter(), cmd.OutOrStdout(), editOutputDir, getLoggerFromContext(ctx)).Run(ctx)
	},
}

func init() {
	editCmd.Flags().StringVarP(&editOutputDir, "output-dir", "o", ".", "directory anonymized PDFs are downloaded to")
}

// EditorSession drives one editor from the terminal. Every change is local until one of
// the save points writes the session back to the server.
type EditorSession struct {
	api       API
	editor    *anonymizer.Editor
	bridge    *anonymizer.Bridge
	prompt    Prompter
	out       io.Writer
	outputDir string
	logger    domain.Logger
}

func newEditorSession(api API, session *domain.Session, prompt Prompter, out io.Writer, outputDir string, log domain.Logger) *EditorSession {
	return &EditorSession{
		api:       api,
		editor:    anonymizer.NewEditor(session),
		bridge:    anonymizer.NewBridge(api, log),
		prompt:    prompt,
		out:       out,
		outputDir: outputDir,
		logger:    log,
	}
}

// Run shows the menu until the user goes back or the process is interrupted. Going back
// saves and closes the editor; an interrupt saves in the background and waits for it.
func (s *EditorSession) Run(ctx context.Context) error {
	for {
		s.render()

		choice, err := s.choose(ctx, "Action", editorMenu)
		if err != nil {
			if isInterrupt(err) {
				s.unload(ctx)
				return nil
			}
			return err
		}

		if err := s.Handle(ctx, editorMenu[choice]); err != nil {
			if errors.Is(err, errBack) {
				return nil
			}
			if isInterrupt(err) {
				s.unload(ctx)
				return nil
			}
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

// Handle performs one menu action.
func (s *EditorSession) Handle(ctx context.Context, action string) error {
	viewer := s.editor.Viewer()

	switch action {
	case ActionToggle:
		id, err := s.pickDetection(ctx)
		if err != nil || id == "" {
			return err
		}
		blurred, affected, err := s.editor.ToggleByID(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s %d detection(s)\n", blurLabel(blurred), len(affected))
		return nil

	case ActionReplacement:
		id, err := s.pickDetection(ctx)
		if err != nil || id == "" {
			return err
		}
		index := s.editor.Detections().IndexOf(id)
		current, err := s.editor.Detections().Get(index)
		if err != nil {
			return err
		}
		initial := ""
		if current.ReplacementText != nil {
			initial = *current.ReplacementText
		}
		text, err := s.prompt.Input("Replacement text (empty clears)", initial)
		if err != nil {
			return err
		}
		return s.editor.SetReplacement(index, text)

	case ActionBlurAll:
		return s.editor.SetAllBlurred(true)

	case ActionRevealAll:
		return s.editor.SetAllBlurred(false)

	case ActionRemoveBlur:
		blurs := s.editor.ManualBlurs().OnPage(viewer.PageIndex())
		if len(blurs) == 0 {
			fmt.Fprintln(s.out, "No manual blurs on this page")
			return nil
		}
		items := make([]string, len(blurs))
		for i, b := range blurs {
			items[i] = fmt.Sprintf("%.0f,%.0f %.0fx%.0f", b.BBox.X, b.BBox.Y, b.BBox.Width, b.BBox.Height)
		}
		choice, err := s.choose(ctx, "Manual blur", items)
		if err != nil {
			return err
		}
		return s.editor.RemoveManualBlur(blurs[choice].ID)

	case ActionNextPage:
		viewer.NextPage()
	case ActionPrevPage:
		viewer.PrevPage()
	case ActionZoomIn:
		viewer.ZoomIn()
	case ActionZoomOut:
		viewer.ZoomOut()

	case ActionSave:
		id, err := s.bridge.Checkpoint(ctx, s.editor, anonymizer.TriggerSave)
		if err != nil {
			fmt.Fprintf(s.out, "Save failed, changes are kept locally: %v\n", err)
			return nil
		}
		fmt.Fprintf(s.out, "Saved session %s\n", id)

	case ActionDownload:
		// The PDF is rendered from the local state, so a failed save does not block it.
		id, err := s.bridge.Checkpoint(ctx, s.editor, anonymizer.TriggerDownload)
		if id == "" {
			return errors.New("session has never been saved")
		}
		if err != nil {
			fmt.Fprintf(s.out, "Save failed, the PDF still reflects your local changes: %v\n", err)
		}
		snapshot := s.editor.Snapshot()
		pdf, err := s.api.Download(ctx, snapshot)
		if err != nil {
			return fmt.Errorf("downloading anonymized PDF: %w", err)
		}
		path := filepath.Join(s.outputDir, snapshot.AnonymizedFilename())
		if err := os.WriteFile(path, pdf, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(s.out, "Wrote %s\n", path)

	case ActionShare:
		// A share link serves the stored copy, which must hold the local changes first.
		id, err := s.bridge.Checkpoint(ctx, s.editor, anonymizer.TriggerShare)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSessionNotSaved, err)
		}
		link, err := s.api.Share(ctx, id)
		if err != nil {
			return fmt.Errorf("sharing session: %w", err)
		}
		fmt.Fprintf(s.out, "Share link: %s\n", link)

	case ActionBack:
		_, _ = s.bridge.Checkpoint(ctx, s.editor, anonymizer.TriggerReset)
		s.editor.Discard()
		return errBack

	default:
		return fmt.Errorf("invalid action: %s", action)
	}
	return nil
}

// Editor exposes the underlying editor.
func (s *EditorSession) Editor() *anonymizer.Editor { return s.editor }

func (s *EditorSession) unload(ctx context.Context) {
	if id, ok := <-s.bridge.Detach(ctx, s.editor, anonymizer.TriggerUnload); ok && id != "" {
		fmt.Fprintf(s.out, "\nSaved session %s\n", id)
	}
}

func (s *EditorSession) pickDetection(ctx context.Context) (string, error) {
	detections := s.editor.Detections().OnPage(s.editor.Viewer().PageIndex())
	if len(detections) == 0 {
		fmt.Fprintln(s.out, "No detections on this page")
		return "", nil
	}
	items := make([]string, len(detections))
	for i, d := range detections {
		items[i] = detectionLine(d)
	}
	choice, err := s.choose(ctx, "Detection", items)
	if err != nil {
		return "", err
	}
	return detections[choice].ID, nil
}

// choose runs a select prompt that gives way when ctx is cancelled.
func (s *EditorSession) choose(ctx context.Context, label string, items []string) (int, error) {
	type result struct {
		index int
		err   error
	}
	done := make(chan result, 1)
	go func() {
		index, err := s.prompt.Select(label, items)
		done <- result{index, err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-done:
		return r.index, r.err
	}
}

func (s *EditorSession) render() {
	page, err := s.editor.CurrentPage()
	if err != nil {
		return
	}
	fmt.Fprintf(s.out, "\nPage %d/%d  zoom %.0f%%\n", page.Viewer.CurrentPage, page.Viewer.NumPages, page.Viewer.Scale*100)
	for _, d := range page.Detections {
		fmt.Fprintf(s.out, "  %s\n", detectionLine(d))
	}
	if n := len(page.ManualBlurs); n > 0 {
		fmt.Fprintf(s.out, "  + %d manual blur(s)\n", n)
	}
}

func detectionLine(d domain.Detection) string {
	mark := "[ ]"
	if d.Blurred {
		mark = "[x]"
	}
	line := fmt.Sprintf("%s %-8s %s", mark, d.Type, d.Text)
	if d.ReplacementText != nil {
		line += fmt.Sprintf(" -> %q", *d.ReplacementText)
	}
	return line
}

func blurLabel(blurred bool) string {
	if blurred {
		return "Blurred"
	}
	return "Revealed"
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/localfs"
	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/pathutil"
	"github.com/chinmay4o/superlinks/internal/progress"
	"github.com/chinmay4o/superlinks/internal/transfer"
	"github.com/chinmay4o/superlinks/internal/util/filter"
	strutil "github.com/chinmay4o/superlinks/internal/util/strings"
)

// expandGlobPatterns expands glob patterns like *.png, even when quoted.
// A leading ~ is expanded. Returns a deduplicated list of absolute paths.
func expandGlobPatterns(patterns []string) ([]string, error) {
	var expanded []string
	seen := make(map[string]bool)

	add := func(p string) error {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for %s: %w", p, err)
		}
		if !seen[abs] {
			expanded = append(expanded, abs)
			seen[abs] = true
		}
		return nil
	}

	for _, pattern := range patterns {
		pattern, err := pathutil.ExpandHome(pattern)
		if err != nil {
			return nil, err
		}
		if !strings.ContainsAny(pattern, "*?[]") {
			if err := add(pattern); err != nil {
				return nil, err
			}
			continue
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match pattern: %s", pattern)
		}
		for _, m := range matches {
			if err := add(m); err != nil {
				return nil, err
			}
		}
	}
	return expanded, nil
}

// expandDirectories replaces each directory in paths with the files under it.
// Without recursive a directory is left in place for loadFiles to reject.
func expandDirectories(paths []string, recursive, includeHidden bool) ([]string, error) {
	if !recursive {
		return paths, nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			if !seen[p] {
				out = append(out, p)
				seen[p] = true
			}
			continue
		}
		files, err := localfs.CollectFiles(p, localfs.WalkOptions{IncludeHidden: includeHidden})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
		for _, f := range files {
			if !seen[f] {
				out = append(out, f)
				seen[f] = true
			}
		}
	}
	return out, nil
}

// filterPaths applies cfg and fails when nothing is left to upload.
func filterPaths(paths []string, cfg filter.Config) ([]string, error) {
	kept := filter.Apply(paths, cfg)
	if len(kept) == 0 {
		return nil, fmt.Errorf("no files left after filtering %s", strutil.Count(len(paths), "path"))
	}
	return kept, nil
}

// loadFiles stats every path and rejects directories.
func loadFiles(paths []string) ([]transfer.File, error) {
	files := make([]transfer.File, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", p)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("'%s' is a directory, not a file", p)
		}
		f, err := transfer.FileFromPath(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func parseUploadType(s string) (models.UploadType, error) {
	switch t := models.UploadType(strings.ToLower(s)); t {
	case models.UploadTypeGeneral, models.UploadTypeImage, models.UploadTypeVideo,
		models.UploadTypeDocument, models.UploadTypeProduct, models.UploadTypeAvatar:
		return t, nil
	}
	return "", fmt.Errorf("unknown upload type %q (general, image, video, document, product, avatar)", s)
}

func newUploadCmd() *cobra.Command {
	var (
		uploadType  string
		productID   string
		folder      string
		description string
		include     string
		exclude     string
		search      []string
		recursive   bool
		hidden      bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload files",
		Long: `Upload files to the storefront's storage.

Every file is checked against the size and type limits of --type before any
upload starts; one bad file rejects the whole batch. At most --max-concurrent
files upload at once, the rest wait in order.

Examples:
  superlinks upload cover.png --type image
  superlinks upload "shots/*.jpg" --type image --folder launch
  superlinks upload presets.zip --type product --product prd_123
  superlinks upload -r launch-kit/ --type product --product prd_123
  superlinks upload "export/*" --exclude "*.psd,**/drafts/**" --type image`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseUploadType(uploadType)
			if err != nil {
				return err
			}
			paths, err := expandGlobPatterns(args)
			if err != nil {
				return err
			}
			paths, err = expandDirectories(paths, recursive, hidden)
			if err != nil {
				return err
			}
			paths, err = filterPaths(paths, filter.Config{
				Include: filter.ParsePatternList(include),
				Exclude: filter.ParsePatternList(exclude),
				Search:  search,
			})
			if err != nil {
				return err
			}
			files, err := loadFiles(paths)
			if err != nil {
				return err
			}
			opts := transfer.Options{UploadType: t, ProductID: productID, Folder: folder, Description: description}

			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				return runUpload(ctx, a.coord, files, opts, progress.New(len(files)), cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVarP(&uploadType, "type", "t", string(models.UploadTypeGeneral), "Upload type: general, image, video, document, product, avatar")
	cmd.Flags().StringVar(&productID, "product", "", "Product the files belong to")
	cmd.Flags().StringVar(&folder, "folder", "", "Destination folder")
	cmd.Flags().StringVar(&description, "description", "", "Description stored with the files")
	cmd.Flags().StringVar(&include, "include", "", "Only upload files whose names match these comma-separated patterns")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Skip files matching these comma-separated patterns (patterns with / match the path, ** allowed)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Upload the files inside directory arguments")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "With --recursive, include dot files and directories")
	cmd.Flags().StringSliceVar(&search, "match", nil, "Only upload files whose names contain every given term")
	return cmd
}

// runUpload uploads files while ui renders coordinator events, then prints
// one result line per file to out.
func runUpload(ctx context.Context, coord *transfer.Coordinator, files []transfer.File, opts transfer.Options, ui progress.UI, out io.Writer) error {
	ch := coord.Subscribe()
	rendered := make(chan struct{})
	go func() {
		progress.Render(ch, ui)
		close(rendered)
	}()

	results, err := coord.UploadMultiple(ctx, files, opts)
	coord.Unsubscribe(ch)
	<-rendered
	ui.Wait()

	if api.IsValidationError(err) {
		return err
	}
	for _, r := range results {
		if r.File != nil {
			fmt.Fprintf(out, "%s\t%s\t%s\n", r.Name, r.File.ID, r.File.URL)
		}
	}
	return err
}

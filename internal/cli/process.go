package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docharvester/docharvester-go/internal/client"
	"github.com/docharvester/docharvester-go/internal/parser"
)

var processCmd = &cobra.Command{
	Use:   "process <project> <file>",
	Short: "Process a document into classified chunks",
	Long: `Upload a text file for chunking and lens classification. The file's
text must already be extracted; PDFs and other binary formats are not
parsed here.

Examples:
  docharvester process my-project docs/architecture.md
  docharvester process my-project notes.txt --title "Release notes"`,
	Args: cobra.ExactArgs(2),
	RunE: runProcess,
}

var (
	processTitle string
	processWatch bool
)

func init() {
	processCmd.Flags().StringVar(&processTitle, "title", "", "document title (default: file name)")
	processCmd.Flags().BoolVarP(&processWatch, "watch", "w", true, "watch task progress")
}

func runProcess(cmd *cobra.Command, args []string) error {
	projectID, filePath := args[0], args[1]

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	base := filepath.Base(filePath)
	fileType := strings.TrimPrefix(filepath.Ext(base), ".")
	if fileType == "" {
		fileType = "txt"
	}

	title := processTitle
	if title == "" {
		switch fileType {
		case "markdown", "md":
			// Leave the title to the server, which prefers the
			// frontmatter title when one exists.
			doc := parser.ParseMarkdown(string(content))
			if verbose && len(doc.Headings) > 0 {
				fmt.Printf("Outline: %s\n", strings.Join(doc.Headings, " > "))
			}
		default:
			title = strings.TrimSuffix(base, filepath.Ext(base))
		}
	}

	task, err := api.ProcessDocument(context.Background(), projectID, client.DocumentRequest{
		DocID:    base,
		Title:    title,
		Text:     string(content),
		FileType: fileType,
	})
	if err != nil {
		return fmt.Errorf("submit document: %w", err)
	}

	fmt.Printf("Processing task %s started\n", task.ID)
	if processWatch {
		return RunTaskProgress(api, task)
	}
	return nil
}

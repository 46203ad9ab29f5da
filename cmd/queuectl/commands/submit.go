package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSubmitCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "submit [URL...]",
		Short: "Submit URLs as one batch and queue the created jobs",
		Long: "Submit URLs as one batch to the batch service and queue every returned job id. \n" +
			"URLs come from the arguments and/or a file with one URL per line (--file, '-' for stdin). \n" +
			"Blank lines and lines starting with '#' are ignored.",
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			urls := append([]string{}, args...)
			if file != "" {
				fromFile, err := readURLFile(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
				urls = append(urls, fromFile...)
			}

			if len(urls) == 0 {
				return errors.New("no URLs to submit")
			}

			result, err := a.deps.Producer.Submit(cmd.Context(), urls)
			for _, id := range result.Pushed {
				cmd.Printf("queued %s\n", id)
			}
			for _, id := range result.Orphaned {
				cmd.PrintErrf("orphaned %s\n", id)
			}
			if err != nil {
				return err
			}

			cmd.Printf("Submitted %d URLs, queued %d jobs\n", len(urls), len(result.Pushed))
			return nil
		}),
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "File with one URL per line, '-' for stdin")

	return cmd
}

func readURLFile(stdin io.Reader, path string) ([]string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open url file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read url file: %w", err)
	}

	return urls, nil
}

package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	ghclient "github.com/bull/docchat/internal/github"
	"github.com/bull/docchat/internal/ingest"
	"github.com/bull/docchat/internal/service"
)

var githubRef string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest local files or files from GitHub",
	Long: `Ingests PDF and Markdown files and prints the new document ids.

Files can be local paths or, with --github, a file or directory in a GitHub
repository written as owner/repo/path[@ref]. Directories are walked and every
PDF and Markdown file in them is ingested.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&githubRef, "github", "", "owner/repo/path[@ref] to fetch from GitHub")
}

func getProgressBar(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(len(ingest.Steps),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && githubRef == "" {
		return fmt.Errorf("nothing to ingest: pass files or --github")
	}

	cfg, a, err := open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	var ok, failed int
	report := func(name string, r io.Reader) {
		if err := ingestOne(cmd, a.Service, name, r); err != nil {
			color.Red("✗ %s: %v\n", name, err)
			failed++
			return
		}
		ok++
	}

	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			color.Red("✗ %s: %v\n", path, err)
			failed++
			continue
		}
		report(filepath.Base(path), f)
		f.Close()
	}

	if githubRef != "" {
		ref, err := ghclient.ParseRef(githubRef)
		if err != nil {
			return err
		}
		client, err := ghclient.NewClient(cfg.GitHub.Token)
		if err != nil {
			return fmt.Errorf("failed to create GitHub client: %w", err)
		}
		fetcher := ghclient.NewFetcher(client)

		paths, err := fetcher.List(cmd.Context(), ref)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fileRef := ref
			fileRef.Path = p
			file, err := fetcher.Fetch(cmd.Context(), fileRef)
			if err != nil {
				color.Red("✗ %s: %v\n", p, err)
				failed++
				continue
			}
			report(file.Name(), bytes.NewReader(file.Content))
		}
	}

	fmt.Println()
	fmt.Printf("Ingested %d, failed %d in %s\n", ok, failed, time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

func ingestOne(cmd *cobra.Command, svc *service.Service, name string, r io.Reader) error {
	bar := getProgressBar(name)
	result, err := svc.Upload(cmd.Context(), name, r, func(step ingest.Step) {
		bar.Describe(color.BlueString("%s: %s", name, step))
		bar.Add(1)
	})
	bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	color.Green("✓ %s\n", name)
	fmt.Printf("  id:     %s\n", result.Document.ID)
	fmt.Printf("  units:  %d text, %d image\n", result.TextUnits, result.ImageUnits)
	if result.Document.Summary != "" {
		fmt.Printf("  summary: %s\n", result.Document.Summary)
	}
	return nil
}

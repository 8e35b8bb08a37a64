// Package github fetches PDF and Markdown files from GitHub repositories for ingestion.
package github

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"

	"github.com/bull/docchat/internal/loader"
)

// Ref names a file or directory in a repository. Ref may be empty for the default branch.
type Ref struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
}

// ParseRef parses "owner/repo/path[@ref]".
func ParseRef(s string) (Ref, error) {
	var r Ref
	s, r.Ref, _ = strings.Cut(s, "@")
	parts := strings.SplitN(strings.Trim(s, "/"), "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Ref{}, fmt.Errorf("github reference %q must look like owner/repo/path[@ref]", s)
	}
	r.Owner, r.Repo, r.Path = parts[0], parts[1], parts[2]
	return r, nil
}

// String formats r as owner/repo/path[@ref].
func (r Ref) String() string {
	s := r.Owner + "/" + r.Repo + "/" + r.Path
	if r.Ref != "" {
		s += "@" + r.Ref
	}
	return s
}

// FetchedFile is a file downloaded from GitHub.
type FetchedFile struct {
	Path    string // path within the repository
	Content []byte
	SHA     string // blob SHA
	URL     string // html URL
}

// Name is the file's base name, used as the document's original name.
func (f *FetchedFile) Name() string { return path.Base(f.Path) }

// Fetcher handles fetching documents from GitHub repositories
type Fetcher struct {
	client *Client
}

// NewFetcher creates a Fetcher using client.
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

func (f *Fetcher) options(ref Ref) *github.RepositoryContentGetOptions {
	if ref.Ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: ref.Ref}
}

// List returns the supported document paths under ref. A file ref returns itself.
func (f *Fetcher) List(ctx context.Context, ref Ref) ([]string, error) {
	file, dir, _, err := f.client.Repositories.GetContents(ctx, ref.Owner, ref.Repo, ref.Path, f.options(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", ref, err)
	}
	if file != nil {
		if _, err := loader.Detect(file.GetName()); err != nil {
			return nil, err
		}
		return []string{file.GetPath()}, nil
	}

	var docs []string
	for _, item := range dir {
		switch item.GetType() {
		case "file":
			if _, err := loader.Detect(item.GetName()); err == nil {
				docs = append(docs, item.GetPath())
			}
		case "dir":
			sub := ref
			sub.Path = item.GetPath()
			subDocs, err := f.List(ctx, sub)
			if err != nil {
				return nil, err
			}
			docs = append(docs, subDocs...)
		}
	}
	return docs, nil
}

// Fetch downloads one file. Files too large for the contents API are
// downloaded through the raw endpoint instead.
func (f *Fetcher) Fetch(ctx context.Context, ref Ref) (*FetchedFile, error) {
	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, ref.Owner, ref.Repo, ref.Path, f.options(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", ref, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("%s is a directory", ref)
	}

	fetched := &FetchedFile{
		Path: fileContent.GetPath(),
		SHA:  fileContent.GetSHA(),
		URL:  fileContent.GetHTMLURL(),
	}

	if fileContent.GetEncoding() == "base64" {
		content, err := fileContent.GetContent()
		if err != nil {
			return nil, fmt.Errorf("failed to decode content of %s: %w", ref, err)
		}
		fetched.Content = []byte(content)
		return fetched, nil
	}

	rc, _, err := f.client.Repositories.DownloadContents(ctx, ref.Owner, ref.Repo, ref.Path, f.options(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", ref, err)
	}
	defer rc.Close()
	if fetched.Content, err = io.ReadAll(rc); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return fetched, nil
}

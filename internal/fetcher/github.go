// Package fetcher retrieves template contents from the template monorepo on
// GitHub: listing the top-level template directories and copying a selected
// template's file tree into a target directory.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
)

// ErrTemplateNotFound is returned when the requested template directory does
// not exist in the repository.
var ErrTemplateNotFound = errors.New("template not found")

// Entry is a top-level template directory in the monorepo.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	URL  string `json:"html_url"`
}

// CopyResult describes a completed template copy.
type CopyResult struct {
	TemplateName string   `json:"template_name"`
	TargetFolder string   `json:"target_folder"`
	FilesCopied  int      `json:"files_copied"`
	Files        []string `json:"files"`
}

// Fetcher lists and copies templates from a GitHub monorepo where each
// top-level directory is one template.
type Fetcher struct {
	owner   string
	repo    string
	client  *http.Client
	apiBase string
}

// New creates a Fetcher for github.com/<owner>/<repo>.
func New(owner, repo string, client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		owner:   owner,
		repo:    repo,
		client:  client,
		apiBase: "https://api.github.com",
	}
}

func (f *Fetcher) apiURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", f.apiBase, f.owner, f.repo, path)
}

func (f *Fetcher) cloneURL() string {
	return fmt.Sprintf("https://github.com/%s/%s.git", f.owner, f.repo)
}

// ListTemplates returns the template directories in the repository root,
// via the GitHub contents API.
func (f *Fetcher) ListTemplates(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL(""), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch repository contents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to fetch repository contents (status %d): %s", resp.StatusCode, string(body))
	}

	var contents []struct {
		Name    string `json:"name"`
		Path    string `json:"path"`
		Type    string `json:"type"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&contents); err != nil {
		return nil, fmt.Errorf("failed to decode repository contents: %w", err)
	}

	// Only directories are templates; hidden directories hold repo plumbing
	var entries []Entry
	for _, item := range contents {
		if item.Type == "dir" && !strings.HasPrefix(item.Name, ".") {
			entries = append(entries, Entry{
				Name: item.Name,
				Path: item.Path,
				URL:  item.HTMLURL,
			})
		}
	}
	return entries, nil
}

// templateExists checks the contents API for the template directory before
// paying for a clone.
func (f *Fetcher) templateExists(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL(name), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to check template: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	default:
		return fmt.Errorf("failed to check template (status %d)", resp.StatusCode)
	}
}

// CopyTemplate shallow-clones the repository to a temporary directory and
// copies the named template's file tree into targetDir, preserving relative
// paths. targetDir is created if missing.
func (f *Fetcher) CopyTemplate(ctx context.Context, name, targetDir string) (*CopyResult, error) {
	if name == "" {
		return nil, fmt.Errorf("template name is required")
	}
	if targetDir == "" {
		return nil, fmt.Errorf("target folder is required")
	}

	if err := f.templateExists(ctx, name); err != nil {
		return nil, err
	}

	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target folder: %w", err)
	}
	if err := os.MkdirAll(absTarget, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create target folder: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "stackhub-template-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// Shallow clone for faster operation
	_, err = git.PlainCloneContext(ctx, tempDir, false, &git.CloneOptions{
		URL:   f.cloneURL(),
		Depth: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone template repository: %w", err)
	}

	templateDir := filepath.Join(tempDir, name)
	info, err := os.Stat(templateDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %q not present in cloned repository", ErrTemplateNotFound, name)
	}

	var copied []string
	err = filepath.WalkDir(templateDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(templateDir, path)
		if err != nil {
			return err
		}

		dest := filepath.Join(absTarget, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := copyFile(path, dest); err != nil {
			return err
		}

		copied = append(copied, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to copy template files: %w", err)
	}

	return &CopyResult{
		TemplateName: name,
		TargetFolder: absTarget,
		FilesCopied:  len(copied),
		Files:        copied,
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

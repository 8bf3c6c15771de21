package blog

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ErrNotFound is returned for an unknown or malformed slug.
var ErrNotFound = errors.New("blog: post not found")

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

const welcomePost = "# Welcome to BloodLab Blog\n\nThis is a sample post."

// Post is one entry of the blog index.
type Post struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	File  string `json:"file"`
}

// Blog serves markdown posts from a directory.
type Blog struct {
	dir string
	md  goldmark.Markdown
}

func New(dir string) *Blog {
	return &Blog{
		dir: dir,
		md:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Seed creates the directory and a welcome post when it is missing.
func (b *Blog) Seed() error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("blog: create dir: %w", err)
	}
	path := filepath.Join(b.dir, "welcome.md")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blog: stat welcome: %w", err)
	}
	if err := os.WriteFile(path, []byte(welcomePost), 0o644); err != nil {
		return fmt.Errorf("blog: seed welcome: %w", err)
	}
	return nil
}

// List returns every *.md post sorted by slug. The title is the first line
// with any leading "#" marker removed.
func (b *Blog) List() ([]Post, error) {
	entries, err := os.ReadDir(b.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Post{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blog: read dir: %w", err)
	}
	posts := make([]Post, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(b.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("blog: read %s: %w", e.Name(), err)
		}
		posts = append(posts, Post{
			Slug:  strings.TrimSuffix(e.Name(), ".md"),
			Title: titleOf(raw),
			File:  e.Name(),
		})
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].Slug < posts[j].Slug })
	return posts, nil
}

func titleOf(raw []byte) string {
	first, _, _ := strings.Cut(string(raw), "\n")
	first = strings.TrimRight(first, "\r")
	return strings.TrimLeft(strings.TrimPrefix(first, "#"), " \t")
}

// Render returns the post as a standalone HTML page.
func (b *Blog) Render(slug string) ([]byte, error) {
	if !slugPattern.MatchString(slug) {
		return nil, ErrNotFound
	}
	raw, err := os.ReadFile(filepath.Join(b.dir, slug+".md"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blog: read %s: %w", slug, err)
	}
	var body bytes.Buffer
	if err := b.md.Convert(raw, &body); err != nil {
		return nil, fmt.Errorf("blog: render %s: %w", slug, err)
	}
	var page bytes.Buffer
	fmt.Fprintf(&page, `<html><head><meta name="robots" content="index,follow"><title>Blog - %s</title></head><body>`, html.EscapeString(slug))
	page.Write(body.Bytes())
	page.WriteString(`</body></html>`)
	return page.Bytes(), nil
}
